package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitMiddleware is a per-client sliding window limiter.
type RateLimitMiddleware struct {
	requests  map[string][]time.Time
	trusted   []*net.IPNet
	lastSweep time.Time
	mu        sync.Mutex
	now       func() time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware. Proxy
// headers are only honoured on connections from trustedProxies.
func NewRateLimitMiddleware(trustedProxies ...*net.IPNet) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests: make(map[string][]time.Time),
		trusted:  trustedProxies,
		now:      time.Now,
	}
}

// RateLimit allows maxRequests per client IP within window and answers 429
// with a Retry-After header beyond that.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if retryAfter, ok := m.allow(m.clientIP(r), maxRequests, window); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) allow(client string, maxRequests int, window time.Duration) (time.Duration, bool) {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= window {
		m.sweep(windowStart)
		m.lastSweep = now
	}

	recent := prune(m.requests[client], windowStart)
	if len(recent) >= maxRequests {
		m.requests[client] = recent
		return recent[0].Sub(windowStart), false
	}
	m.requests[client] = append(recent, now)
	return 0, true
}

// sweep drops every client with no request inside the window.
func (m *RateLimitMiddleware) sweep(windowStart time.Time) {
	for client, times := range m.requests {
		if recent := prune(times, windowStart); len(recent) == 0 {
			delete(m.requests, client)
		} else {
			m.requests[client] = recent
		}
	}
}

func (m *RateLimitMiddleware) clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func prune(times []time.Time, windowStart time.Time) []time.Time {
	recent := times[:0]
	for _, ts := range times {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	return recent
}

// clientIP is the connection address, or the proxy supplied address when the
// connection comes from a trusted proxy.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	remote := remoteHost(r)
	if !m.isTrusted(remote) {
		return remote
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return remote
}

func (m *RateLimitMiddleware) isTrusted(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range m.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
