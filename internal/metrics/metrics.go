// Package metrics exposes Prometheus counters for assignment decisions and
// HTTP traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ukydev/fleet-assignments/internal/assignment"
)

// Recorder owns a registry so that several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	decisions *prometheus.CounterVec
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with process and Go runtime collectors
// registered alongside the service metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_assignment_decisions_total",
				Help: "Assignment engine decisions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleet_http_requests_total",
				Help: "HTTP requests by status code and method",
			},
			[]string{"code", "method"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleet_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
			},
			[]string{"method"},
		),
	}
}

// Observe implements assignment.Observer.
func (r *Recorder) Observe(operation string, err error) {
	r.decisions.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome labels an engine result: "ok" or the error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return assignment.KindOf(err).String()
}

// Instrument counts and times every request passing through next.
func (r *Recorder) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(r.latency,
		promhttp.InstrumentHandlerCounter(r.requests, next))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Decisions returns the decision counter for one label pair.
func (r *Recorder) Decisions(operation, outcome string) prometheus.Counter {
	return r.decisions.WithLabelValues(operation, outcome)
}
