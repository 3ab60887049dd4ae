package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-assignments/internal/auth"
	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func tokenFor(t *testing.T, svc *auth.Service, role models.Role) string {
	t.Helper()
	token, err := svc.GenerateToken(&models.User{
		ID:       primitive.NewObjectID(),
		Username: string(role) + "-user",
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	svc := auth.NewServiceWithSecret("test", time.Hour)
	m := NewAuthMiddleware(svc)

	tests := []struct {
		name       string
		path       string
		header     string
		wantCalled bool
		wantStatus int
	}{
		{"valid token", "/api/assignments", "Bearer " + tokenFor(t, svc, models.RoleDispatcher), true, http.StatusOK},
		{"missing header", "/api/assignments", "", false, http.StatusUnauthorized},
		{"invalid token", "/api/assignments", "Bearer invalid-token", false, http.StatusUnauthorized},
		{"wrong scheme", "/api/assignments", "Token abc", false, http.StatusUnauthorized},
		{"login is public", "/api/auth/login", "", true, http.StatusOK},
		{"health is public", "/health", "", true, http.StatusOK},
		{"metrics needs a token", "/api/metrics", "", false, http.StatusUnauthorized},
		{"scrape endpoint is public", "/metrics", "", true, http.StatusOK},
		{"public prefix is not public", "/healthcheck/admin", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if tt.header != "" {
					claims, ok := GetUserFromContext(r.Context())
					assert.True(t, ok)
					assert.Equal(t, models.RoleDispatcher, claims.Role)
				}
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			m.Authenticate(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	svc := auth.NewServiceWithSecret("test", time.Hour)
	m := NewAuthMiddleware(svc)

	tests := []struct {
		name       string
		role       models.Role
		permission string
		wantCalled bool
	}{
		{"admin can manage users", models.RoleAdmin, models.PermManageUsers, true},
		{"dispatcher creates assignments", models.RoleDispatcher, models.PermCreateAssignment, true},
		{"dispatcher cannot manage users", models.RoleDispatcher, models.PermManageUsers, false},
		{"viewer reads assignments", models.RoleViewer, models.PermViewAssignments, true},
		{"viewer cannot deactivate", models.RoleViewer, models.PermDeactivateAssignment, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			h := m.Authenticate(m.RequirePermission(tt.permission)(next))

			req := httptest.NewRequest(http.MethodGet, "/api/assignments", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, tt.role))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCalled, called)
			if !tt.wantCalled {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestAuthMiddleware_RequirePermissionWithoutUser(t *testing.T) {
	m := NewAuthMiddleware(auth.NewServiceWithSecret("test", time.Hour))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	w := serve(m.RequirePermission(models.PermViewFleet)(next), http.MethodGet, "/api/drivers", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserFromContext(t *testing.T) {
	claims := &models.Claims{
		UserID:   "test-id",
		Username: "testuser",
		Role:     models.RoleAdmin,
	}

	retrieved, ok := GetUserFromContext(WithUser(context.Background(), claims))
	assert.True(t, ok)
	assert.Equal(t, claims, retrieved)

	_, ok = GetUserFromContext(context.Background())
	assert.False(t, ok)
}
