package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/ukydev/fleet-assignments/internal/assignment"
	"github.com/ukydev/fleet-assignments/internal/auth"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/events"
	"github.com/ukydev/fleet-assignments/internal/metrics"
	"github.com/ukydev/fleet-assignments/internal/middleware"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// RouterConfig carries everything the API needs.
type RouterConfig struct {
	Engine      *assignment.Engine
	Drivers     db.DriverCollection
	Vehicles    db.VehicleCollection
	Users       db.UserCollection
	Invitations db.InvitationCollection
	AuthService *auth.Service
	Publisher   events.Publisher
	// Metrics, when set, instruments every request and serves GET /metrics.
	Metrics *metrics.Recorder

	RateLimit       int
	RateLimitWindow time.Duration
	// TrustedProxies may set X-Forwarded-For and X-Real-IP for rate limiting.
	TrustedProxies []*net.IPNet
}

// NewRouter wires every route behind request ids, access logging, rate
// limiting and bearer authentication.
func NewRouter(cfg RouterConfig) http.Handler {
	authMW := middleware.NewAuthMiddleware(cfg.AuthService)
	perm := func(action string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(action)(h)
	}

	assignments := NewAssignmentHandler(cfg.Engine, cfg.Publisher)
	fleet := NewFleetHandler(cfg.Drivers, cfg.Vehicles, cfg.Engine)
	summary := NewMetricsHandler(cfg.Engine, cfg.Drivers, cfg.Vehicles)
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Users, cfg.Invitations)
	invitations := NewInvitationHandler(cfg.Invitations, cfg.Users)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health)

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", authHandler.UpdateProfile)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)
	mux.Handle("GET /api/users", perm(models.PermManageUsers, authHandler.ListUsers))
	mux.Handle("PUT /api/users/{id}/role", perm(models.PermManageUsers, authHandler.UpdateUserRole))
	mux.Handle("DELETE /api/users/{id}", perm(models.PermDeleteUser, authHandler.DeleteUser))

	mux.Handle("POST /api/invitation-codes", perm(models.PermInviteUsers, invitations.Create))
	mux.Handle("GET /api/invitation-codes", perm(models.PermInviteUsers, invitations.List))
	mux.Handle("PATCH /api/invitation-codes/{code}", perm(models.PermInviteUsers, invitations.ChangeEmail))
	mux.Handle("DELETE /api/invitation-codes/{code}", perm(models.PermInviteUsers, invitations.Delete))

	mux.Handle("POST /api/assignments", perm(models.PermCreateAssignment, assignments.Create))
	mux.Handle("GET /api/assignments", perm(models.PermViewAssignments, assignments.List))
	mux.Handle("GET /api/assignments/{driverID}/{vehicleID}/{travelDate}", perm(models.PermViewAssignments, assignments.Get))
	mux.Handle("PUT /api/assignments/{driverID}/{vehicleID}/{travelDate}", perm(models.PermUpdateAssignment, assignments.Update))
	mux.Handle("DELETE /api/assignments/{driverID}/{vehicleID}/{travelDate}", perm(models.PermDeactivateAssignment, assignments.Deactivate))

	mux.Handle("POST /api/drivers", perm(models.PermManageFleet, fleet.CreateDriver))
	mux.Handle("GET /api/drivers", perm(models.PermViewFleet, fleet.ListDrivers))
	mux.Handle("GET /api/drivers/{id}", perm(models.PermViewFleet, fleet.GetDriver))
	mux.Handle("PUT /api/drivers/{id}", perm(models.PermManageFleet, fleet.UpdateDriver))
	mux.Handle("DELETE /api/drivers/{id}", perm(models.PermManageFleet, fleet.DeleteDriver))
	mux.Handle("GET /api/drivers/{id}/assignments", perm(models.PermViewAssignments, assignments.DriverHistory))
	mux.Handle("POST /api/vehicles", perm(models.PermManageFleet, fleet.CreateVehicle))
	mux.Handle("GET /api/vehicles", perm(models.PermViewFleet, fleet.ListVehicles))
	mux.Handle("GET /api/vehicles/{id}", perm(models.PermViewFleet, fleet.GetVehicle))
	mux.Handle("PUT /api/vehicles/{id}", perm(models.PermManageFleet, fleet.UpdateVehicle))
	mux.Handle("DELETE /api/vehicles/{id}", perm(models.PermManageFleet, fleet.DeleteVehicle))
	mux.Handle("GET /api/vehicles/{id}/assignments", perm(models.PermViewAssignments, assignments.VehicleHistory))

	mux.Handle("GET /api/metrics", perm(models.PermViewMetrics, summary.Get))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	var h http.Handler = authMW.Authenticate(mux)
	if cfg.RateLimit > 0 {
		h = middleware.NewRateLimitMiddleware(cfg.TrustedProxies...).RateLimit(cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.AccessLog(h)
	if cfg.Metrics != nil {
		h = cfg.Metrics.Instrument(h)
	}
	return middleware.RequestID(h)
}
