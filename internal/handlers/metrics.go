package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-assignments/internal/assignment"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// Metrics is the dashboard summary returned by GET /api/metrics.
type Metrics struct {
	Date             models.Date `json:"date"`
	AssignmentsToday int64       `json:"assignments_today"`
	Drivers          int64       `json:"drivers"`
	Vehicles         int64       `json:"vehicles"`
}

// MetricsHandler reports fleet totals.
type MetricsHandler struct {
	engine   *assignment.Engine
	drivers  db.DriverCollection
	vehicles db.VehicleCollection
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(engine *assignment.Engine, drivers db.DriverCollection, vehicles db.VehicleCollection) *MetricsHandler {
	return &MetricsHandler{engine: engine, drivers: drivers, vehicles: vehicles}
}

// Get handles GET /api/metrics.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := Metrics{Date: h.engine.Today()}

	var err error
	if m.AssignmentsToday, err = h.engine.CountToday(ctx); err != nil {
		writeEngineError(w, r, err)
		return
	}
	if m.Drivers, err = h.drivers.CountDrivers(ctx); err != nil {
		writeEngineError(w, r, err)
		return
	}
	if m.Vehicles, err = h.vehicles.CountVehicles(ctx); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}
