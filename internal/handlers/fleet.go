package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// AssignmentHistory lists every assignment, active or not, that references a
// driver or vehicle.
type AssignmentHistory interface {
	DriverHistory(ctx context.Context, driverID int64) ([]models.Assignment, error)
	VehicleHistory(ctx context.Context, vehicleID int64) ([]models.Assignment, error)
}

// FleetHandler manages the driver and vehicle registry. Drivers and vehicles
// that appear in any assignment cannot be deleted.
type FleetHandler struct {
	drivers  db.DriverCollection
	vehicles db.VehicleCollection
	history  AssignmentHistory
}

// NewFleetHandler creates a fleet handler.
func NewFleetHandler(drivers db.DriverCollection, vehicles db.VehicleCollection, history AssignmentHistory) *FleetHandler {
	return &FleetHandler{drivers: drivers, vehicles: vehicles, history: history}
}

// CreateDriver handles POST /api/drivers.
func (h *FleetHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req models.Driver
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	driver, err := h.drivers.InsertDriver(r.Context(), req)
	if errors.Is(err, db.ErrDuplicateDriver) {
		writeError(w, r, http.StatusConflict, "license number already registered")
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, driver)
}

// ListDrivers handles GET /api/drivers.
func (h *FleetHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.drivers.FindDrivers(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, drivers)
}

// GetDriver handles GET /api/drivers/{id}.
func (h *FleetHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	driver, err := h.drivers.FindDriverByID(r.Context(), id)
	if errors.Is(err, db.ErrDriverNotFound) {
		writeError(w, r, http.StatusNotFound, "driver not found")
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, driver)
}

// UpdateDriver handles PUT /api/drivers/{id}.
func (h *FleetHandler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req models.Driver
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = id

	driver, err := h.drivers.UpdateDriver(r.Context(), req)
	switch {
	case errors.Is(err, db.ErrDriverNotFound):
		writeError(w, r, http.StatusNotFound, "driver not found")
	case errors.Is(err, db.ErrDuplicateDriver):
		writeError(w, r, http.StatusConflict, "license number already registered")
	case err != nil:
		writeEngineError(w, r, err)
	default:
		writeJSON(w, r, http.StatusOK, driver)
	}
}

// DeleteDriver handles DELETE /api/drivers/{id}.
func (h *FleetHandler) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	history, err := h.history.DriverHistory(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if len(history) > 0 {
		writeError(w, r, http.StatusConflict, "driver has assignments")
		return
	}

	err = h.drivers.DeleteDriver(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrDriverNotFound):
		writeError(w, r, http.StatusNotFound, "driver not found")
	case err != nil:
		writeEngineError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// CreateVehicle handles POST /api/vehicles. VIN and plate must be unused.
func (h *FleetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req models.Vehicle
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	vehicle, err := h.vehicles.InsertVehicle(r.Context(), req)
	if errors.Is(err, db.ErrDuplicateVehicle) {
		writeError(w, r, http.StatusConflict, "vin or plate already registered")
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, vehicle)
}

// ListVehicles handles GET /api/vehicles.
func (h *FleetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.FindVehicles(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vehicles)
}

// GetVehicle handles GET /api/vehicles/{id}.
func (h *FleetHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), id)
	if errors.Is(err, db.ErrVehicleNotFound) {
		writeError(w, r, http.StatusNotFound, "vehicle not found")
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vehicle)
}

// UpdateVehicle handles PUT /api/vehicles/{id}. The VIN and plate may be kept
// but not taken from another vehicle.
func (h *FleetHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req models.Vehicle
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = id

	vehicle, err := h.vehicles.UpdateVehicle(r.Context(), req)
	switch {
	case errors.Is(err, db.ErrVehicleNotFound):
		writeError(w, r, http.StatusNotFound, "vehicle not found")
	case errors.Is(err, db.ErrDuplicateVehicle):
		writeError(w, r, http.StatusConflict, "vin or plate already registered")
	case err != nil:
		writeEngineError(w, r, err)
	default:
		writeJSON(w, r, http.StatusOK, vehicle)
	}
}

// DeleteVehicle handles DELETE /api/vehicles/{id}.
func (h *FleetHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	history, err := h.history.VehicleHistory(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if len(history) > 0 {
		writeError(w, r, http.StatusConflict, "vehicle has assignments")
		return
	}

	err = h.vehicles.DeleteVehicle(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrVehicleNotFound):
		writeError(w, r, http.StatusNotFound, "vehicle not found")
	case err != nil:
		writeEngineError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
