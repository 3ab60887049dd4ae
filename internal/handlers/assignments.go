package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/assignment"
	"github.com/ukydev/fleet-assignments/internal/events"
	"github.com/ukydev/fleet-assignments/internal/models"
)

const publishTimeout = 3 * time.Second

// AssignmentHandler exposes the assignment engine over HTTP.
type AssignmentHandler struct {
	engine    *assignment.Engine
	publisher events.Publisher
}

// NewAssignmentHandler creates an assignment handler. A nil publisher drops events.
func NewAssignmentHandler(engine *assignment.Engine, publisher events.Publisher) *AssignmentHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AssignmentHandler{engine: engine, publisher: publisher}
}

// Create handles POST /api/assignments.
func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.Assignment
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.engine.Assign(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.publish(r.Context(), events.NewAssignmentEvent(events.AssignmentCreated, created.ID(), created))
	writeJSON(w, r, http.StatusCreated, created)
}

// List handles GET /api/assignments?active=true&travel_date=YYYY-MM-DD.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter models.AssignmentFilter
	q := r.URL.Query()

	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "active must be true or false")
			return
		}
		filter.ActiveOnly = active
	}
	if v := q.Get("travel_date"); v != "" {
		date, err := models.ParseDate(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.TravelDate = &date
	}

	list, err := h.engine.List(r.Context(), filter)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// Get handles GET /api/assignments/{driverID}/{vehicleID}/{travelDate}.
func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// Update handles PUT /api/assignments/{driverID}/{vehicleID}/{travelDate}.
// The identity always comes from the path.
func (h *AssignmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req models.Assignment
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.DriverID, req.VehicleID, req.TravelDate = id.DriverID, id.VehicleID, id.TravelDate
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.engine.Update(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.publish(r.Context(), events.NewAssignmentEvent(events.AssignmentUpdated, id, updated))
	writeJSON(w, r, http.StatusOK, updated)
}

// Deactivate handles DELETE /api/assignments/{driverID}/{vehicleID}/{travelDate}.
func (h *AssignmentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.Deactivate(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.publish(r.Context(), events.NewAssignmentEvent(events.AssignmentDeactivated, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// DriverHistory handles GET /api/drivers/{id}/assignments.
func (h *AssignmentHandler) DriverHistory(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.engine.DriverHistory(r.Context(), driverID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// VehicleHistory handles GET /api/vehicles/{id}/assignments.
func (h *AssignmentHandler) VehicleHistory(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.engine.VehicleHistory(r.Context(), vehicleID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// publish sends event and only logs on failure; the change is already stored.
func (h *AssignmentHandler) publish(ctx context.Context, event events.AssignmentEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"event":      event.Type,
			"assignment": event.ID.String(),
		}).WithError(err).Warn("failed to publish assignment event")
	}
}

func assignmentIDFromPath(r *http.Request) (models.AssignmentID, error) {
	driverID, err := pathInt64(r, "driverID")
	if err != nil {
		return models.AssignmentID{}, err
	}
	vehicleID, err := pathInt64(r, "vehicleID")
	if err != nil {
		return models.AssignmentID{}, err
	}
	date, err := models.ParseDate(r.PathValue("travelDate"))
	if err != nil {
		return models.AssignmentID{}, err
	}
	return models.AssignmentID{DriverID: driverID, VehicleID: vehicleID, TravelDate: date}, nil
}
