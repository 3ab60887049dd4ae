// Package assignment decides whether driver assignments may be created,
// edited or deactivated.
//
// The engine holds no records of its own. It reads from a
// db.AssignmentCollection, authorizes or rejects the requested change and
// hands accepted writes back to the store. Conflict checks run as
// query-then-write and are therefore best effort under concurrency; only the
// identity uniqueness enforced by the store is strict.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// Engine applies the assignment conflict rules on top of a store.
type Engine struct {
	store    db.AssignmentCollection
	now      func() time.Time
	loc      *time.Location
	observer Observer
}

// Observer is told the outcome of every Assign, Update and Deactivate call.
type Observer interface {
	Observe(operation string, err error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for creation timestamps and for deciding
// what "today" is.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation evaluates dates in loc instead of the process's local zone.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// WithObserver reports decisions to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine backed by store.
func NewEngine(store db.AssignmentCollection, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the calendar day the engine currently considers "today".
func (e *Engine) Today() models.Date {
	return models.DateOf(e.clock())
}

// clock reads the configured clock in the engine's location.
func (e *Engine) clock() time.Time {
	t := e.now()
	if e.loc != nil {
		t = t.In(e.loc)
	}
	return t
}

func (e *Engine) observe(operation string, err error) {
	if e.observer != nil {
		e.observer.Observe(operation, err)
	}
}

func logFields(id models.AssignmentID) log.Fields {
	return log.Fields{
		"driver_id":   id.DriverID,
		"vehicle_id":  id.VehicleID,
		"travel_date": id.TravelDate,
	}
}

// Assign creates a new active assignment. It is rejected with a conflict when
// the driver or the vehicle already has an active assignment that day, when
// the destination is already taken that day, or when the identity exists.
// A missing driver or vehicle yields a not-found error.
func (e *Engine) Assign(ctx context.Context, candidate models.Assignment) (*models.Assignment, error) {
	created, err := e.assign(ctx, candidate)
	e.observe("assign", err)
	return created, err
}

func (e *Engine) assign(ctx context.Context, candidate models.Assignment) (*models.Assignment, error) {
	fields := logFields(candidate.ID())
	log.WithFields(fields).Debug("assign requested")

	busy, err := e.store.FindActiveByDriverOrVehicleAtDate(ctx, candidate.DriverID, candidate.VehicleID, candidate.TravelDate)
	if err != nil {
		return nil, fmt.Errorf("assign %s: %w", candidate.ID(), err)
	}
	if len(busy) > 0 {
		log.WithFields(fields).WithField("existing", busy[0].ID().String()).Info("assign rejected: driver or vehicle busy")
		return nil, conflict("vehicle or driver already committed that day", nil)
	}

	taken, err := e.IsLocationTaken(ctx, candidate.DestinationLocation, candidate.TravelDate, nil)
	if err != nil {
		return nil, fmt.Errorf("assign %s: %w", candidate.ID(), err)
	}
	if taken {
		log.WithFields(fields).WithField("destination", candidate.DestinationLocation.String()).Info("assign rejected: destination taken")
		return nil, conflict("destination already assigned that day", nil)
	}

	candidate.Active = true
	candidate.CreationDate = e.clock().UTC()
	created, err := e.store.InsertAssignment(ctx, candidate)
	switch {
	case errors.Is(err, db.ErrDuplicateAssignment):
		return nil, conflict("assignment already exists", err)
	case errors.Is(err, db.ErrReferenceMissing):
		return nil, notFound("driver or vehicle to assign not found", err)
	case err != nil:
		return nil, fmt.Errorf("assign %s: %w", candidate.ID(), err)
	}

	log.WithFields(fields).Info("assignment created")
	return created, nil
}

// IsEditable reports whether the mutable fields of a may still change: the
// travel date is in the future, or the trip was completed successfully.
func (e *Engine) IsEditable(a models.Assignment) bool {
	if a.TravelDate.After(e.Today()) {
		return true
	}
	return a.CompletedSuccessfully
}

// IsLocationTaken reports whether an active assignment heads to location on
// travelDate. exclude, when set, names a record that must not count; only
// updates pass one.
func (e *Engine) IsLocationTaken(ctx context.Context, location models.Location, travelDate models.Date, exclude *models.AssignmentID) (bool, error) {
	_, err := e.store.FindActiveByDestinationAtDate(ctx, location, travelDate, exclude)
	if errors.Is(err, db.ErrAssignmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update changes the mutable fields of an existing assignment. Editability is
// judged on the stored record, then the new destination is checked against
// every other active assignment of that day. The driver/vehicle day rule is
// not re-run because update cannot change either.
func (e *Engine) Update(ctx context.Context, candidate models.Assignment) (*models.Assignment, error) {
	updated, err := e.update(ctx, candidate)
	e.observe("update", err)
	return updated, err
}

func (e *Engine) update(ctx context.Context, candidate models.Assignment) (*models.Assignment, error) {
	id := candidate.ID()
	fields := logFields(id)
	log.WithFields(fields).Debug("update requested")

	stored, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsEditable(*stored) {
		log.WithFields(fields).Info("update rejected: not editable")
		return nil, invalidState("assignment is not editable")
	}

	taken, err := e.IsLocationTaken(ctx, candidate.DestinationLocation, id.TravelDate, &id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	if taken {
		log.WithFields(fields).WithField("destination", candidate.DestinationLocation.String()).Info("update rejected: destination taken")
		return nil, conflict("destination already assigned that day", nil)
	}

	stored.ApplyChanges(candidate)
	updated, err := e.store.UpdateAssignment(ctx, *stored)
	if errors.Is(err, db.ErrAssignmentNotFound) {
		return nil, notFound("assignment not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	log.WithFields(fields).Info("assignment updated")
	return updated, nil
}

// Deactivate soft-deletes an assignment. It does not depend on editability
// and there is no way back to active.
func (e *Engine) Deactivate(ctx context.Context, id models.AssignmentID) error {
	err := e.deactivate(ctx, id)
	e.observe("deactivate", err)
	return err
}

func (e *Engine) deactivate(ctx context.Context, id models.AssignmentID) error {
	fields := logFields(id)
	log.WithFields(fields).Debug("deactivate requested")

	if _, err := e.Get(ctx, id); err != nil {
		return err
	}
	err := e.store.DeactivateAssignment(ctx, id)
	if errors.Is(err, db.ErrAssignmentNotFound) {
		return notFound("assignment not found", err)
	}
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", id, err)
	}

	log.WithFields(fields).Info("assignment deactivated")
	return nil
}

// Get returns the assignment named by id or a not-found error.
func (e *Engine) Get(ctx context.Context, id models.AssignmentID) (*models.Assignment, error) {
	a, found, err := e.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("assignment not found", db.ErrAssignmentNotFound)
	}
	return a, nil
}

// Lookup is Get for callers that tolerate absence.
func (e *Engine) Lookup(ctx context.Context, id models.AssignmentID) (*models.Assignment, bool, error) {
	a, err := e.store.FindAssignmentByID(ctx, id)
	if errors.Is(err, db.ErrAssignmentNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find assignment %s: %w", id, err)
	}
	return a, true, nil
}

// List returns assignments, newest travel date first.
func (e *Engine) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	return e.store.ListAssignments(ctx, filter)
}

// DriverHistory returns every assignment of a driver regardless of status.
func (e *Engine) DriverHistory(ctx context.Context, driverID int64) ([]models.Assignment, error) {
	return e.store.ListAssignmentsByDriver(ctx, driverID)
}

// VehicleHistory returns every assignment of a vehicle regardless of status.
func (e *Engine) VehicleHistory(ctx context.Context, vehicleID int64) ([]models.Assignment, error) {
	return e.store.ListAssignmentsByVehicle(ctx, vehicleID)
}

// CountToday counts the assignments scheduled for today.
func (e *Engine) CountToday(ctx context.Context) (int64, error) {
	return e.store.CountAssignmentsOnDate(ctx, e.Today())
}
