package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-assignments/internal/models"
)

var (
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrDuplicateAssignment = errors.New("assignment already exists")
	ErrReferenceMissing    = errors.New("referenced driver or vehicle not found")
	ErrDriverNotFound      = errors.New("driver not found")
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrDuplicateDriver     = errors.New("driver already registered")
	ErrDuplicateVehicle    = errors.New("vehicle already registered")
)

// AssignmentCollection defines the storage contract for driver assignments.
// Implementations must reject a second record with the same identity with
// ErrDuplicateAssignment and never overwrite it. Lookups that find nothing
// return ErrAssignmentNotFound.
type AssignmentCollection interface {
	InsertAssignment(ctx context.Context, assignment models.Assignment) (*models.Assignment, error)
	FindAssignmentByID(ctx context.Context, id models.AssignmentID) (*models.Assignment, error)
	FindActiveByDriverOrVehicleAtDate(ctx context.Context, driverID, vehicleID int64, travelDate models.Date) ([]models.Assignment, error)
	FindActiveByDestinationAtDate(ctx context.Context, location models.Location, travelDate models.Date, exclude *models.AssignmentID) (*models.Assignment, error)
	ListAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	UpdateAssignment(ctx context.Context, assignment models.Assignment) (*models.Assignment, error)
	DeactivateAssignment(ctx context.Context, id models.AssignmentID) error
	ListAssignmentsByDriver(ctx context.Context, driverID int64) ([]models.Assignment, error)
	ListAssignmentsByVehicle(ctx context.Context, vehicleID int64) ([]models.Assignment, error)
	CountAssignmentsOnDate(ctx context.Context, travelDate models.Date) (int64, error)
}

// ReferenceChecker reports whether the drivers and vehicles an assignment
// points at exist.
type ReferenceChecker interface {
	DriverExists(ctx context.Context, id int64) (bool, error)
	VehicleExists(ctx context.Context, id int64) (bool, error)
}

// DriverCollection defines the interface for driver data operations.
// License numbers are stored normalized and are unique; a clash is reported
// as ErrDuplicateDriver. UpdateDriver replaces the editable fields of the
// driver with driver.ID and keeps CreatedAt.
type DriverCollection interface {
	InsertDriver(ctx context.Context, driver models.Driver) (*models.Driver, error)
	FindDriverByID(ctx context.Context, id int64) (*models.Driver, error)
	FindDrivers(ctx context.Context) ([]models.Driver, error)
	CountDrivers(ctx context.Context) (int64, error)
	UpdateDriver(ctx context.Context, driver models.Driver) (*models.Driver, error)
	DeleteDriver(ctx context.Context, id int64) error
}

// VehicleCollection defines the interface for vehicle data operations.
// VINs and plates are stored normalized and are unique; a clash with any
// other vehicle is reported as ErrDuplicateVehicle.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id int64) (*models.Vehicle, error)
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
	CountVehicles(ctx context.Context) (int64, error)
	UpdateVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, id int64) error
}
