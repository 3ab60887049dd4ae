package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AssignmentID is the composite key naming one assignment.
type AssignmentID struct {
	DriverID   int64 `bson:"driver_id" json:"driver_id"`
	VehicleID  int64 `bson:"vehicle_id" json:"vehicle_id"`
	TravelDate Date  `bson:"travel_date" json:"travel_date"`
}

func (id AssignmentID) String() string {
	return fmt.Sprintf("%d/%d/%s", id.DriverID, id.VehicleID, id.TravelDate)
}

// Assignment represents one driver driving one vehicle on one calendar day.
type Assignment struct {
	DriverID              int64     `bson:"driver_id" json:"driver_id"`
	VehicleID             int64     `bson:"vehicle_id" json:"vehicle_id"`
	TravelDate            Date      `bson:"travel_date" json:"travel_date"`
	RouteName             string    `bson:"route_name" json:"route_name"`
	OriginLocation        Location  `bson:"origin_location" json:"origin_location"`
	DestinationLocation   Location  `bson:"destination_location" json:"destination_location"`
	Active                bool      `bson:"active" json:"active"`
	CompletedSuccessfully bool      `bson:"completed_successfully" json:"completed_successfully"`
	ProblemDescription    *string   `bson:"problem_description,omitempty" json:"problem_description,omitempty"`
	Comments              *string   `bson:"comments,omitempty" json:"comments,omitempty"`
	CreationDate          time.Time `bson:"creation_date" json:"creation_date"`
}

// ID returns the assignment's identity.
func (a *Assignment) ID() AssignmentID {
	return AssignmentID{DriverID: a.DriverID, VehicleID: a.VehicleID, TravelDate: a.TravelDate}
}

// ApplyChanges copies the mutable fields of src onto a. Identity, Active and
// CreationDate are left untouched.
func (a *Assignment) ApplyChanges(src Assignment) {
	a.RouteName = src.RouteName
	a.OriginLocation = src.OriginLocation
	a.DestinationLocation = src.DestinationLocation
	a.CompletedSuccessfully = src.CompletedSuccessfully
	a.ProblemDescription = src.ProblemDescription
	a.Comments = src.Comments
}

// Validate checks the request-level shape of an assignment.
func (a *Assignment) Validate() error {
	if a.DriverID <= 0 {
		return errors.New("driver_id must be positive")
	}
	if a.VehicleID <= 0 {
		return errors.New("vehicle_id must be positive")
	}
	if !a.TravelDate.Valid() {
		return fmt.Errorf("travel_date %q must be formatted as %s", a.TravelDate, DateLayout)
	}
	if strings.TrimSpace(a.RouteName) == "" {
		return errors.New("route_name is required")
	}
	if err := a.OriginLocation.Validate(); err != nil {
		return fmt.Errorf("origin_location: %w", err)
	}
	if err := a.DestinationLocation.Validate(); err != nil {
		return fmt.Errorf("destination_location: %w", err)
	}
	return nil
}

// AssignmentFilter narrows an assignment listing.
type AssignmentFilter struct {
	ActiveOnly bool
	TravelDate *Date
}
