package models

import (
	"errors"
	"strings"
	"time"
)

// Driver represents a person who can be assigned to drive a fleet vehicle.
type Driver struct {
	ID            int64     `bson:"_id" json:"id"`
	FirstName     string    `bson:"first_name" json:"first_name"`
	LastName      string    `bson:"last_name" json:"last_name"`
	LicenseNumber string    `bson:"license_number" json:"license_number"`
	Phone         string    `bson:"phone" json:"phone"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// Validate checks the fields required to register a driver.
func (d *Driver) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" || strings.TrimSpace(d.LastName) == "" {
		return errors.New("first_name and last_name are required")
	}
	if strings.TrimSpace(d.LicenseNumber) == "" {
		return errors.New("license_number is required")
	}
	return nil
}

// Normalize canonicalizes the license number so uniqueness is case and
// whitespace insensitive in every store.
func (d *Driver) Normalize() {
	d.LicenseNumber = strings.ToUpper(strings.TrimSpace(d.LicenseNumber))
}
