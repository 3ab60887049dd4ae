package models

import (
	"errors"
	"strings"
	"time"
)

// Vehicle represents a fleet vehicle that can be assigned to drivers.
type Vehicle struct {
	ID        int64     `bson:"_id" json:"id"`
	VIN       string    `bson:"vin" json:"vin"`
	Plate     string    `bson:"plate" json:"plate"`
	Type      string    `bson:"type" json:"type"` // "ICE" or "EV"
	Make      string    `bson:"make" json:"make"`
	Model     string    `bson:"model" json:"model"`
	Year      int       `bson:"year" json:"year"`
	EntryDate time.Time `bson:"entry_date" json:"entry_date"`
}

// Validate checks the fields required to register a vehicle.
func (v *Vehicle) Validate() error {
	if strings.TrimSpace(v.VIN) == "" {
		return errors.New("vin is required")
	}
	if strings.TrimSpace(v.Plate) == "" {
		return errors.New("plate is required")
	}
	return nil
}

// Normalize canonicalizes VIN and plate so uniqueness is case and whitespace
// insensitive in every store.
func (v *Vehicle) Normalize() {
	v.VIN = strings.ToUpper(strings.TrimSpace(v.VIN))
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
}
