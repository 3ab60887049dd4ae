package models

import "fmt"

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// Equal reports whether both coordinates match exactly. No distance tolerance is applied.
func (l Location) Equal(other Location) bool {
	return l.Lat == other.Lat && l.Lon == other.Lon
}

// Validate checks that the coordinates are within WGS84 bounds.
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", l.Lon)
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("(%g,%g)", l.Lat, l.Lon)
}
