package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAssignment() Assignment {
	return Assignment{
		DriverID:            1,
		VehicleID:           10,
		TravelDate:          "2024-06-01",
		RouteName:           "north loop",
		OriginLocation:      Location{Lat: 19.4, Lon: -99.1},
		DestinationLocation: Location{Lat: 19.0, Lon: -99.0},
	}
}

func TestAssignment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Assignment)
		wantErr string
	}{
		{"valid", func(a *Assignment) {}, ""},
		{"zero driver", func(a *Assignment) { a.DriverID = 0 }, "driver_id"},
		{"negative vehicle", func(a *Assignment) { a.VehicleID = -3 }, "vehicle_id"},
		{"bad date", func(a *Assignment) { a.TravelDate = "06/01/2024" }, "travel_date"},
		{"blank route", func(a *Assignment) { a.RouteName = "  " }, "route_name"},
		{"origin out of range", func(a *Assignment) { a.OriginLocation.Lat = 91 }, "origin_location"},
		{"destination out of range", func(a *Assignment) { a.DestinationLocation.Lon = -181 }, "destination_location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAssignment()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssignment_ApplyChangesKeepsIdentity(t *testing.T) {
	created := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	stored := validAssignment()
	stored.Active = true
	stored.CreationDate = created

	note := "flat tyre"
	change := Assignment{
		DriverID:              99,
		VehicleID:             99,
		TravelDate:            "2030-01-01",
		RouteName:             "south loop",
		OriginLocation:        Location{Lat: 1, Lon: 2},
		DestinationLocation:   Location{Lat: 3, Lon: 4},
		Active:                false,
		CompletedSuccessfully: true,
		ProblemDescription:    &note,
	}
	stored.ApplyChanges(change)

	assert.Equal(t, AssignmentID{DriverID: 1, VehicleID: 10, TravelDate: "2024-06-01"}, stored.ID())
	assert.True(t, stored.Active)
	assert.Equal(t, created, stored.CreationDate)
	assert.Equal(t, "south loop", stored.RouteName)
	assert.Equal(t, Location{Lat: 3, Lon: 4}, stored.DestinationLocation)
	assert.True(t, stored.CompletedSuccessfully)
	require.NotNil(t, stored.ProblemDescription)
	assert.Equal(t, "flat tyre", *stored.ProblemDescription)
	assert.Nil(t, stored.Comments)
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, Date("2024-06-01"), d)
	assert.True(t, d.Valid())
	assert.Equal(t, Date("2024-06-02"), d.AddDays(1))
	assert.Equal(t, Date("2024-05-31"), d.AddDays(-1))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.After(d))

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
	assert.False(t, Date("").Valid())

	at := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, Date("2024-06-01"), DateOf(at))
}

func TestLocation_Equal(t *testing.T) {
	a := Location{Lat: 19.0, Lon: -99.0}
	assert.True(t, a.Equal(Location{Lat: 19.0, Lon: -99.0}))
	assert.False(t, a.Equal(Location{Lat: 19.0000001, Lon: -99.0}))
	assert.NoError(t, a.Validate())
	assert.Error(t, Location{Lat: -90.5}.Validate())
}
