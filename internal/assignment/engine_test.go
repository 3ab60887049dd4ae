package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-assignments/internal/db"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// MockAssignmentCollection is a mock implementation of db.AssignmentCollection
type MockAssignmentCollection struct {
	mock.Mock
}

func (m *MockAssignmentCollection) InsertAssignment(ctx context.Context, a models.Assignment) (*models.Assignment, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) FindAssignmentByID(ctx context.Context, id models.AssignmentID) (*models.Assignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) FindActiveByDriverOrVehicleAtDate(ctx context.Context, driverID, vehicleID int64, date models.Date) ([]models.Assignment, error) {
	args := m.Called(ctx, driverID, vehicleID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) FindActiveByDestinationAtDate(ctx context.Context, loc models.Location, date models.Date, exclude *models.AssignmentID) (*models.Assignment, error) {
	args := m.Called(ctx, loc, date, exclude)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) ListAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) UpdateAssignment(ctx context.Context, a models.Assignment) (*models.Assignment, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) DeactivateAssignment(ctx context.Context, id models.AssignmentID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAssignmentCollection) ListAssignmentsByDriver(ctx context.Context, driverID int64) ([]models.Assignment, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) ListAssignmentsByVehicle(ctx context.Context, vehicleID int64) ([]models.Assignment, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *MockAssignmentCollection) CountAssignmentsOnDate(ctx context.Context, date models.Date) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func candidate(driverID, vehicleID int64, date models.Date, dest models.Location) models.Assignment {
	return models.Assignment{
		DriverID:            driverID,
		VehicleID:           vehicleID,
		TravelDate:          date,
		RouteName:           "north loop",
		OriginLocation:      models.Location{Lat: 19.43, Lon: -99.13},
		DestinationLocation: dest,
	}
}

func newMemoryEngine(now func() time.Time) (*Engine, *db.MemoryAssignmentCollection) {
	store := db.NewMemoryAssignmentCollection(nil)
	return NewEngine(store, WithClock(now)), store
}

func TestEngine_AssignScenario(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))
	date := models.Date("2024-06-01")
	dest := models.Location{Lat: 19.0, Lon: -99.0}

	created, err := engine.Assign(ctx, candidate(1, 10, date, dest))
	require.NoError(t, err)
	assert.True(t, created.Active)

	tests := []struct {
		name    string
		input   models.Assignment
		wantErr error
	}{
		{"same driver other vehicle", candidate(1, 20, date, models.Location{Lat: 1, Lon: 1}), ErrConflict},
		{"same vehicle other driver", candidate(2, 10, date, models.Location{Lat: 2, Lon: 2}), ErrConflict},
		{"same destination", candidate(3, 30, date, dest), ErrConflict},
		{"free destination", candidate(3, 30, date, models.Location{Lat: 20.0, Lon: -100.0}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Assign(ctx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, KindConflict, KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEngine_AssignAllowsOtherDayAndInactive(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))
	dest := models.Location{Lat: 19.0, Lon: -99.0}

	_, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", dest))
	require.NoError(t, err)

	_, err = engine.Assign(ctx, candidate(1, 10, "2024-06-02", dest))
	assert.NoError(t, err)

	require.NoError(t, engine.Deactivate(ctx, models.AssignmentID{DriverID: 1, VehicleID: 10, TravelDate: "2024-06-01"}))
	_, err = engine.Assign(ctx, candidate(1, 11, "2024-06-01", dest))
	assert.NoError(t, err)
}

func TestEngine_AssignDuplicateIdentityIsConflict(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))
	id := models.AssignmentID{DriverID: 1, VehicleID: 10, TravelDate: "2024-06-01"}

	_, err := engine.Assign(ctx, candidate(1, 10, id.TravelDate, models.Location{Lat: 1, Lon: 1}))
	require.NoError(t, err)
	require.NoError(t, engine.Deactivate(ctx, id))

	_, err = engine.Assign(ctx, candidate(1, 10, id.TravelDate, models.Location{Lat: 2, Lon: 2}))
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, db.ErrDuplicateAssignment)
}

func TestEngine_AssignMissingReferenceIsNotFound(t *testing.T) {
	ctx := context.Background()
	fleet := db.NewMemoryFleetCollection()
	driver, err := fleet.InsertDriver(ctx, models.Driver{FirstName: "Ana", LastName: "Ruiz", LicenseNumber: "L-1"})
	require.NoError(t, err)

	engine := NewEngine(db.NewMemoryAssignmentCollection(fleet), WithClock(fixedClock(2024, time.May, 20)))
	_, err = engine.Assign(ctx, candidate(driver.ID, 99, "2024-06-01", models.Location{Lat: 1, Lon: 1}))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestEngine_AssignRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := fixedClock(2024, time.May, 20)
	engine, _ := newMemoryEngine(now)

	comments := "fragile cargo"
	input := candidate(4, 40, "2024-06-03", models.Location{Lat: 21.5, Lon: -101.25})
	input.Comments = &comments

	_, err := engine.Assign(ctx, input)
	require.NoError(t, err)

	found, err := engine.Get(ctx, input.ID())
	require.NoError(t, err)

	want := input
	want.Active = true
	want.CreationDate = now().UTC()
	assert.Equal(t, want, *found)
}

func TestEngine_AssignStoreFailurePassesThrough(t *testing.T) {
	ctx := context.Background()
	store := new(MockAssignmentCollection)
	engine := NewEngine(store, WithClock(fixedClock(2024, time.May, 20)))
	boom := errors.New("connection refused")

	store.On("FindActiveByDriverOrVehicleAtDate", ctx, int64(1), int64(10), models.Date("2024-06-01")).Return(nil, boom)

	_, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", models.Location{Lat: 1, Lon: 1}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindUnknown, KindOf(err))
	store.AssertNotCalled(t, "InsertAssignment", mock.Anything, mock.Anything)
}

func TestEngine_IsEditable(t *testing.T) {
	engine := NewEngine(nil, WithClock(fixedClock(2024, time.June, 1)))

	tests := []struct {
		name      string
		date      models.Date
		completed bool
		want      bool
	}{
		{"future not completed", "2024-06-02", false, true},
		{"future completed", "2024-06-02", true, true},
		{"today not completed", "2024-06-01", false, false},
		{"today completed", "2024-06-01", true, true},
		{"past not completed", "2024-05-31", false, false},
		{"past completed", "2024-05-31", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := models.Assignment{TravelDate: tt.date, CompletedSuccessfully: tt.completed}
			assert.Equal(t, tt.want, engine.IsEditable(a))
		})
	}
}

func TestEngine_WithLocationMovesToday(t *testing.T) {
	// 02:00 UTC on June 2 is still June 1 in Mexico City.
	now := func() time.Time { return time.Date(2024, time.June, 2, 2, 0, 0, 0, time.UTC) }
	loc := time.FixedZone("CST", -6*60*60)

	assert.Equal(t, models.Date("2024-06-02"), NewEngine(nil, WithClock(now)).Today())
	assert.Equal(t, models.Date("2024-06-01"), NewEngine(nil, WithClock(now), WithLocation(loc)).Today())
	assert.Equal(t, models.Date("2024-06-01"), NewEngine(nil, WithLocation(loc), WithClock(now)).Today())
}

func TestEngine_UpdateScenario(t *testing.T) {
	ctx := context.Background()
	engine, store := newMemoryEngine(fixedClock(2024, time.June, 2))
	yesterday := models.Date("2024-06-01")

	seed := candidate(1, 10, yesterday, models.Location{Lat: 19.0, Lon: -99.0})
	seed.Active = true
	seed.CreationDate = time.Date(2024, time.May, 30, 8, 0, 0, 0, time.UTC)
	_, err := store.InsertAssignment(ctx, seed)
	require.NoError(t, err)

	change := seed
	change.RouteName = "south loop"

	_, err = engine.Update(ctx, change)
	assert.ErrorIs(t, err, ErrInvalidState)

	completed := seed
	completed.CompletedSuccessfully = true
	_, err = store.UpdateAssignment(ctx, completed)
	require.NoError(t, err)

	change.CompletedSuccessfully = true
	updated, err := engine.Update(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, "south loop", updated.RouteName)
	assert.True(t, updated.Active)
	assert.Equal(t, seed.CreationDate, updated.CreationDate)
}

func TestEngine_UpdateKeepsOwnDestination(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))
	dest := models.Location{Lat: 19.0, Lon: -99.0}

	a, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", dest))
	require.NoError(t, err)

	problem := "flat tire"
	a.ProblemDescription = &problem
	updated, err := engine.Update(ctx, *a)
	require.NoError(t, err)
	require.NotNil(t, updated.ProblemDescription)
	assert.Equal(t, problem, *updated.ProblemDescription)
}

func TestEngine_UpdateDestinationConflict(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))
	taken := models.Location{Lat: 19.0, Lon: -99.0}

	_, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", taken))
	require.NoError(t, err)
	b, err := engine.Assign(ctx, candidate(2, 20, "2024-06-01", models.Location{Lat: 20, Lon: -100}))
	require.NoError(t, err)

	b.DestinationLocation = taken
	_, err = engine.Update(ctx, *b)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEngine_UpdateMissingIsNotFound(t *testing.T) {
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))

	_, err := engine.Update(context.Background(), candidate(1, 10, "2024-06-01", models.Location{Lat: 1, Lon: 1}))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_UpdateNotEditableSkipsDestinationCheck(t *testing.T) {
	ctx := context.Background()
	store := new(MockAssignmentCollection)
	engine := NewEngine(store, WithClock(fixedClock(2024, time.June, 2)))

	stored := candidate(1, 10, "2024-06-01", models.Location{Lat: 1, Lon: 1})
	stored.Active = true
	store.On("FindAssignmentByID", ctx, stored.ID()).Return(&stored, nil)

	_, err := engine.Update(ctx, stored)
	assert.ErrorIs(t, err, ErrInvalidState)
	store.AssertNotCalled(t, "FindActiveByDestinationAtDate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpdateAssignment", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestEngine_UpdatePassesOwnIdentityAsExclusion(t *testing.T) {
	ctx := context.Background()
	store := new(MockAssignmentCollection)
	engine := NewEngine(store, WithClock(fixedClock(2024, time.May, 20)))

	stored := candidate(1, 10, "2024-06-01", models.Location{Lat: 1, Lon: 1})
	stored.Active = true
	id := stored.ID()

	store.On("FindAssignmentByID", ctx, id).Return(&stored, nil)
	store.On("FindActiveByDestinationAtDate", ctx, stored.DestinationLocation, id.TravelDate, &id).Return(nil, db.ErrAssignmentNotFound)
	store.On("UpdateAssignment", ctx, stored).Return(&stored, nil)

	_, err := engine.Update(ctx, stored)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestEngine_DeactivateIgnoresEditability(t *testing.T) {
	ctx := context.Background()
	engine, store := newMemoryEngine(fixedClock(2024, time.June, 10))

	seed := candidate(1, 10, "2024-06-01", models.Location{Lat: 1, Lon: 1})
	seed.Active = true
	_, err := store.InsertAssignment(ctx, seed)
	require.NoError(t, err)
	require.False(t, engine.IsEditable(seed))

	require.NoError(t, engine.Deactivate(ctx, seed.ID()))

	found, err := engine.Get(ctx, seed.ID())
	require.NoError(t, err)
	assert.False(t, found.Active)

	err = engine.Deactivate(ctx, models.AssignmentID{DriverID: 9, VehicleID: 9, TravelDate: "2024-06-01"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_IsLocationTaken(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.May, 20))
	dest := models.Location{Lat: 19.0, Lon: -99.0}

	a, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", dest))
	require.NoError(t, err)
	id := a.ID()

	taken, err := engine.IsLocationTaken(ctx, dest, "2024-06-01", nil)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = engine.IsLocationTaken(ctx, dest, "2024-06-01", &id)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = engine.IsLocationTaken(ctx, dest, "2024-06-02", nil)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestEngine_LookupAndQueries(t *testing.T) {
	ctx := context.Background()
	engine, _ := newMemoryEngine(fixedClock(2024, time.June, 1))

	_, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", models.Location{Lat: 1, Lon: 1}))
	require.NoError(t, err)
	_, err = engine.Assign(ctx, candidate(1, 10, "2024-06-02", models.Location{Lat: 1, Lon: 1}))
	require.NoError(t, err)
	_, err = engine.Assign(ctx, candidate(2, 20, "2024-06-01", models.Location{Lat: 2, Lon: 2}))
	require.NoError(t, err)
	require.NoError(t, engine.Deactivate(ctx, models.AssignmentID{DriverID: 2, VehicleID: 20, TravelDate: "2024-06-01"}))

	_, found, err := engine.Lookup(ctx, models.AssignmentID{DriverID: 5, VehicleID: 5, TravelDate: "2024-06-01"})
	require.NoError(t, err)
	assert.False(t, found)

	all, err := engine.List(ctx, models.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.Date("2024-06-02"), all[0].TravelDate)

	active, err := engine.List(ctx, models.AssignmentFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	history, err := engine.DriverHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Active)

	history, err = engine.VehicleHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	count, err := engine.CountToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) Observe(operation string, err error) {
	o.outcomes = append(o.outcomes, operation+":"+KindOf(err).String())
}

func TestEngine_ObserverSeesEveryDecision(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	engine := NewEngine(db.NewMemoryAssignmentCollection(nil),
		WithClock(fixedClock(2024, time.May, 20)), WithObserver(obs))
	dest := models.Location{Lat: 3, Lon: 3}

	_, err := engine.Assign(ctx, candidate(1, 10, "2024-06-01", dest))
	require.NoError(t, err)
	_, err = engine.Assign(ctx, candidate(2, 20, "2024-06-01", dest))
	require.Error(t, err)
	_, err = engine.Update(ctx, candidate(9, 9, "2024-06-01", dest))
	require.Error(t, err)
	require.NoError(t, engine.Deactivate(ctx, models.AssignmentID{DriverID: 1, VehicleID: 10, TravelDate: "2024-06-01"}))

	assert.Equal(t, []string{
		"assign:unknown",
		"assign:conflict",
		"update:not_found",
		"deactivate:unknown",
	}, obs.outcomes)
}
