package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryAssignmentCollection is an in-process AssignmentCollection used for
// local runs without MongoDB and by tests. Identity uniqueness is enforced
// under the collection mutex.
type MemoryAssignmentCollection struct {
	mu    sync.RWMutex
	items map[models.AssignmentID]models.Assignment
	refs  ReferenceChecker
}

// NewMemoryAssignmentCollection creates an empty store. refs may be nil, in
// which case driver and vehicle existence is not checked.
func NewMemoryAssignmentCollection(refs ReferenceChecker) *MemoryAssignmentCollection {
	return &MemoryAssignmentCollection{
		items: map[models.AssignmentID]models.Assignment{},
		refs:  refs,
	}
}

func cloneAssignment(a models.Assignment) models.Assignment {
	if a.ProblemDescription != nil {
		p := *a.ProblemDescription
		a.ProblemDescription = &p
	}
	if a.Comments != nil {
		c := *a.Comments
		a.Comments = &c
	}
	return a
}

func (c *MemoryAssignmentCollection) InsertAssignment(ctx context.Context, assignment models.Assignment) (*models.Assignment, error) {
	if err := checkReferences(ctx, c.refs, assignment.DriverID, assignment.VehicleID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := assignment.ID()
	if _, ok := c.items[id]; ok {
		return nil, ErrDuplicateAssignment
	}
	stored := cloneAssignment(assignment)
	c.items[id] = stored
	out := cloneAssignment(stored)
	return &out, nil
}

func (c *MemoryAssignmentCollection) FindAssignmentByID(_ context.Context, id models.AssignmentID) (*models.Assignment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.items[id]
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	out := cloneAssignment(a)
	return &out, nil
}

func (c *MemoryAssignmentCollection) FindActiveByDriverOrVehicleAtDate(_ context.Context, driverID, vehicleID int64, travelDate models.Date) ([]models.Assignment, error) {
	return c.filter(func(a models.Assignment) bool {
		return a.Active && a.TravelDate == travelDate &&
			(a.DriverID == driverID || a.VehicleID == vehicleID)
	}), nil
}

func (c *MemoryAssignmentCollection) FindActiveByDestinationAtDate(_ context.Context, location models.Location, travelDate models.Date, exclude *models.AssignmentID) (*models.Assignment, error) {
	matches := c.filter(func(a models.Assignment) bool {
		if exclude != nil && a.ID() == *exclude {
			return false
		}
		return a.Active && a.TravelDate == travelDate && a.DestinationLocation.Equal(location)
	})
	if len(matches) == 0 {
		return nil, ErrAssignmentNotFound
	}
	return &matches[0], nil
}

func (c *MemoryAssignmentCollection) ListAssignments(_ context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	return c.filter(func(a models.Assignment) bool {
		if filter.ActiveOnly && !a.Active {
			return false
		}
		if filter.TravelDate != nil && a.TravelDate != *filter.TravelDate {
			return false
		}
		return true
	}), nil
}

func (c *MemoryAssignmentCollection) UpdateAssignment(_ context.Context, assignment models.Assignment) (*models.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := assignment.ID()
	stored, ok := c.items[id]
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	stored.ApplyChanges(cloneAssignment(assignment))
	c.items[id] = stored
	out := cloneAssignment(stored)
	return &out, nil
}

func (c *MemoryAssignmentCollection) DeactivateAssignment(_ context.Context, id models.AssignmentID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.items[id]
	if !ok {
		return ErrAssignmentNotFound
	}
	stored.Active = false
	c.items[id] = stored
	return nil
}

func (c *MemoryAssignmentCollection) ListAssignmentsByDriver(_ context.Context, driverID int64) ([]models.Assignment, error) {
	return c.filter(func(a models.Assignment) bool { return a.DriverID == driverID }), nil
}

func (c *MemoryAssignmentCollection) ListAssignmentsByVehicle(_ context.Context, vehicleID int64) ([]models.Assignment, error) {
	return c.filter(func(a models.Assignment) bool { return a.VehicleID == vehicleID }), nil
}

func (c *MemoryAssignmentCollection) CountAssignmentsOnDate(_ context.Context, travelDate models.Date) (int64, error) {
	return int64(len(c.filter(func(a models.Assignment) bool { return a.TravelDate == travelDate }))), nil
}

// filter returns matching copies ordered by travel date then creation date, newest first.
func (c *MemoryAssignmentCollection) filter(keep func(models.Assignment) bool) []models.Assignment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Assignment, 0)
	for _, a := range c.items {
		if keep(a) {
			out = append(out, cloneAssignment(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TravelDate != out[j].TravelDate {
			return out[i].TravelDate > out[j].TravelDate
		}
		if !out[i].CreationDate.Equal(out[j].CreationDate) {
			return out[i].CreationDate.After(out[j].CreationDate)
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out
}

// MemoryFleetCollection keeps drivers and vehicles in process.
type MemoryFleetCollection struct {
	mu       sync.RWMutex
	drivers  map[int64]models.Driver
	vehicles map[int64]models.Vehicle
	lastID   map[string]int64
}

func NewMemoryFleetCollection() *MemoryFleetCollection {
	return &MemoryFleetCollection{
		drivers:  map[int64]models.Driver{},
		vehicles: map[int64]models.Vehicle{},
		lastID:   map[string]int64{},
	}
}

func (c *MemoryFleetCollection) InsertDriver(_ context.Context, driver models.Driver) (*models.Driver, error) {
	driver.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.licenseTaken(driver.LicenseNumber, 0) {
		return nil, ErrDuplicateDriver
	}
	c.lastID["drivers"]++
	driver.ID = c.lastID["drivers"]
	driver.CreatedAt = time.Now().UTC()
	c.drivers[driver.ID] = driver
	return &driver, nil
}

func (c *MemoryFleetCollection) FindDriverByID(_ context.Context, id int64) (*models.Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.drivers[id]
	if !ok {
		return nil, ErrDriverNotFound
	}
	return &d, nil
}

func (c *MemoryFleetCollection) FindDrivers(_ context.Context) ([]models.Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Driver, 0, len(c.drivers))
	for _, d := range c.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryFleetCollection) CountDrivers(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.drivers)), nil
}

func (c *MemoryFleetCollection) UpdateDriver(_ context.Context, driver models.Driver) (*models.Driver, error) {
	driver.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.drivers[driver.ID]
	if !ok {
		return nil, ErrDriverNotFound
	}
	if c.licenseTaken(driver.LicenseNumber, driver.ID) {
		return nil, ErrDuplicateDriver
	}
	stored.FirstName = driver.FirstName
	stored.LastName = driver.LastName
	stored.LicenseNumber = driver.LicenseNumber
	stored.Phone = driver.Phone
	c.drivers[driver.ID] = stored
	return &stored, nil
}

func (c *MemoryFleetCollection) DeleteDriver(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.drivers[id]; !ok {
		return ErrDriverNotFound
	}
	delete(c.drivers, id)
	return nil
}

// licenseTaken reports whether a driver other than self holds license.
func (c *MemoryFleetCollection) licenseTaken(license string, self int64) bool {
	for id, d := range c.drivers {
		if id != self && d.LicenseNumber == license {
			return true
		}
	}
	return false
}

func (c *MemoryFleetCollection) InsertVehicle(_ context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	vehicle.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vehicleTaken(vehicle, 0) {
		return nil, ErrDuplicateVehicle
	}
	c.lastID["vehicles"]++
	vehicle.ID = c.lastID["vehicles"]
	vehicle.EntryDate = time.Now().UTC()
	c.vehicles[vehicle.ID] = vehicle
	return &vehicle, nil
}

func (c *MemoryFleetCollection) FindVehicleByID(_ context.Context, id int64) (*models.Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.vehicles[id]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	return &v, nil
}

func (c *MemoryFleetCollection) FindVehicles(_ context.Context) ([]models.Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Vehicle, 0, len(c.vehicles))
	for _, v := range c.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryFleetCollection) CountVehicles(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.vehicles)), nil
}

func (c *MemoryFleetCollection) UpdateVehicle(_ context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	vehicle.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.vehicles[vehicle.ID]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	if c.vehicleTaken(vehicle, vehicle.ID) {
		return nil, ErrDuplicateVehicle
	}
	stored.VIN = vehicle.VIN
	stored.Plate = vehicle.Plate
	stored.Type = vehicle.Type
	stored.Make = vehicle.Make
	stored.Model = vehicle.Model
	stored.Year = vehicle.Year
	c.vehicles[vehicle.ID] = stored
	return &stored, nil
}

func (c *MemoryFleetCollection) DeleteVehicle(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.vehicles[id]; !ok {
		return ErrVehicleNotFound
	}
	delete(c.vehicles, id)
	return nil
}

// vehicleTaken reports whether a vehicle other than self holds v's VIN or plate.
func (c *MemoryFleetCollection) vehicleTaken(v models.Vehicle, self int64) bool {
	for id, other := range c.vehicles {
		if id != self && (other.VIN == v.VIN || other.Plate == v.Plate) {
			return true
		}
	}
	return false
}

func (c *MemoryFleetCollection) DriverExists(_ context.Context, id int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.drivers[id]
	return ok, nil
}

func (c *MemoryFleetCollection) VehicleExists(_ context.Context, id int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vehicles[id]
	return ok, nil
}

// MemoryUserCollection keeps API users in process.
type MemoryUserCollection struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserCollection() *MemoryUserCollection {
	return &MemoryUserCollection{users: map[string]models.User{}}
}

func (c *MemoryUserCollection) InsertUser(_ context.Context, user models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range c.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrDuplicateUser
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	user.IsActive = true
	c.users[user.ID.Hex()] = user
	return nil
}

func (c *MemoryUserCollection) FindUserByID(_ context.Context, id string) (*models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (c *MemoryUserCollection) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return c.findBy(func(u models.User) bool { return u.Username == username })
}

func (c *MemoryUserCollection) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return c.findBy(func(u models.User) bool { return u.Email == email })
}

func (c *MemoryUserCollection) FindUsers(_ context.Context) ([]models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (c *MemoryUserCollection) UpdateUser(_ context.Context, id string, user models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[id]; !ok {
		return ErrUserNotFound
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	user.ID = objectID
	user.UpdatedAt = time.Now()
	c.users[id] = user
	return nil
}

func (c *MemoryUserCollection) UpdateLastLogin(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[id]
	if !ok {
		return ErrUserNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	u.UpdatedAt = now
	c.users[id] = u
	return nil
}

func (c *MemoryUserCollection) DeleteUser(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(c.users, id)
	return nil
}

func (c *MemoryUserCollection) findBy(match func(models.User) bool) (*models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, u := range c.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}
