package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoFleetCollection implements DriverCollection, VehicleCollection and
// ReferenceChecker for MongoDB. Numeric ids come from a counters collection.
type MongoFleetCollection struct {
	Drivers  *mongo.Collection
	Vehicles *mongo.Collection
	Counters *mongo.Collection
}

// NewMongoFleetCollection wraps the drivers, vehicles and counters collections of database.
func NewMongoFleetCollection(database *mongo.Database) *MongoFleetCollection {
	return &MongoFleetCollection{
		Drivers:  database.Collection("drivers"),
		Vehicles: database.Collection("vehicles"),
		Counters: database.Collection("counters"),
	}
}

// EnsureIndexes creates the uniqueness constraints on license numbers, VINs and plates.
func (c *MongoFleetCollection) EnsureIndexes(ctx context.Context) error {
	if c.Drivers == nil || c.Vehicles == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Drivers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "license_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create driver indexes: %w", err)
	}
	_, err = c.Vehicles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "vin", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "plate", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create vehicle indexes: %w", err)
	}
	return nil
}

func (c *MongoFleetCollection) nextID(ctx context.Context, name string) (int64, error) {
	if c.Counters == nil {
		return 0, fmt.Errorf("mongo collection is nil")
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := c.Counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

// InsertDriver registers a driver and returns it with its assigned id.
func (c *MongoFleetCollection) InsertDriver(ctx context.Context, driver models.Driver) (*models.Driver, error) {
	if c.Drivers == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	id, err := c.nextID(ctx, "drivers")
	if err != nil {
		return nil, err
	}
	driver.ID = id
	driver.Normalize()
	driver.CreatedAt = time.Now().UTC()
	if _, err := c.Drivers.InsertOne(ctx, driver); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateDriver
		}
		return nil, fmt.Errorf("insert driver: %w", err)
	}
	return &driver, nil
}

// FindDriverByID finds a driver by id.
func (c *MongoFleetCollection) FindDriverByID(ctx context.Context, id int64) (*models.Driver, error) {
	if c.Drivers == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var driver models.Driver
	err := c.Drivers.FindOne(ctx, bson.M{"_id": id}).Decode(&driver)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return &driver, nil
}

// FindDrivers lists all drivers ordered by id.
func (c *MongoFleetCollection) FindDrivers(ctx context.Context) ([]models.Driver, error) {
	if c.Drivers == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Drivers.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	drivers := make([]models.Driver, 0)
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

// CountDrivers counts registered drivers.
func (c *MongoFleetCollection) CountDrivers(ctx context.Context) (int64, error) {
	if c.Drivers == nil {
		return 0, fmt.Errorf("mongo collection is nil")
	}
	return c.Drivers.CountDocuments(ctx, bson.M{})
}

// UpdateDriver replaces the name, license number and phone of a driver.
func (c *MongoFleetCollection) UpdateDriver(ctx context.Context, driver models.Driver) (*models.Driver, error) {
	if c.Drivers == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	driver.Normalize()
	update := bson.M{"$set": bson.M{
		"first_name":     driver.FirstName,
		"last_name":      driver.LastName,
		"license_number": driver.LicenseNumber,
		"phone":          driver.Phone,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Driver
	err := c.Drivers.FindOneAndUpdate(ctx, bson.M{"_id": driver.ID}, update, opts).Decode(&updated)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrDriverNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicateDriver
	case err != nil:
		return nil, fmt.Errorf("update driver: %w", err)
	}
	return &updated, nil
}

// DeleteDriver removes a driver.
func (c *MongoFleetCollection) DeleteDriver(ctx context.Context, id int64) error {
	return deleteByID(ctx, c.Drivers, id, ErrDriverNotFound)
}

// InsertVehicle registers a vehicle. A repeated VIN or plate is reported as
// ErrDuplicateVehicle.
func (c *MongoFleetCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	if c.Vehicles == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	id, err := c.nextID(ctx, "vehicles")
	if err != nil {
		return nil, err
	}
	vehicle.ID = id
	vehicle.Normalize()
	vehicle.EntryDate = time.Now().UTC()
	if _, err := c.Vehicles.InsertOne(ctx, vehicle); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateVehicle
		}
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return &vehicle, nil
}

// FindVehicleByID finds a vehicle by id.
func (c *MongoFleetCollection) FindVehicleByID(ctx context.Context, id int64) (*models.Vehicle, error) {
	if c.Vehicles == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var vehicle models.Vehicle
	err := c.Vehicles.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// FindVehicles lists all vehicles ordered by id.
func (c *MongoFleetCollection) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	if c.Vehicles == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Vehicles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	vehicles := make([]models.Vehicle, 0)
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// CountVehicles counts registered vehicles.
func (c *MongoFleetCollection) CountVehicles(ctx context.Context) (int64, error) {
	if c.Vehicles == nil {
		return 0, fmt.Errorf("mongo collection is nil")
	}
	return c.Vehicles.CountDocuments(ctx, bson.M{})
}

// UpdateVehicle replaces the descriptive fields of a vehicle. The unique
// indexes reject a VIN or plate held by any other vehicle.
func (c *MongoFleetCollection) UpdateVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	if c.Vehicles == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	vehicle.Normalize()
	update := bson.M{"$set": bson.M{
		"vin":   vehicle.VIN,
		"plate": vehicle.Plate,
		"type":  vehicle.Type,
		"make":  vehicle.Make,
		"model": vehicle.Model,
		"year":  vehicle.Year,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Vehicle
	err := c.Vehicles.FindOneAndUpdate(ctx, bson.M{"_id": vehicle.ID}, update, opts).Decode(&updated)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrVehicleNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicateVehicle
	case err != nil:
		return nil, fmt.Errorf("update vehicle: %w", err)
	}
	return &updated, nil
}

// DeleteVehicle removes a vehicle.
func (c *MongoFleetCollection) DeleteVehicle(ctx context.Context, id int64) error {
	return deleteByID(ctx, c.Vehicles, id, ErrVehicleNotFound)
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id int64, notFound error) error {
	if coll == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}

// DriverExists reports whether a driver with id is registered.
func (c *MongoFleetCollection) DriverExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, c.Drivers, id)
}

// VehicleExists reports whether a vehicle with id is registered.
func (c *MongoFleetCollection) VehicleExists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, c.Vehicles, id)
}

func exists(ctx context.Context, coll *mongo.Collection, id int64) (bool, error) {
	if coll == nil {
		return false, fmt.Errorf("mongo collection is nil")
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
