package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrInvitationNotFound  = errors.New("invitation code not found")
	ErrDuplicateInvitation = errors.New("an invitation code already exists for this email")
)

// InvitationCollection stores registration invitations. At most one code
// exists per recipient email. Update and delete only see codes issued by
// owner; anything else is ErrInvitationNotFound.
type InvitationCollection interface {
	InsertInvitation(ctx context.Context, invitation models.InvitationCode) (*models.InvitationCode, error)
	FindInvitationsByCreator(ctx context.Context, owner string) ([]models.InvitationCode, error)
	UpdateInvitationEmail(ctx context.Context, code, owner, email string) (*models.InvitationCode, error)
	DeleteInvitation(ctx context.Context, code, owner string) error
	// ConsumeInvitation removes the code issued for email and returns it.
	ConsumeInvitation(ctx context.Context, code, email string) (*models.InvitationCode, error)
}

// MongoInvitationCollection implements InvitationCollection for MongoDB.
type MongoInvitationCollection struct {
	Collection *mongo.Collection
}

// NewMongoInvitationCollection wraps the invitation_codes collection of database.
func NewMongoInvitationCollection(database *mongo.Database) *MongoInvitationCollection {
	return &MongoInvitationCollection{Collection: database.Collection("invitation_codes")}
}

// EnsureIndexes makes recipient emails unique and indexes codes by creator.
func (c *MongoInvitationCollection) EnsureIndexes(ctx context.Context) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create invitation indexes: %w", err)
	}
	return nil
}

func (c *MongoInvitationCollection) InsertInvitation(ctx context.Context, invitation models.InvitationCode) (*models.InvitationCode, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	if _, err := c.Collection.InsertOne(ctx, invitation); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateInvitation
		}
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return &invitation, nil
}

func (c *MongoInvitationCollection) FindInvitationsByCreator(ctx context.Context, owner string) ([]models.InvitationCode, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, bson.M{"created_by": owner}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	invitations := make([]models.InvitationCode, 0)
	if err := cursor.All(ctx, &invitations); err != nil {
		return nil, err
	}
	return invitations, nil
}

func (c *MongoInvitationCollection) UpdateInvitationEmail(ctx context.Context, code, owner, email string) (*models.InvitationCode, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.InvitationCode
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": code, "created_by": owner},
		bson.M{"$set": bson.M{"email": email}},
		opts,
	).Decode(&updated)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrInvitationNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicateInvitation
	case err != nil:
		return nil, fmt.Errorf("update invitation: %w", err)
	}
	return &updated, nil
}

func (c *MongoInvitationCollection) DeleteInvitation(ctx context.Context, code, owner string) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	res, err := c.Collection.DeleteOne(ctx, bson.M{"_id": code, "created_by": owner})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

func (c *MongoInvitationCollection) ConsumeInvitation(ctx context.Context, code, email string) (*models.InvitationCode, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var consumed models.InvitationCode
	err := c.Collection.FindOneAndDelete(ctx, bson.M{"_id": code, "email": email}).Decode(&consumed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume invitation: %w", err)
	}
	return &consumed, nil
}

// MemoryInvitationCollection keeps invitation codes in process.
type MemoryInvitationCollection struct {
	mu    sync.Mutex
	codes map[string]models.InvitationCode
}

func NewMemoryInvitationCollection() *MemoryInvitationCollection {
	return &MemoryInvitationCollection{codes: map[string]models.InvitationCode{}}
}

func (c *MemoryInvitationCollection) InsertInvitation(_ context.Context, invitation models.InvitationCode) (*models.InvitationCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.codes[invitation.Code]; ok || c.emailTaken(invitation.Email, "") {
		return nil, ErrDuplicateInvitation
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	c.codes[invitation.Code] = invitation
	return &invitation, nil
}

func (c *MemoryInvitationCollection) FindInvitationsByCreator(_ context.Context, owner string) ([]models.InvitationCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.InvitationCode, 0)
	for _, inv := range c.codes {
		if inv.CreatedBy == owner {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (c *MemoryInvitationCollection) UpdateInvitationEmail(_ context.Context, code, owner, email string) (*models.InvitationCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inv, ok := c.codes[code]
	if !ok || inv.CreatedBy != owner {
		return nil, ErrInvitationNotFound
	}
	if c.emailTaken(email, code) {
		return nil, ErrDuplicateInvitation
	}
	inv.Email = email
	c.codes[code] = inv
	return &inv, nil
}

func (c *MemoryInvitationCollection) DeleteInvitation(_ context.Context, code, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inv, ok := c.codes[code]
	if !ok || inv.CreatedBy != owner {
		return ErrInvitationNotFound
	}
	delete(c.codes, code)
	return nil
}

func (c *MemoryInvitationCollection) ConsumeInvitation(_ context.Context, code, email string) (*models.InvitationCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inv, ok := c.codes[code]
	if !ok || inv.Email != email {
		return nil, ErrInvitationNotFound
	}
	delete(c.codes, code)
	return &inv, nil
}

func (c *MemoryInvitationCollection) emailTaken(email, self string) bool {
	for code, inv := range c.codes {
		if code != self && inv.Email == email {
			return true
		}
	}
	return false
}
