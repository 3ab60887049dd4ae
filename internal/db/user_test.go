package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-assignments/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestUserCollection(t *testing.T) *MongoUserCollection {
	database := testDatabase(t)
	collection := database.Collection("users")
	collection.Drop(context.Background())
	userCollection := &MongoUserCollection{Collection: collection}
	require.NoError(t, userCollection.EnsureIndexes(context.Background()))
	return userCollection
}

func testUser() models.User {
	return models.User{
		ID:           primitive.NewObjectID(),
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleDispatcher,
		FirstName:    "Test",
		LastName:     "User",
	}
}

func TestMongoUserCollection_InsertUser(t *testing.T) {
	userCollection := newTestUserCollection(t)
	user := testUser()

	err := userCollection.InsertUser(context.Background(), user)
	assert.NoError(t, err)

	// Verify user was inserted
	var foundUser models.User
	err = userCollection.Collection.FindOne(context.Background(), bson.M{"username": "testuser"}).Decode(&foundUser)
	assert.NoError(t, err)
	assert.Equal(t, user.Email, foundUser.Email)
	assert.Equal(t, user.Role, foundUser.Role)
	assert.True(t, foundUser.IsActive)
	assert.NotZero(t, foundUser.CreatedAt)

	// usernames are unique
	dup := testUser()
	dup.Email = "other@example.com"
	assert.ErrorIs(t, userCollection.InsertUser(context.Background(), dup), ErrDuplicateUser)
}

func TestMongoUserCollection_Lookups(t *testing.T) {
	userCollection := newTestUserCollection(t)
	user := testUser()
	require.NoError(t, userCollection.InsertUser(context.Background(), user))

	foundUser, err := userCollection.FindUserByID(context.Background(), user.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, user.Username, foundUser.Username)

	foundUser, err = userCollection.FindUserByUsername(context.Background(), "testuser")
	assert.NoError(t, err)
	assert.Equal(t, user.Email, foundUser.Email)

	foundUser, err = userCollection.FindUserByEmail(context.Background(), "test@example.com")
	assert.NoError(t, err)
	assert.Equal(t, user.Username, foundUser.Username)

	_, err = userCollection.FindUserByID(context.Background(), "invalid-id")
	assert.Error(t, err)
	_, err = userCollection.FindUserByUsername(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrUserNotFound)

	users, err := userCollection.FindUsers(context.Background())
	assert.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestMongoUserCollection_UpdateUser(t *testing.T) {
	userCollection := newTestUserCollection(t)
	user := testUser()
	require.NoError(t, userCollection.InsertUser(context.Background(), user))

	inserted, err := userCollection.FindUserByID(context.Background(), user.ID.Hex())
	require.NoError(t, err)

	updatedUser := *inserted
	updatedUser.FirstName = "Updated"
	err = userCollection.UpdateUser(context.Background(), user.ID.Hex(), updatedUser)
	assert.NoError(t, err)

	foundUser, err := userCollection.FindUserByID(context.Background(), user.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, "Updated", foundUser.FirstName)
	assert.False(t, foundUser.UpdatedAt.Before(inserted.UpdatedAt))

	err = userCollection.UpdateUser(context.Background(), primitive.NewObjectID().Hex(), updatedUser)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMongoUserCollection_UpdateLastLogin(t *testing.T) {
	userCollection := newTestUserCollection(t)
	user := testUser()
	require.NoError(t, userCollection.InsertUser(context.Background(), user))

	err := userCollection.UpdateLastLogin(context.Background(), user.ID.Hex())
	assert.NoError(t, err)

	updatedUser, err := userCollection.FindUserByID(context.Background(), user.ID.Hex())
	assert.NoError(t, err)
	assert.NotNil(t, updatedUser.LastLogin)
}

func TestMongoUserCollection_DeleteUser(t *testing.T) {
	userCollection := newTestUserCollection(t)
	user := testUser()
	require.NoError(t, userCollection.InsertUser(context.Background(), user))

	require.NoError(t, userCollection.DeleteUser(context.Background(), user.ID.Hex()))
	_, err := userCollection.FindUserByID(context.Background(), user.ID.Hex())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, userCollection.DeleteUser(context.Background(), user.ID.Hex()), ErrUserNotFound)
	assert.ErrorIs(t, userCollection.DeleteUser(context.Background(), "not-an-id"), ErrUserNotFound)
}
