package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// exerciseInvitations runs the shared contract against any InvitationCollection.
func exerciseInvitations(t *testing.T, invitations InvitationCollection) {
	ctx := context.Background()
	base := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	first, err := invitations.InsertInvitation(ctx, models.InvitationCode{Code: "code-1", Email: "a@example.com", CreatedBy: "alice", CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, "code-1", first.Code)
	_, err = invitations.InsertInvitation(ctx, models.InvitationCode{Code: "code-2", Email: "b@example.com", CreatedBy: "alice", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = invitations.InsertInvitation(ctx, models.InvitationCode{Code: "code-3", Email: "c@example.com", CreatedBy: "bob", CreatedAt: base})
	require.NoError(t, err)

	_, err = invitations.InsertInvitation(ctx, models.InvitationCode{Code: "code-4", Email: "a@example.com", CreatedBy: "bob"})
	assert.ErrorIs(t, err, ErrDuplicateInvitation)

	mine, err := invitations.FindInvitationsByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "code-1", mine[0].Code)
	assert.Equal(t, "code-2", mine[1].Code)

	updated, err := invitations.UpdateInvitationEmail(ctx, "code-1", "alice", "a2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a2@example.com", updated.Email)
	_, err = invitations.UpdateInvitationEmail(ctx, "code-1", "alice", "b@example.com")
	assert.ErrorIs(t, err, ErrDuplicateInvitation)
	_, err = invitations.UpdateInvitationEmail(ctx, "code-1", "bob", "x@example.com")
	assert.ErrorIs(t, err, ErrInvitationNotFound, "codes are only visible to their creator")
	_, err = invitations.UpdateInvitationEmail(ctx, "missing", "alice", "x@example.com")
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	assert.ErrorIs(t, invitations.DeleteInvitation(ctx, "code-3", "alice"), ErrInvitationNotFound)
	require.NoError(t, invitations.DeleteInvitation(ctx, "code-3", "bob"))
	assert.ErrorIs(t, invitations.DeleteInvitation(ctx, "code-3", "bob"), ErrInvitationNotFound)

	_, err = invitations.ConsumeInvitation(ctx, "code-2", "a2@example.com")
	assert.ErrorIs(t, err, ErrInvitationNotFound, "code must match the invited email")
	consumed, err := invitations.ConsumeInvitation(ctx, "code-2", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", consumed.CreatedBy)
	_, err = invitations.ConsumeInvitation(ctx, "code-2", "b@example.com")
	assert.ErrorIs(t, err, ErrInvitationNotFound, "codes are single use")
}

func TestMemoryInvitationCollection(t *testing.T) {
	exerciseInvitations(t, NewMemoryInvitationCollection())
}

func TestMongoInvitationCollection_Integration(t *testing.T) {
	database := testDatabase(t)
	invitations := NewMongoInvitationCollection(database)
	require.NoError(t, invitations.EnsureIndexes(context.Background()))
	exerciseInvitations(t, invitations)
}

func TestMongoInvitationCollection_NilCollection(t *testing.T) {
	invitations := &MongoInvitationCollection{}
	_, err := invitations.InsertInvitation(context.Background(), models.InvitationCode{Code: "c"})
	assert.Error(t, err)
	assert.Error(t, invitations.DeleteInvitation(context.Background(), "c", "o"))
	_, err = invitations.ConsumeInvitation(context.Background(), "c", "e")
	assert.Error(t, err)
}
