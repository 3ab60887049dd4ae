// Package events publishes assignment lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ukydev/fleet-assignments/internal/models"
)

// Event types.
const (
	AssignmentCreated     = "created"
	AssignmentUpdated     = "updated"
	AssignmentDeactivated = "deactivated"
)

// AssignmentEvent is the payload sent for every accepted assignment change.
type AssignmentEvent struct {
	Type       string              `json:"type"`
	ID         models.AssignmentID `json:"id"`
	Assignment *models.Assignment  `json:"assignment,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewAssignmentEvent builds an event for a. a may be nil for deactivations.
func NewAssignmentEvent(eventType string, id models.AssignmentID, a *models.Assignment) AssignmentEvent {
	return AssignmentEvent{
		Type:       eventType,
		ID:         id,
		Assignment: a,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers assignment events. Delivery is best effort: a failed
// publish never undoes the change that produced it.
type Publisher interface {
	Publish(ctx context.Context, event AssignmentEvent) error
	Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AssignmentEvent) error { return nil }

func (NopPublisher) Close() {}

// Topic returns the topic for event under prefix, e.g.
// fleet/assignments/created/12/40/2024-06-01.
func Topic(prefix string, event AssignmentEvent) string {
	return fmt.Sprintf("%s/%s/%d/%d/%s", prefix, event.Type, event.ID.DriverID, event.ID.VehicleID, event.ID.TravelDate)
}

func encode(event AssignmentEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return payload, nil
}
