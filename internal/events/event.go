// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types, also used as AMQP routing keys
const (
	FamilyCreated   = "family.created"
	FamilyJoined    = "family.joined"
	ActivityCreated = "activity.created"
)

// Types lists every event type the service emits
var Types = []string{FamilyCreated, FamilyJoined, ActivityCreated}

// Event is a domain event message
type Event struct {
	Type       string                 `json:"type"`
	FamilyID   int64                  `json:"family_id"`
	UserID     string                 `json:"user_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// New creates an event stamped with the current time
func New(eventType string, familyID int64, userID string, data map[string]interface{}) Event {
	return Event{
		Type:       eventType,
		FamilyID:   familyID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// ToJSON encodes the event body
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event body
func FromJSON(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event has no type")
	}
	return e, nil
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
