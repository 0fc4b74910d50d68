package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeEventType represents what changed in the store
type ChangeEventType string

const (
	ChangeEventMessageAppended     ChangeEventType = "message_appended"
	ChangeEventConversationUpdated ChangeEventType = "conversation_updated"
	ChangeEventReviewSubmitted     ChangeEventType = "review_submitted"
	ChangeEventProviderUpdated     ChangeEventType = "provider_updated"
	ChangeEventNotificationsRead   ChangeEventType = "notifications_read"
)

// ChangeEvent is published on the event bus whenever a watched entity changes
type ChangeEvent struct {
	ID        string          `json:"id"`
	Type      ChangeEventType `json:"type"`
	EntityID  string          `json:"entity_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewChangeEvent creates a change event carrying payload encoded as JSON
func NewChangeEvent(eventType ChangeEventType, entityID string, payload interface{}) (*ChangeEvent, error) {
	event := &ChangeEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Payload = data
	}
	return event, nil
}

// Decode unmarshals the payload into v
func (e *ChangeEvent) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}
