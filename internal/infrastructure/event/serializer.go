package event

import (
	"encoding/json"
	"fmt"

	"github.com/casehub/backend/internal/domain/shared"
)

// EventSerializer converts envelopes to and from the outbox JSON form.
// The payload is decoded by the envelope type, so no registration is needed
// beyond the closed set of payloads in the shared package.
type EventSerializer struct{}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{}
}

// Serialize validates and encodes an event
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.ID(), err)
	}
	return data, nil
}

// Deserialize decodes data and checks it carries the expected type
func (s *EventSerializer) Deserialize(eventType shared.EventType, data []byte) (shared.DomainEvent, error) {
	if !eventType.IsValid() {
		return shared.DomainEvent{}, fmt.Errorf("unknown event type: %s", eventType)
	}

	var event shared.DomainEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return shared.DomainEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type() != eventType {
		return shared.DomainEvent{}, fmt.Errorf("event type mismatch: stored %s, payload %s", eventType, event.Type())
	}
	if err := event.Validate(); err != nil {
		return shared.DomainEvent{}, err
	}
	return event, nil
}
