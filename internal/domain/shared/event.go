package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of event kinds flowing through the bus.
type EventType string

const (
	EventTypeBudgetChanged     EventType = "budget-changed"
	EventTypeCaseCreated       EventType = "case-created"
	EventTypeCaseUpdated       EventType = "case-updated"
	EventTypeCaseStatusChanged EventType = "case-status-changed"
	EventTypeProgramCreated    EventType = "program-created"
	EventTypeProgramUpdated    EventType = "program-updated"
	EventTypeProgramCompleted  EventType = "program-completed"
)

// AllEventTypes lists every valid event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBudgetChanged,
		EventTypeCaseCreated,
		EventTypeCaseUpdated,
		EventTypeCaseStatusChanged,
		EventTypeProgramCreated,
		EventTypeProgramUpdated,
		EventTypeProgramCompleted,
	}
}

// IsValid returns true if t is a member of the enumeration
func (t EventType) IsValid() bool {
	for _, known := range AllEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the string representation
func (t EventType) String() string {
	return string(t)
}

// Metadata keys used by emitters.
const (
	MetadataAction  = "action"
	MetadataActorID = "actor_id"
)

// DomainEvent is the immutable envelope handed to subscribers.
// All fields are unexported; accessors return copies so a subscriber can
// never change what another subscriber observes.
type DomainEvent struct {
	id          uuid.UUID
	eventType   EventType
	occurredAt  time.Time
	source      string
	aggregateID uuid.UUID
	payload     EventPayload
	metadata    map[string]string
}

// EventOption customises a new DomainEvent.
type EventOption func(*DomainEvent)

// WithMetadata adds a metadata entry.
func WithMetadata(key, value string) EventOption {
	return func(e *DomainEvent) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithOccurredAt overrides the event timestamp.
func WithOccurredAt(t time.Time) EventOption {
	return func(e *DomainEvent) {
		e.occurredAt = t
	}
}

// WithEventID overrides the generated event id. Used when rehydrating events.
func WithEventID(id uuid.UUID) EventOption {
	return func(e *DomainEvent) {
		e.id = id
	}
}

// NewDomainEvent builds an envelope; the event type is taken from the payload.
func NewDomainEvent(source string, aggregateID uuid.UUID, payload EventPayload, opts ...EventOption) DomainEvent {
	e := DomainEvent{
		id:          uuid.New(),
		occurredAt:  time.Now().UTC(),
		source:      source,
		aggregateID: aggregateID,
	}
	if payload != nil {
		e.eventType = payload.EventType()
		e.payload = payload.clonePayload()
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// ID returns the unique event identifier
func (e DomainEvent) ID() uuid.UUID {
	return e.id
}

// Type returns the event type
func (e DomainEvent) Type() EventType {
	return e.eventType
}

// OccurredAt returns when the event occurred
func (e DomainEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// Source returns the producing component name
func (e DomainEvent) Source() string {
	return e.source
}

// AggregateID returns the ID of the aggregate that produced this event
func (e DomainEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

// Payload returns a copy of the payload.
func (e DomainEvent) Payload() EventPayload {
	if e.payload == nil {
		return nil
	}
	return e.payload.clonePayload()
}

// Metadata returns a copy of the metadata map.
func (e DomainEvent) Metadata() map[string]string {
	out := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}

// MetadataValue returns a single metadata entry.
func (e DomainEvent) MetadataValue(key string) (string, bool) {
	v, ok := e.metadata[key]
	return v, ok
}

// Clone returns a deep copy of the event.
func (e DomainEvent) Clone() DomainEvent {
	c := e
	c.payload = e.Payload()
	if e.metadata != nil {
		c.metadata = e.Metadata()
	}
	return c
}

// Validate checks the envelope is well-formed.
func (e DomainEvent) Validate() error {
	if e.id == uuid.Nil {
		return NewValidationError("event id is required")
	}
	if !e.eventType.IsValid() {
		return NewValidationError("unknown event type %q", e.eventType)
	}
	if e.payload == nil {
		return NewValidationError("event %s has no payload", e.eventType)
	}
	if e.payload.EventType() != e.eventType {
		return NewValidationError("payload of type %s does not match event type %s",
			e.payload.EventType(), e.eventType)
	}
	if e.source == "" {
		return NewValidationError("event source is required")
	}
	return nil
}

// eventJSON is the wire form of DomainEvent.
type eventJSON struct {
	ID          uuid.UUID         `json:"id"`
	Type        EventType         `json:"type"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Source      string            `json:"source"`
	AggregateID uuid.UUID         `json:"aggregate_id"`
	Payload     json.RawMessage   `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e DomainEvent) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.eventType, err)
	}
	return json.Marshal(eventJSON{
		ID:          e.id,
		Type:        e.eventType,
		OccurredAt:  e.occurredAt,
		Source:      e.source,
		AggregateID: e.aggregateID,
		Payload:     payload,
		Metadata:    e.metadata,
	})
}

// UnmarshalJSON implements json.Unmarshaler, decoding the payload by type.
func (e *DomainEvent) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodeEventPayload(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	e.id = raw.ID
	e.eventType = raw.Type
	e.occurredAt = raw.OccurredAt
	e.source = raw.Source
	e.aggregateID = raw.AggregateID
	e.payload = payload
	e.metadata = raw.Metadata
	return nil
}
