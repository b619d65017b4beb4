package shared

import (
	"context"

	"github.com/google/uuid"
)

// WildcardTopic subscribes to every event type.
const WildcardTopic = "*"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event DomainEvent) error

// Handle calls f(ctx, event).
func (f EventHandlerFunc) Handle(ctx context.Context, event DomainEvent) error {
	return f(ctx, event)
}

// SubscriptionHandle identifies one registration on the bus.
type SubscriptionHandle struct {
	ID    uuid.UUID
	Topic string
}

// IsZero reports whether the handle was never issued.
func (h SubscriptionHandle) IsZero() bool {
	return h.ID == uuid.Nil
}

// EventPublisher publishes domain events. Producers depend on this interface
// only, so the delivery mechanism can change without touching them.
type EventPublisher interface {
	// Publish delivers the event; handler failures never surface here
	Publish(ctx context.Context, event DomainEvent) error
}

// EventSubscriber manages subscriptions.
type EventSubscriber interface {
	// Subscribe registers handler for an event type, a prefix wildcard
	// ("case-*") or WildcardTopic
	Subscribe(topic string, handler EventHandler) SubscriptionHandle
	// Unsubscribe removes a registration; unknown handles are ignored
	Unsubscribe(handle SubscriptionHandle)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
	// Start starts the event bus
	Start(ctx context.Context) error
	// Stop gracefully stops the event bus
	Stop(ctx context.Context) error
}

// PublishAll publishes events in order, stopping at the first delivery error.
func PublishAll(ctx context.Context, publisher EventPublisher, events ...DomainEvent) error {
	for _, event := range events {
		if err := publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
