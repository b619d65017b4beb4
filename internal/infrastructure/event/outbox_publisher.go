package event

import (
	"context"
	"fmt"

	"github.com/casehub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxPublisher is the durable EventPublisher: instead of fanning out in
// the caller's goroutine it stores each event in outbox_events, and the
// OutboxProcessor relays it to the in-memory bus. Producers see the same
// interface in both delivery modes.
type OutboxPublisher struct {
	repo       shared.OutboxRepository
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(repo shared.OutboxRepository, serializer *EventSerializer, logger *zap.Logger) *OutboxPublisher {
	return &OutboxPublisher{
		repo:       repo,
		serializer: serializer,
		logger:     logger,
	}
}

// Publish serializes the event and appends it to the outbox
func (p *OutboxPublisher) Publish(ctx context.Context, event shared.DomainEvent) error {
	payload, err := p.serializer.Serialize(event)
	if err != nil {
		return err
	}

	entry := shared.NewOutboxEntry(event, payload)
	if err := p.repo.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to enqueue event %s: %w", event.ID(), err)
	}

	p.logger.Debug("event stored in outbox",
		zap.String("event_id", event.ID().String()),
		zap.String("event_type", event.Type().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)
	return nil
}

var _ shared.EventPublisher = (*OutboxPublisher)(nil)
