package event

import (
	"context"

	"github.com/casehub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EventRecorder is an aggregate holding events recorded by its last mutation
type EventRecorder interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// PublishRecorded publishes the aggregate's recorded events in order and
// clears them. Call it only after the write succeeded. A delivery error is
// logged and stops the remaining events; it is not returned because the
// state change is already durable.
func PublishRecorded(ctx context.Context, publisher shared.EventPublisher, agg EventRecorder, logger *zap.Logger) int {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if publisher == nil {
		return 0
	}
	for i, evt := range events {
		if err := publisher.Publish(ctx, evt); err != nil {
			logger.Error("failed to publish domain event",
				zap.Error(err),
				zap.String("event_id", evt.ID().String()),
				zap.String("event_type", evt.Type().String()),
				zap.String("aggregate_id", evt.AggregateID().String()),
				zap.Int("unpublished", len(events)-i),
			)
			return i
		}
	}
	return len(events)
}
