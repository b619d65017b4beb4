package event

import (
	"context"
	"sync/atomic"

	"github.com/casehub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	// EventsProcessed is the number of events handled for the first time
	EventsProcessed atomic.Int64

	// EventsDuplicate is the number of redeliveries that were skipped
	EventsDuplicate atomic.Int64

	// EventsFailed is the number of events the wrapped handler rejected
	EventsFailed atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps an EventHandler so that each event id is applied
// at most once per consumer. A failed attempt does not count as applied. The bus delivers exactly once per publish; the
// outbox relay may redeliver after a crash, which is what this guards.
type IdempotentHandler struct {
	consumer string
	handler  shared.EventHandler
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	logger   *zap.Logger
	metrics  *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithIdempotencyMetrics sets the metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler wraps handler. consumer namespaces the processed keys
// so two projections sharing a store do not suppress each other.
func NewIdempotentHandler(
	consumer string,
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		consumer: consumer,
		handler:  handler,
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		logger:   logger,
		metrics:  &IdempotencyMetrics{},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handle processes the event unless this consumer already has
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := h.consumer + ":" + event.ID().String()
	eventType := event.Type().String()

	isNew, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	marked := err == nil
	if err != nil {
		// Store outage: prefer a possible duplicate over a dropped event
		h.logger.Warn("failed to check idempotency, processing anyway",
			zap.String("consumer", h.consumer),
			zap.String("event_id", event.ID().String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	} else if !isNew {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("duplicate event detected, skipping",
			zap.String("consumer", h.consumer),
			zap.String("event_id", event.ID().String()),
			zap.String("event_type", eventType),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		// Release the claim so a later redelivery reaches the handler
		if marked {
			if uerr := h.store.Unmark(context.WithoutCancel(ctx), key); uerr != nil {
				h.logger.Error("failed to release idempotency key, redeliveries will be skipped until expiry",
					zap.String("consumer", h.consumer),
					zap.String("event_id", event.ID().String()),
					zap.String("event_type", eventType),
					zap.Error(uerr),
				)
			}
		}
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

// Consumer returns the key namespace of this handler
func (h *IdempotentHandler) Consumer() string {
	return h.consumer
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// GetWrappedHandler returns the underlying handler
func (h *IdempotentHandler) GetWrappedHandler() shared.EventHandler {
	return h.handler
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
