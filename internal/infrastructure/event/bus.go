package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus is stopped")

// Metrics receives bus diagnostics. Implemented by the telemetry package.
type Metrics interface {
	RecordPublish(ctx context.Context, eventType string, handlers int, duration time.Duration)
	RecordHandlerFailure(ctx context.Context, eventType, topic string)
}

type noopMetrics struct{}

func (noopMetrics) RecordPublish(context.Context, string, int, time.Duration) {}
func (noopMetrics) RecordHandlerFailure(context.Context, string, string)      {}

// BusStats is a snapshot of bus counters
type BusStats struct {
	Published       int64 `json:"published"`
	Delivered       int64 `json:"delivered"`
	HandlerFailures int64 `json:"handler_failures"`
}

// InMemoryEventBus implements EventBus with synchronous in-process fan-out.
//
// Delivery follows registration order across exact and wildcard topics.
// A handler error or panic is logged and counted and never reaches the
// publisher or the remaining handlers. An event published from inside a
// handler is queued and delivered after the current fan-out finishes.
type InMemoryEventBus struct {
	registry *SubscriptionRegistry
	logger   *zap.Logger
	metrics  Metrics
	stopped  atomic.Bool

	published atomic.Int64
	delivered atomic.Int64
	failures  atomic.Int64
}

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithMetrics sets the diagnostics sink
func WithMetrics(m Metrics) BusOption {
	return func(b *InMemoryEventBus) {
		if m != nil {
			b.metrics = m
		}
	}
}

// NewInMemoryEventBus creates a new in-memory event bus, ready to publish
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewSubscriptionRegistry(),
		logger:   logger,
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type dispatchKey struct{}

// dispatchState tracks the fan-out running on the current call stack
type dispatchState struct {
	bus    *InMemoryEventBus
	mu     sync.Mutex
	queue  []shared.DomainEvent
	closed bool
}

func (s *dispatchState) enqueue(event shared.DomainEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, event)
	return true
}

func (s *dispatchState) next() (shared.DomainEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		s.closed = true
		return shared.DomainEvent{}, false
	}
	event := s.queue[0]
	s.queue = s.queue[1:]
	return event, true
}

// Publish delivers the event to every matching subscription. It fails only
// for an invalid envelope or a stopped bus.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	if err := event.Validate(); err != nil {
		return err
	}

	if state, ok := ctx.Value(dispatchKey{}).(*dispatchState); ok && state.bus == b {
		if state.enqueue(event) {
			return nil
		}
	}

	state := &dispatchState{bus: b}
	dispatchCtx := context.WithValue(ctx, dispatchKey{}, state)
	for current, ok := event, true; ok; current, ok = state.next() {
		b.fanOut(dispatchCtx, current)
	}
	return nil
}

func (b *InMemoryEventBus) fanOut(ctx context.Context, event shared.DomainEvent) {
	start := time.Now()
	subs := b.registry.Matching(event.Type())
	b.published.Add(1)

	for _, sub := range subs {
		if err := b.dispatchToHandler(ctx, sub.handler, event.Clone()); err != nil {
			b.failures.Add(1)
			b.metrics.RecordHandlerFailure(ctx, event.Type().String(), sub.handle.Topic)
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.Type().String()),
				zap.String("event_id", event.ID().String()),
				zap.String("source", event.Source()),
				zap.String("subscription_id", sub.handle.ID.String()),
				zap.String("topic", sub.handle.Topic),
				zap.Error(err),
			)
			continue
		}
		b.delivered.Add(1)
	}

	b.metrics.RecordPublish(ctx, event.Type().String(), len(subs), time.Since(start))
	b.logger.Debug("event published",
		zap.String("event_type", event.Type().String()),
		zap.String("event_id", event.ID().String()),
		zap.Int("handlers", len(subs)),
	)
}

// Subscribe registers handler for a topic: an event type, "*" or a prefix wildcard
func (b *InMemoryEventBus) Subscribe(topic string, handler shared.EventHandler) shared.SubscriptionHandle {
	if topic != shared.WildcardTopic && !isPrefixTopic(topic) && !shared.EventType(topic).IsValid() {
		b.logger.Warn("subscribing to unknown event type", zap.String("topic", topic))
	}
	handle := b.registry.Register(topic, handler)
	b.logger.Debug("handler subscribed",
		zap.String("topic", topic),
		zap.String("subscription_id", handle.ID.String()),
	)
	return handle
}

// Unsubscribe removes a registration; repeated calls are no-ops
func (b *InMemoryEventBus) Unsubscribe(handle shared.SubscriptionHandle) {
	if handle.IsZero() {
		return
	}
	if b.registry.Unregister(handle) {
		b.logger.Debug("handler unsubscribed",
			zap.String("topic", handle.Topic),
			zap.String("subscription_id", handle.ID.String()),
		)
	}
}

// Start (re)opens the bus for publishing
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("event bus started", zap.Int("subscriptions", b.registry.Len()))
	return nil
}

// Stop rejects further publishes. Delivery is synchronous, so there is
// nothing in flight to drain beyond calls already running.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)
	b.logger.Info("event bus stopped", zap.Any("stats", b.Stats()))
	return nil
}

// Stats returns a snapshot of the bus counters
func (b *InMemoryEventBus) Stats() BusStats {
	return BusStats{
		Published:       b.published.Load(),
		Delivered:       b.delivered.Load(),
		HandlerFailures: b.failures.Load(),
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

func isPrefixTopic(topic string) bool {
	return len(topic) > 1 && topic[len(topic)-1] == '*'
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
