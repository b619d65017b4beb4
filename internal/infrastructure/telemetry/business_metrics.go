package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName scopes every instrument the application creates
const MeterName = "github.com/casehub/backend"

// Attribute keys
const (
	AttrCurrency  = attribute.Key("currency")
	AttrAction    = attribute.Key("action")
	AttrStatus    = attribute.Key("status")
	AttrMethod    = attribute.Key("payment_method")
	AttrEventType = attribute.Key("event_type")
	AttrTopic     = attribute.Key("topic")
)

// BusinessMetrics records ledger and event bus activity. It satisfies the
// metrics hooks of the event bus and the invoice service.
type BusinessMetrics struct {
	invoicesCreated    metric.Int64Counter
	transitions        metric.Int64Counter
	paymentsRecorded   metric.Int64Counter
	paymentAmount      metric.Float64Counter
	overdueMarked      metric.Int64Counter
	eventsPublished    metric.Int64Counter
	handlerFailures    metric.Int64Counter
	publishDuration    metric.Float64Histogram
	handlersPerPublish metric.Int64Histogram
}

// NewBusinessMetrics creates the instruments on meter
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var (
		m   BusinessMetrics
		err error
	)
	if m.invoicesCreated, err = meter.Int64Counter("casehub.ledger.invoices_created",
		metric.WithDescription("Invoices created"), metric.WithUnit("{invoice}")); err != nil {
		return nil, instrumentError("invoices_created", err)
	}
	if m.transitions, err = meter.Int64Counter("casehub.ledger.invoice_transitions",
		metric.WithDescription("Invoice lifecycle transitions by action and resulting status"),
		metric.WithUnit("{transition}")); err != nil {
		return nil, instrumentError("invoice_transitions", err)
	}
	if m.paymentsRecorded, err = meter.Int64Counter("casehub.ledger.payments_recorded",
		metric.WithDescription("Payments recorded against invoices"), metric.WithUnit("{payment}")); err != nil {
		return nil, instrumentError("payments_recorded", err)
	}
	if m.paymentAmount, err = meter.Float64Counter("casehub.ledger.payment_amount",
		metric.WithDescription("Sum of recorded payment amounts in major currency units")); err != nil {
		return nil, instrumentError("payment_amount", err)
	}
	if m.overdueMarked, err = meter.Int64Counter("casehub.ledger.invoices_marked_overdue",
		metric.WithDescription("Invoices flagged OVERDUE by the sweep"), metric.WithUnit("{invoice}")); err != nil {
		return nil, instrumentError("invoices_marked_overdue", err)
	}
	if m.eventsPublished, err = meter.Int64Counter("casehub.events.published",
		metric.WithDescription("Domain events published on the bus"), metric.WithUnit("{event}")); err != nil {
		return nil, instrumentError("events_published", err)
	}
	if m.handlerFailures, err = meter.Int64Counter("casehub.events.handler_failures",
		metric.WithDescription("Event handler errors and panics"), metric.WithUnit("{failure}")); err != nil {
		return nil, instrumentError("handler_failures", err)
	}
	if m.publishDuration, err = meter.Float64Histogram("casehub.events.publish_duration",
		metric.WithDescription("Time to dispatch one event to all matching handlers"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000)); err != nil {
		return nil, instrumentError("publish_duration", err)
	}
	if m.handlersPerPublish, err = meter.Int64Histogram("casehub.events.handlers_per_publish",
		metric.WithDescription("Handlers invoked per published event"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 4, 8, 16)); err != nil {
		return nil, instrumentError("handlers_per_publish", err)
	}
	return &m, nil
}

// NewNoopBusinessMetrics returns metrics backed by a no-op meter
func NewNoopBusinessMetrics() *BusinessMetrics {
	m, err := NewBusinessMetrics(noop.NewMeterProvider().Meter(MeterName))
	if err != nil {
		// the no-op meter never fails
		panic(err)
	}
	return m
}

func instrumentError(name string, err error) error {
	return fmt.Errorf("failed to create %s instrument: %w", name, err)
}

// RecordInvoiceCreated counts a new draft invoice
func (m *BusinessMetrics) RecordInvoiceCreated(ctx context.Context, currency string) {
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(AttrCurrency.String(currency)))
}

// RecordInvoiceTransition counts a lifecycle action and the status it produced
func (m *BusinessMetrics) RecordInvoiceTransition(ctx context.Context, action, status string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(AttrAction.String(action), AttrStatus.String(status)))
}

// RecordPayment counts a payment and adds its amount
func (m *BusinessMetrics) RecordPayment(ctx context.Context, method, currency string, amount decimal.Decimal) {
	attrs := metric.WithAttributes(AttrMethod.String(method), AttrCurrency.String(currency))
	m.paymentsRecorded.Add(ctx, 1, attrs)
	m.paymentAmount.Add(ctx, amount.InexactFloat64(), metric.WithAttributes(AttrCurrency.String(currency)))
}

// RecordOverdueMarked counts invoices flipped to OVERDUE in one sweep
func (m *BusinessMetrics) RecordOverdueMarked(ctx context.Context, count int) {
	if count > 0 {
		m.overdueMarked.Add(ctx, int64(count))
	}
}

// RecordPublish implements event.Metrics
func (m *BusinessMetrics) RecordPublish(ctx context.Context, eventType string, handlers int, duration time.Duration) {
	attrs := metric.WithAttributes(AttrEventType.String(eventType))
	m.eventsPublished.Add(ctx, 1, attrs)
	m.handlersPerPublish.Record(ctx, int64(handlers), attrs)
	m.publishDuration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}

// RecordHandlerFailure implements event.Metrics
func (m *BusinessMetrics) RecordHandlerFailure(ctx context.Context, eventType, topic string) {
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(eventType), AttrTopic.String(topic)))
}
