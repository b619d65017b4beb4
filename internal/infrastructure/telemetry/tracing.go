package telemetry

import (
	"context"
	"errors"

	"github.com/casehub/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans
const TracerName = "github.com/casehub/backend"

// StartServiceSpan starts an internal span named "{service}.{method}".
// Callers must End the span, typically through EndSpan.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "record_payment",
//	    attribute.String("invoice.id", id.String()))
//	defer func() { telemetry.EndSpan(span, err) }()
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on the span and ends it. Domain rule violations are
// recorded as events with an OK status; only unexpected failures mark the
// span as an error.
func EndSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		span.AddEvent("domain_error", trace.WithAttributes(
			attribute.String("error.code", domainErr.Code),
			attribute.String("error.message", domainErr.Message),
		))
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
