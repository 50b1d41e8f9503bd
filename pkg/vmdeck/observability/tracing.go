package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the vmdeck tracer instance.
// Uses the global OTel tracer provider; without a configured provider every
// span is a no-op.
var tracer = otel.Tracer("vmdeck")

// StartPublishSpan starts a span covering one publish pipeline run.
func StartPublishSpan(ctx context.Context, eventID, category, eventType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "vmdeck.bus.publish",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("event.category", category),
			attribute.String("event.type", eventType),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
