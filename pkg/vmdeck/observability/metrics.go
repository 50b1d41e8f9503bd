package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusMetrics records event bus telemetry.
// Use NewBusMetrics() for OTel metrics or NoopMetrics{} when disabled.
type BusMetrics interface {
	// RecordPublish records a publish with its duration and receiver count.
	RecordPublish(ctx context.Context, category, priority string, duration time.Duration, receivers int)

	// RecordDeadLetter records an event routed to the dead letter queue.
	RecordDeadLetter(ctx context.Context, category string)

	// RecordSubscriberDrop records an event discarded for a slow subscriber.
	RecordSubscriberDrop(ctx context.Context, subscriptionID string)

	// RecordRetry records a batch of dead letter retries.
	RecordRetry(ctx context.Context, retried int)
}

// otelBusMetrics implements BusMetrics using OpenTelemetry.
type otelBusMetrics struct {
	published      metric.Int64Counter
	publishLatency metric.Float64Histogram
	deadLettered   metric.Int64Counter
	subscriberDrop metric.Int64Counter
	retries        metric.Int64Counter
}

var (
	defaultBusMetrics     *otelBusMetrics
	defaultBusMetricsOnce sync.Once
	defaultBusMetricsErr  error
)

func getDefaultBusMetrics() (*otelBusMetrics, error) {
	defaultBusMetricsOnce.Do(func() {
		defaultBusMetrics, defaultBusMetricsErr = newOtelBusMetrics()
	})
	return defaultBusMetrics, defaultBusMetricsErr
}

func newOtelBusMetrics() (*otelBusMetrics, error) {
	meter := otel.Meter("vmdeck")

	published, err := meter.Int64Counter("vmdeck.bus.published",
		metric.WithDescription("Number of events published"),
	)
	if err != nil {
		return nil, err
	}

	publishLatency, err := meter.Float64Histogram("vmdeck.bus.publish_latency_ms",
		metric.WithDescription("Publish pipeline latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deadLettered, err := meter.Int64Counter("vmdeck.bus.dead_lettered",
		metric.WithDescription("Number of events routed to the dead letter queue"),
	)
	if err != nil {
		return nil, err
	}

	subscriberDrop, err := meter.Int64Counter("vmdeck.bus.subscriber_drops",
		metric.WithDescription("Number of events discarded for slow subscribers"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("vmdeck.bus.dead_letter_retries",
		metric.WithDescription("Number of dead letter events retried"),
	)
	if err != nil {
		return nil, err
	}

	return &otelBusMetrics{
		published:      published,
		publishLatency: publishLatency,
		deadLettered:   deadLettered,
		subscriberDrop: subscriberDrop,
		retries:        retries,
	}, nil
}

// NewBusMetrics returns a BusMetrics that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewBusMetrics() BusMetrics {
	m, err := getDefaultBusMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records a publish.
func (m *otelBusMetrics) RecordPublish(ctx context.Context, category, priority string, duration time.Duration, receivers int) {
	attrs := []attribute.KeyValue{
		attribute.String("category", category),
		attribute.String("priority", priority),
	}

	m.published.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.publishLatency.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
}

// RecordDeadLetter records a dead-lettered event.
func (m *otelBusMetrics) RecordDeadLetter(ctx context.Context, category string) {
	m.deadLettered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// RecordSubscriberDrop records an event discarded for a slow subscriber.
func (m *otelBusMetrics) RecordSubscriberDrop(ctx context.Context, subscriptionID string) {
	m.subscriberDrop.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subscription_id", subscriptionID),
	))
}

// RecordRetry records a batch of dead letter retries.
func (m *otelBusMetrics) RecordRetry(ctx context.Context, retried int) {
	m.retries.Add(ctx, int64(retried))
}
