// Package observability provides structured logging, metrics, and tracing
// for the vmdeck event bus.
//
// Logging uses slog from the stdlib; metrics and tracing use OpenTelemetry.
// Everything is opt-in: a nil logger disables logging, and NoopMetrics
// disables metrics. The bus receives both at construction, so tests can
// supply in-memory sinks.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns a logger carrying the given component name.
// Nil in, nil out.
func EnrichLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("component", component))
}

// LogPublish logs a completed publish with its receiver count.
func LogPublish(logger *slog.Logger, eventID, category, eventType string, receivers int) {
	if logger == nil {
		return
	}
	logger.Debug("event published",
		slog.String("event_id", eventID),
		slog.String("category", category),
		slog.String("event_type", eventType),
		slog.Int("receivers", receivers),
	)
}

// LogDeadLetter logs an event routed to the dead letter queue.
func LogDeadLetter(logger *slog.Logger, eventID, category, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("event dead lettered",
		slog.String("event_id", eventID),
		slog.String("category", category),
		slog.String("reason", reason),
	)
}

// LogDeadLetterError logs a failure to store a dead letter entry (non-fatal).
func LogDeadLetterError(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("dead letter store failed",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogSubscriberDrop logs an event discarded for a slow subscriber.
func LogSubscriberDrop(logger *slog.Logger, subscriptionID, eventID string) {
	if logger == nil {
		return
	}
	logger.Debug("subscriber dropped event",
		slog.String("subscription_id", subscriptionID),
		slog.String("event_id", eventID),
	)
}

// LogSubscribe logs a new subscription.
func LogSubscribe(logger *slog.Logger, subscriptionID string) {
	if logger == nil {
		return
	}
	logger.Debug("subscription created",
		slog.String("subscription_id", subscriptionID),
	)
}

// LogUnsubscribe logs a removed subscription.
func LogUnsubscribe(logger *slog.Logger, subscriptionID string) {
	if logger == nil {
		return
	}
	logger.Debug("subscription removed",
		slog.String("subscription_id", subscriptionID),
	)
}

// LogCleanup logs the result of a cleanup pass.
func LogCleanup(logger *slog.Logger, expiredEvents, staleDeadLetters int) {
	if logger == nil {
		return
	}
	logger.Debug("cleanup pass completed",
		slog.Int("expired_events", expiredEvents),
		slog.Int("stale_dead_letters", staleDeadLetters),
	)
}

// LogCleanupError logs a cleanup failure (non-fatal, retried next interval).
func LogCleanupError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("cleanup pass failed",
		slog.String("error", err.Error()),
	)
}

// LogPersistError logs a snapshot persistence failure (non-fatal, retried
// next interval).
func LogPersistError(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot persistence failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
