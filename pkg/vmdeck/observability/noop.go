package observability

import (
	"context"
	"time"
)

// NoopMetrics is a BusMetrics that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ BusMetrics = NoopMetrics{}

// RecordPublish does nothing.
func (NoopMetrics) RecordPublish(_ context.Context, _, _ string, _ time.Duration, _ int) {}

// RecordDeadLetter does nothing.
func (NoopMetrics) RecordDeadLetter(_ context.Context, _ string) {}

// RecordSubscriberDrop does nothing.
func (NoopMetrics) RecordSubscriberDrop(_ context.Context, _ string) {}

// RecordRetry does nothing.
func (NoopMetrics) RecordRetry(_ context.Context, _ int) {}
