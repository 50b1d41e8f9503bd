package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics_ImplementsInterface(t *testing.T) {
	var _ BusMetrics = NoopMetrics{}
}

func TestNoopMetrics_RecordPublish(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPublish(context.Background(), "vm_lifecycle", "info", 100*time.Millisecond, 2)
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPublish(nil, "", "", 0, 0)
		})
	})
}

func TestNoopMetrics_RecordDeadLetter(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordDeadLetter(context.Background(), "system_error")
		})
	})

	t.Run("does not panic with empty category", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordDeadLetter(context.Background(), "")
		})
	})
}

func TestNoopMetrics_RecordSubscriberDrop(t *testing.T) {
	m := NoopMetrics{}

	assert.NotPanics(t, func() {
		m.RecordSubscriberDrop(context.Background(), "sub-1")
		m.RecordSubscriberDrop(nil, "")
	})
}

func TestNoopMetrics_RecordRetry(t *testing.T) {
	m := NoopMetrics{}

	assert.NotPanics(t, func() {
		m.RecordRetry(context.Background(), 5)
		m.RecordRetry(context.Background(), 0)
		m.RecordRetry(context.Background(), -1)
	})
}

func TestNoopMetrics_NoSideEffects(t *testing.T) {
	// Noop metrics can drive a realistic publish sequence without any
	// provider configured.
	m := NoopMetrics{}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.RecordPublish(ctx, "vm_lifecycle", "info", time.Millisecond, i)
	}
	m.RecordDeadLetter(ctx, "vm_lifecycle")
	m.RecordSubscriberDrop(ctx, "sub-1")
	m.RecordRetry(ctx, 2)
}
