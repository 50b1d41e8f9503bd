package event

import (
	"sync"
	"time"
)

// retainedBuffer is the bounded, insertion-ordered store of recently
// published events. The oldest entry is evicted once the capacity is
// exceeded. Readers skip events whose deadline has passed even if the
// cleanup pass has not physically removed them yet.
type retainedBuffer struct {
	mu     sync.RWMutex
	events []Event
	max    int
}

func newRetainedBuffer(max int) *retainedBuffer {
	return &retainedBuffer{
		events: make([]Event, 0, max),
		max:    max,
	}
}

// append adds an event, evicting the oldest entry when over capacity.
func (b *retainedBuffer) append(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)
	if len(b.events) > b.max {
		over := len(b.events) - b.max
		b.events = append(b.events[:0], b.events[over:]...)
	}
}

// query scans newest to oldest, collecting non-expired events that satisfy
// the filter until limit matches are found. limit <= 0 scans the whole buffer.
func (b *retainedBuffer) query(f Filter, limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]Event, 0)
	for i := len(b.events) - 1; i >= 0; i-- {
		e := b.events[i]
		if e.IsExpired() {
			continue
		}
		if !f.Matches(e) {
			continue
		}
		results = append(results, e)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

// purgeExpired removes every event whose deadline has passed and returns the
// number removed.
func (b *retainedBuffer) purgeExpired(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.events[:0]
	for _, e := range b.events {
		if e.ExpiresAt != nil && now.After(*e.ExpiresAt) {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(b.events) - len(kept)
	b.events = kept
	return removed
}

func (b *retainedBuffer) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// snapshot returns a copy of the buffer contents, oldest first.
func (b *retainedBuffer) snapshot() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}
