package event

import (
	"sync"
	"time"
)

// Dead letter reasons recorded by the bus.
const (
	// ReasonNoReceivers marks events published with no active subscriber
	// whose filter matched.
	ReasonNoReceivers = "no active receivers"
)

// DeadLetterEvent wraps an event that could not be delivered.
type DeadLetterEvent struct {
	Event              Event     `json:"event"`
	Reason             string    `json:"reason"`
	DeadLetteredAt     time.Time `json:"dead_letter_at"`
	ProcessingAttempts int       `json:"processing_attempts"`
	LastError          string    `json:"last_error,omitempty"`
}

// DeadLetterStore is bounded storage for undeliverable events.
//
// Implementations keep entries in insertion order and evict the oldest entry
// first when at capacity. MemoryDeadLetterStore is the default;
// SQLiteDeadLetterStore survives restarts.
type DeadLetterStore interface {
	// Append adds an entry, evicting the oldest when at capacity.
	Append(dle DeadLetterEvent) error

	// List returns the most recent entries, newest first.
	// limit <= 0 returns everything.
	List(limit int) ([]DeadLetterEvent, error)

	// TakeRetryable removes and returns, in queue order, up to limit entries
	// whose wrapped event still has retry budget (retry_count < max_retries).
	// Entries with an exhausted budget are left untouched.
	TakeRetryable(limit int) ([]DeadLetterEvent, error)

	// Clear empties the store and returns the number of entries removed.
	Clear() (int, error)

	// PurgeOlderThan removes entries dead-lettered before the cutoff and
	// returns the number removed.
	PurgeOlderThan(cutoff time.Time) (int, error)

	// Len returns the current number of entries.
	Len() (int, error)

	// Close releases any underlying resources.
	Close() error
}

// MemoryDeadLetterStore is the in-memory DeadLetterStore.
type MemoryDeadLetterStore struct {
	mu      sync.RWMutex
	entries []DeadLetterEvent
	max     int
}

var _ DeadLetterStore = (*MemoryDeadLetterStore)(nil)

// NewMemoryDeadLetterStore creates a bounded in-memory store.
func NewMemoryDeadLetterStore(max int) *MemoryDeadLetterStore {
	if max <= 0 {
		max = DefaultConfig.MaxDeadLetters
	}
	return &MemoryDeadLetterStore{
		entries: make([]DeadLetterEvent, 0),
		max:     max,
	}
}

// Append implements DeadLetterStore.
func (s *MemoryDeadLetterStore) Append(dle DeadLetterEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, dle)
	if len(s.entries) > s.max {
		over := len(s.entries) - s.max
		s.entries = append(s.entries[:0], s.entries[over:]...)
	}
	return nil
}

// List implements DeadLetterStore.
func (s *MemoryDeadLetterStore) List(limit int) ([]DeadLetterEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]DeadLetterEvent, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// TakeRetryable implements DeadLetterStore.
func (s *MemoryDeadLetterStore) TakeRetryable(limit int) ([]DeadLetterEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make([]DeadLetterEvent, 0)
	kept := s.entries[:0]
	for _, dle := range s.entries {
		if (limit <= 0 || len(taken) < limit) && dle.Event.RetryCount < dle.Event.MaxRetries {
			taken = append(taken, dle)
			continue
		}
		kept = append(kept, dle)
	}
	s.entries = kept
	return taken, nil
}

// Clear implements DeadLetterStore.
func (s *MemoryDeadLetterStore) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = s.entries[:0]
	return n, nil
}

// PurgeOlderThan implements DeadLetterStore.
func (s *MemoryDeadLetterStore) PurgeOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, dle := range s.entries {
		if dle.DeadLetteredAt.Before(cutoff) {
			continue
		}
		kept = append(kept, dle)
	}
	removed := len(s.entries) - len(kept)
	s.entries = kept
	return removed, nil
}

// Len implements DeadLetterStore.
func (s *MemoryDeadLetterStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close implements DeadLetterStore.
func (s *MemoryDeadLetterStore) Close() error {
	return nil
}
