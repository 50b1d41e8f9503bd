package event

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Timestamp           time.Time          `json:"timestamp"`
	TotalEvents         int64              `json:"total_events"`
	EventsByCategory    map[Category]int64 `json:"events_by_category"`
	EventsByPriority    map[string]int64   `json:"events_by_priority"`
	EventsBySource      map[string]int64   `json:"events_by_source"`
	ActiveSubscriptions int                `json:"active_subscriptions"`
	DroppedEvents       int64              `json:"dropped_events"`
	EventsRequiringAck  int64              `json:"events_requiring_ack"`
	AcknowledgedEvents  int64              `json:"acknowledged_events"`
	FailedEvents        int64              `json:"failed_events"`
	DeadLetterEvents    int                `json:"dead_letter_events"`
	AvgProcessingMs     float64            `json:"avg_processing_ms"`
}

// statsTracker maintains the running counters behind Stats. It has its own
// lock so the publish hot path never contends with buffer or registry access.
type statsTracker struct {
	mu           sync.RWMutex
	totalEvents  int64
	byCategory   map[Category]int64
	byPriority   map[Priority]int64
	bySource     map[string]int64
	dropped      int64
	requiringAck int64
	acknowledged int64
	failed       int64
	procCount    int64
	procTotal    time.Duration
}

func newStatsTracker() *statsTracker {
	return &statsTracker{
		byCategory: make(map[Category]int64),
		byPriority: make(map[Priority]int64),
		bySource:   make(map[string]int64),
	}
}

func (s *statsTracker) recordPublish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalEvents++
	s.byCategory[e.Category]++
	s.byPriority[e.Priority]++
	s.bySource[e.Source]++
	if e.RequiresAck {
		s.requiringAck++
	}
}

func (s *statsTracker) recordDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *statsTracker) recordProcessing(d time.Duration) {
	s.mu.Lock()
	s.procCount++
	s.procTotal += d
	s.mu.Unlock()
}

func (s *statsTracker) recordAck(status AckStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status.Success() {
		s.acknowledged++
	} else {
		s.failed++
	}
}

// snapshot builds a Stats value from the current counters. Live figures that
// the tracker does not own (subscription and dead letter counts) are passed
// in by the bus.
func (s *statsTracker) snapshot(activeSubs, deadLetters int) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Timestamp:           time.Now(),
		TotalEvents:         s.totalEvents,
		EventsByCategory:    make(map[Category]int64, len(s.byCategory)),
		EventsByPriority:    make(map[string]int64, len(s.byPriority)),
		EventsBySource:      make(map[string]int64, len(s.bySource)),
		ActiveSubscriptions: activeSubs,
		DroppedEvents:       s.dropped,
		EventsRequiringAck:  s.requiringAck,
		AcknowledgedEvents:  s.acknowledged,
		FailedEvents:        s.failed,
		DeadLetterEvents:    deadLetters,
	}
	for c, n := range s.byCategory {
		stats.EventsByCategory[c] = n
	}
	for p, n := range s.byPriority {
		stats.EventsByPriority[p.String()] = n
	}
	for src, n := range s.bySource {
		stats.EventsBySource[src] = n
	}
	if s.procCount > 0 {
		stats.AvgProcessingMs = float64(s.procTotal.Microseconds()) / float64(s.procCount) / 1000.0
	}
	return stats
}
