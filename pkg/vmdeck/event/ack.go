package event

import (
	"sync"
	"time"
)

// AckRecord is one subscriber's recorded outcome for an event.
type AckRecord struct {
	SubscriptionID string    `json:"subscription_id"`
	Status         AckStatus `json:"status"`
	Message        string    `json:"message,omitempty"`
	AckedAt        time.Time `json:"acked_at"`
}

// ackTracker records which subscriptions acknowledged events that were
// published with RequiresAck. Acknowledgement is advisory bookkeeping; it
// never removes an event from the buffer or triggers a retry.
type ackTracker struct {
	mu      sync.Mutex
	pending map[string]*pendingAck
}

type pendingAck struct {
	registeredAt time.Time
	records      []AckRecord
}

func newAckTracker() *ackTracker {
	return &ackTracker{pending: make(map[string]*pendingAck)}
}

// register opens a pending-ack entry for an event at publish time.
func (t *ackTracker) register(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[eventID]; !ok {
		t.pending[eventID] = &pendingAck{registeredAt: time.Now()}
	}
}

// record appends an acknowledgement. Events that were not registered (not
// published with RequiresAck, or already purged) are still accepted; the
// counters are what collaborators observe.
func (t *ackTracker) record(eventID string, rec AckRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.pending[eventID]
	if !ok {
		entry = &pendingAck{registeredAt: time.Now()}
		t.pending[eventID] = entry
	}
	entry.records = append(entry.records, rec)
}

// records returns the acknowledgements recorded for an event.
func (t *ackTracker) records(eventID string) []AckRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.pending[eventID]
	if !ok {
		return nil
	}
	out := make([]AckRecord, len(entry.records))
	copy(out, entry.records)
	return out
}

// purgeOlderThan drops entries registered before the cutoff, bounding the
// tracker's memory alongside the cleanup of the structures it shadows.
func (t *ackTracker) purgeOlderThan(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, entry := range t.pending {
		if entry.registeredAt.Before(cutoff) {
			delete(t.pending, id)
			removed++
		}
	}
	return removed
}
