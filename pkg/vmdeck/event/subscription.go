package event

import (
	"sync/atomic"
	"time"
)

// SubscriptionInfo is the freely copyable bookkeeping record for a
// subscription. The registry owns the canonical entry; callers only ever see
// snapshots.
type SubscriptionInfo struct {
	ID             string    `json:"id"`
	Filter         Filter    `json:"filter"`
	CreatedAt      time.Time `json:"created_at"`
	Active         bool      `json:"active"`
	EventsReceived int64     `json:"events_received"`
	LastEventAt    time.Time `json:"last_event_at,omitzero"`
	DroppedEvents  int64     `json:"dropped_events,omitempty"`
}

// Receiver is the single-owner delivery handle for a subscription. Exactly
// one goroutine should range over Events; the registry keeps only the
// metadata, never the handle.
type Receiver struct {
	id  string
	ch  chan Event
	bus *Bus
}

// ID returns the subscription ID.
func (r *Receiver) ID() string {
	return r.id
}

// Events returns the delivery channel. It is closed by Unsubscribe and by
// bus shutdown; events already queued before either may still be drained.
func (r *Receiver) Events() <-chan Event {
	return r.ch
}

// Close unsubscribes and closes the delivery channel.
func (r *Receiver) Close() error {
	return r.bus.Unsubscribe(r.id)
}

// subscription is the registry-owned arena entry backing a Receiver.
// Counters use atomics because delivery happens under the registry's read
// lock, concurrently with other deliveries.
type subscription struct {
	id        string
	filter    Filter
	createdAt time.Time
	ch        chan Event

	received    atomic.Int64
	dropped     atomic.Int64
	lastEventNs atomic.Int64
}

func (s *subscription) info(active bool) SubscriptionInfo {
	info := SubscriptionInfo{
		ID:             s.id,
		Filter:         s.filter,
		CreatedAt:      s.createdAt,
		Active:         active,
		EventsReceived: s.received.Load(),
		DroppedEvents:  s.dropped.Load(),
	}
	if ns := s.lastEventNs.Load(); ns > 0 {
		info.LastEventAt = time.Unix(0, ns)
	}
	return info
}

// deliver hands an event to the subscription channel without ever blocking.
// When the buffer is full the oldest unread event is discarded to make room,
// so a slow consumer loses history rather than stalling publishers.
// Returns the event displaced by the new one, if any.
func (s *subscription) deliver(e Event) (dropped Event, didDrop bool) {
	for {
		select {
		case s.ch <- e:
			s.received.Add(1)
			s.lastEventNs.Store(e.Timestamp.UnixNano())
			return dropped, didDrop
		default:
		}

		select {
		case old := <-s.ch:
			s.dropped.Add(1)
			dropped, didDrop = old, true
		default:
			// Consumer drained the channel between the two selects; retry.
		}
	}
}
