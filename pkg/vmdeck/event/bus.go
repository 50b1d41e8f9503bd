package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vmdeck/vmdeck/pkg/vmdeck/observability"
)

// Bus is the process-wide event distribution engine.
//
// Many publishers and subscribers call into one shared Bus concurrently. Each
// internal structure (retained buffer, subscription registry, dead letter
// store, counters, ack tracker) carries its own lock so the publish hot path
// never stalls behind the background cleanup and stats tickers.
type Bus struct {
	cfg    Config
	logger *slog.Logger

	buffer *retainedBuffer
	stats  *statsTracker
	acks   *ackTracker
	dlq    DeadLetterStore

	subMu sync.RWMutex
	subs  map[string]*subscription

	closed  atomic.Bool
	closeCh chan struct{}
}

// NewBus creates and starts a bus. Background cleanup and stats routines run
// until Close; a SQLite dead letter store is opened when the config names a
// dead letter path.
func NewBus(cfg Config) (*Bus, error) {
	cfg = cfg.withDefaults()

	b := &Bus{
		cfg:     cfg,
		logger:  observability.EnrichLogger(cfg.Logger, "event_bus"),
		buffer:  newRetainedBuffer(cfg.MaxBufferSize),
		stats:   newStatsTracker(),
		acks:    newAckTracker(),
		subs:    make(map[string]*subscription),
		closeCh: make(chan struct{}),
	}

	if !cfg.DisableDeadLetter {
		if cfg.DeadLetterPath != "" {
			store, err := NewSQLiteDeadLetterStore(cfg.DeadLetterPath, cfg.MaxDeadLetters)
			if err != nil {
				return nil, err
			}
			b.dlq = store
		} else {
			b.dlq = NewMemoryDeadLetterStore(cfg.MaxDeadLetters)
		}
	}

	go b.cleanupLoop()
	go b.maintenanceLoop()

	return b, nil
}

// Publish runs an event through the full pipeline: stamp defaults, update
// counters, append to the retained buffer, fan out to matching subscriptions,
// and dead-letter on zero receivers.
//
// Publishing with no subscribers is expected, recoverable behavior, never an
// error; the only publish failure is a closed bus.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	start := time.Now()
	ctx, span := observability.StartPublishSpan(ctx, evt.ID, string(evt.Category), evt.Type)

	b.stampDefaults(&evt)

	b.stats.recordPublish(evt)
	if evt.RequiresAck {
		b.acks.register(evt.ID)
	}

	b.buffer.append(evt)

	delivered := b.fanOut(ctx, evt)
	if delivered == 0 {
		b.deadLetter(ctx, evt)
	}

	elapsed := time.Since(start)
	b.stats.recordProcessing(elapsed)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordPublish(ctx, string(evt.Category), evt.Priority.String(), elapsed, delivered)
	}
	observability.LogPublish(b.logger, evt.ID, string(evt.Category), evt.Type, delivered)
	observability.EndSpanWithError(span, nil)

	return nil
}

// PublishBatch publishes each event independently and never aborts early.
// The first error encountered (a closed bus) is returned after the whole
// batch has been attempted.
func (b *Bus) PublishBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, evt := range events {
		if err := b.Publish(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// stampDefaults fills in the fields the bus owns: ID, timestamp, TTL, and
// retry budget. retry_count <= max_retries is restored here if a caller
// handed in something inconsistent.
func (b *Bus) stampDefaults(evt *Event) {
	now := time.Now()
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = now
	}
	if evt.ExpiresAt == nil {
		t := now.Add(b.cfg.DefaultTTL)
		evt.ExpiresAt = &t
	}
	if evt.MaxRetries <= 0 {
		evt.MaxRetries = b.cfg.DefaultMaxRetries
	}
	if evt.RetryCount > evt.MaxRetries {
		evt.RetryCount = evt.MaxRetries
	}
}

// fanOut delivers the event to every active subscription whose filter
// matches, without ever blocking. Returns the number of receivers.
//
// Routing applies the same Filter.Matches predicate as QueryEvents, so
// subscribers only see events their filter would select (pre-filtered
// delivery rather than client-side re-filtering).
func (b *Bus) fanOut(ctx context.Context, evt Event) int {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	delivered := 0
	for _, sub := range b.subs {
		if !sub.filter.Matches(evt) {
			continue
		}
		old, didDrop := sub.deliver(evt)
		delivered++
		if didDrop {
			if b.cfg.Metrics != nil {
				b.cfg.Metrics.RecordSubscriberDrop(ctx, sub.id)
			}
			observability.LogSubscriberDrop(b.logger, sub.id, old.ID)
			if b.cfg.OnDrop != nil {
				b.cfg.OnDrop(old, sub.id)
			}
		}
	}
	return delivered
}

// deadLetter routes a zero-receiver event to the dead letter store and counts
// it as dropped.
func (b *Bus) deadLetter(ctx context.Context, evt Event) {
	b.stats.recordDropped()

	if b.dlq == nil {
		return
	}

	dle := DeadLetterEvent{
		Event:              evt,
		Reason:             ReasonNoReceivers,
		DeadLetteredAt:     time.Now(),
		ProcessingAttempts: evt.RetryCount,
	}
	if err := b.dlq.Append(dle); err != nil {
		observability.LogDeadLetterError(b.logger, evt.ID, err)
		return
	}
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordDeadLetter(ctx, string(evt.Category))
	}
	observability.LogDeadLetter(b.logger, evt.ID, string(evt.Category), ReasonNoReceivers)
}

// Subscribe registers a filter and returns the single-owner delivery handle.
// Fails with ErrSubscriptionLimit once the configured maximum number of
// concurrent subscriptions is reached.
func (b *Bus) Subscribe(f Filter) (*Receiver, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	if len(b.subs) >= b.cfg.MaxSubscriptions {
		return nil, ErrSubscriptionLimit
	}

	sub := &subscription{
		id:        uuid.New().String(),
		filter:    f,
		createdAt: time.Now(),
		ch:        make(chan Event, b.cfg.SubscriptionBuffer),
	}
	b.subs[sub.id] = sub

	observability.LogSubscribe(b.logger, sub.id)
	return &Receiver{id: sub.id, ch: sub.ch, bus: b}, nil
}

// Unsubscribe removes the subscription and closes its delivery channel.
// Events already queued on the channel may still be drained by the reader.
func (b *Bus) Unsubscribe(id string) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	delete(b.subs, id)
	close(sub.ch)

	observability.LogUnsubscribe(b.logger, id)
	return nil
}

// Subscriptions returns a snapshot of every active subscription's metadata.
func (b *Bus) Subscriptions() []SubscriptionInfo {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	infos := make([]SubscriptionInfo, 0, len(b.subs))
	for _, sub := range b.subs {
		infos = append(infos, sub.info(true))
	}
	return infos
}

// Subscription returns the metadata snapshot for one subscription.
func (b *Bus) Subscription(id string) (SubscriptionInfo, bool) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	sub, ok := b.subs[id]
	if !ok {
		return SubscriptionInfo{}, false
	}
	return sub.info(true), true
}

// AcknowledgeEvent records that a subscription acknowledged an event.
// Acknowledged and Processed count as success, Failed and Rejected as
// failure. Advisory only: the event stays in the buffer either way.
func (b *Bus) AcknowledgeEvent(eventID, subscriptionID string, status AckStatus, message string) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if !status.Valid() {
		return ErrInvalidAckStatus
	}

	b.acks.record(eventID, AckRecord{
		SubscriptionID: subscriptionID,
		Status:         status,
		Message:        message,
		AckedAt:        time.Now(),
	})
	b.stats.recordAck(status)
	return nil
}

// Acknowledgements returns the recorded outcomes for an event.
func (b *Bus) Acknowledgements(eventID string) []AckRecord {
	return b.acks.records(eventID)
}

// Stats returns a fully refreshed snapshot of bus counters.
func (b *Bus) Stats() Stats {
	deadLetters := 0
	if b.dlq != nil {
		if n, err := b.dlq.Len(); err == nil {
			deadLetters = n
		}
	}

	b.subMu.RLock()
	active := len(b.subs)
	b.subMu.RUnlock()

	return b.stats.snapshot(active, deadLetters)
}

// QueryEvents scans the retained buffer newest to oldest for events matching
// the filter, stopping after limit matches. limit <= 0 falls back to the
// filter's own Limit; zero for both scans the whole buffer.
func (b *Bus) QueryEvents(f Filter, limit int) []Event {
	if limit <= 0 {
		limit = f.Limit
	}
	return b.buffer.query(f, limit)
}

// DeadLetterEvents returns the most recent dead letter entries, newest first.
func (b *Bus) DeadLetterEvents(limit int) ([]DeadLetterEvent, error) {
	if b.dlq == nil {
		return nil, nil
	}
	return b.dlq.List(limit)
}

// RetryDeadLetterEvents re-runs up to limit dead-lettered events through the
// full publish pipeline, in queue order. Only entries with remaining retry
// budget are taken; their retry count is incremented before republishing, and
// an event may be dead-lettered again if there is still no receiver. Returns
// the number of events retried.
func (b *Bus) RetryDeadLetterEvents(ctx context.Context, limit int) (int, error) {
	if b.closed.Load() {
		return 0, ErrBusClosed
	}
	if b.dlq == nil {
		return 0, nil
	}

	taken, err := b.dlq.TakeRetryable(limit)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, dle := range taken {
		evt := dle.Event
		evt.RetryCount++
		if err := b.Publish(ctx, evt); err != nil {
			return retried, err
		}
		retried++
	}
	if retried > 0 && b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordRetry(ctx, retried)
	}
	return retried, nil
}

// ClearDeadLetterQueue empties the dead letter store and returns the number
// of entries removed.
func (b *Bus) ClearDeadLetterQueue() (int, error) {
	if b.dlq == nil {
		return 0, nil
	}
	return b.dlq.Clear()
}

// PurgeExpired removes expired events from the retained buffer and stale
// entries from the dead letter store. The cleanup ticker calls this on an
// interval; callers may force a pass at any time.
func (b *Bus) PurgeExpired() (buffered, deadLettered int) {
	now := time.Now()
	buffered = b.buffer.purgeExpired(now)

	if b.dlq != nil {
		n, err := b.dlq.PurgeOlderThan(now.Add(-b.cfg.DeadLetterRetention))
		if err != nil {
			observability.LogCleanupError(b.logger, err)
		} else {
			deadLettered = n
		}
	}

	b.acks.purgeOlderThan(now.Add(-b.cfg.DeadLetterRetention))

	if buffered > 0 || deadLettered > 0 {
		observability.LogCleanup(b.logger, buffered, deadLettered)
	}
	return buffered, deadLettered
}

// Close shuts down the bus: background routines stop, every subscription
// channel is closed, and the dead letter store is released. In-flight
// deliveries are not waited for.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	close(b.closeCh)

	b.subMu.Lock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.subMu.Unlock()

	if b.dlq != nil {
		return b.dlq.Close()
	}
	return nil
}

// cleanupLoop periodically purges expired buffered events and stale dead
// letter entries.
func (b *Bus) cleanupLoop() {
	ticker := time.NewTicker(b.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.PurgeExpired()
		case <-b.closeCh:
			return
		}
	}
}

// maintenanceLoop refreshes the stats snapshot and, when enabled, persists
// the {events, stats, timestamp} snapshot. Persistence failures are logged
// and retried next interval; they never propagate.
func (b *Bus) maintenanceLoop() {
	ticker := time.NewTicker(b.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := b.Stats()
			if b.cfg.PersistEvents && b.cfg.PersistPath != "" {
				snap := Snapshot{
					Events:    b.buffer.snapshot(),
					Stats:     stats,
					Timestamp: time.Now(),
				}
				if err := WriteSnapshot(b.cfg.PersistPath, snap); err != nil {
					observability.LogPersistError(b.logger, b.cfg.PersistPath, err)
				}
			}
		case <-b.closeCh:
			return
		}
	}
}
