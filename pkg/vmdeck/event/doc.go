// Package event implements the in-process event bus at the core of vmdeck.
//
// The bus coordinates the VM lifecycle controller, the configuration loader,
// the log collector, and the terminal manager through a single publish/
// subscribe surface:
//   - Event value type with categories, priorities, TTL, and retry budgets
//   - Filter predicates for routing and after-the-fact queries
//   - Bounded retained buffer of recent events with FIFO eviction
//   - Per-subscription delivery channels that never block publishers
//   - Dead letter queue for events published with no active receivers
//   - Advisory acknowledgement tracking and running statistics
//
// Delivery is best-effort and in-memory. A subscriber that falls behind its
// channel buffer loses its oldest unread events; nothing is delivered across
// process boundaries and nothing survives a restart except the optional
// periodic JSON snapshot and the optional SQLite-backed dead letter store.
package event
