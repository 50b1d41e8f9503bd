package event

import (
	"log/slog"
	"time"

	"github.com/vmdeck/vmdeck/pkg/vmdeck/config"
	"github.com/vmdeck/vmdeck/pkg/vmdeck/observability"
)

// Config configures bus behavior. The zero value is usable; NewBus fills in
// defaults from DefaultConfig for every unset field.
type Config struct {
	// MaxBufferSize is the retained buffer capacity.
	// Default: 1000
	MaxBufferSize int

	// DefaultTTL is stamped onto events published without an expiry.
	// Default: 1 hour
	DefaultTTL time.Duration

	// DefaultMaxRetries is stamped onto events published without a retry budget.
	// Default: 3
	DefaultMaxRetries int

	// MaxSubscriptions limits concurrent subscriptions.
	// Default: 100
	MaxSubscriptions int

	// SubscriptionBuffer is the channel buffer size per subscription.
	// Default: 256
	SubscriptionBuffer int

	// StatsInterval is how often the stats snapshot (and the persisted
	// snapshot, when enabled) is refreshed.
	// Default: 30 seconds
	StatsInterval time.Duration

	// CleanupInterval is how often expired buffered events and stale dead
	// letter entries are purged.
	// Default: 1 minute
	CleanupInterval time.Duration

	// DeadLetterRetention is how long dead letter entries are kept before
	// age-based cleanup.
	// Default: 24 hours
	DeadLetterRetention time.Duration

	// MaxDeadLetters bounds the dead letter queue.
	// Default: 1000
	MaxDeadLetters int

	// DisableDeadLetter turns off dead lettering entirely. Zero-receiver
	// events are then only counted as dropped.
	DisableDeadLetter bool

	// DeadLetterPath selects the SQLite-backed dead letter store when
	// non-empty. Empty keeps dead letters in memory.
	DeadLetterPath string

	// PersistEvents enables the periodic JSON snapshot of the retained
	// buffer and stats.
	PersistEvents bool

	// PersistPath is the snapshot file path. Required when PersistEvents.
	PersistPath string

	// BatchSize and BatchTimeout are advisory hints for batch publishers.
	BatchSize    int
	BatchTimeout time.Duration

	// Logger receives structured bus logs. Nil disables logging.
	Logger *slog.Logger

	// Metrics records bus telemetry. Nil disables metrics.
	Metrics observability.BusMetrics

	// OnDrop is called when a slow subscriber loses an event.
	OnDrop func(evt Event, subscriptionID string)
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	MaxBufferSize:       1000,
	DefaultTTL:          time.Hour,
	DefaultMaxRetries:   3,
	MaxSubscriptions:    100,
	SubscriptionBuffer:  256,
	StatsInterval:       30 * time.Second,
	CleanupInterval:     time.Minute,
	DeadLetterRetention: 24 * time.Hour,
	MaxDeadLetters:      1000,
	BatchSize:           50,
	BatchTimeout:        500 * time.Millisecond,
}

// withDefaults returns cfg with every unset field filled from DefaultConfig.
func (cfg Config) withDefaults() Config {
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = DefaultConfig.MaxBufferSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig.DefaultTTL
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = DefaultConfig.DefaultMaxRetries
	}
	if cfg.MaxSubscriptions <= 0 {
		cfg.MaxSubscriptions = DefaultConfig.MaxSubscriptions
	}
	if cfg.SubscriptionBuffer <= 0 {
		cfg.SubscriptionBuffer = DefaultConfig.SubscriptionBuffer
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultConfig.StatsInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig.CleanupInterval
	}
	if cfg.DeadLetterRetention <= 0 {
		cfg.DeadLetterRetention = DefaultConfig.DeadLetterRetention
	}
	if cfg.MaxDeadLetters <= 0 {
		cfg.MaxDeadLetters = DefaultConfig.MaxDeadLetters
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig.BatchTimeout
	}
	return cfg
}

// FromConfig builds a bus Config from a loaded configuration document.
//
// Recognized keys mirror the vmdeck backend's config file:
//
//	max_buffer_size, default_ttl_seconds, default_max_retries,
//	max_subscriptions, subscription_buffer, stats_interval_seconds,
//	cleanup_interval_seconds, dead_letter_retention_hours, max_dead_letters,
//	enable_dead_letter_queue, dead_letter_path, persist_events, persist_path,
//	batch_size, batch_timeout_ms
func FromConfig(c config.Config) Config {
	return Config{
		MaxBufferSize:       c.Int("max_buffer_size", DefaultConfig.MaxBufferSize),
		DefaultTTL:          c.Duration("default_ttl_seconds", DefaultConfig.DefaultTTL),
		DefaultMaxRetries:   c.Int("default_max_retries", DefaultConfig.DefaultMaxRetries),
		MaxSubscriptions:    c.Int("max_subscriptions", DefaultConfig.MaxSubscriptions),
		SubscriptionBuffer:  c.Int("subscription_buffer", DefaultConfig.SubscriptionBuffer),
		StatsInterval:       c.Duration("stats_interval_seconds", DefaultConfig.StatsInterval),
		CleanupInterval:     c.Duration("cleanup_interval_seconds", DefaultConfig.CleanupInterval),
		DeadLetterRetention: time.Duration(c.Int("dead_letter_retention_hours", 24)) * time.Hour,
		MaxDeadLetters:      c.Int("max_dead_letters", DefaultConfig.MaxDeadLetters),
		DisableDeadLetter:   !c.Bool("enable_dead_letter_queue", true),
		DeadLetterPath:      c.String("dead_letter_path", ""),
		PersistEvents:       c.Bool("persist_events", false),
		PersistPath:         c.String("persist_path", ""),
		BatchSize:           c.Int("batch_size", DefaultConfig.BatchSize),
		BatchTimeout:        time.Duration(c.Int("batch_timeout_ms", 500)) * time.Millisecond,
	}
}
