package event_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmdeck/vmdeck/pkg/vmdeck/config"
	"github.com/vmdeck/vmdeck/pkg/vmdeck/event"
)

func TestFromConfig(t *testing.T) {
	doc := config.New(map[string]any{
		"max_buffer_size":             500,
		"default_ttl_seconds":         120,
		"default_max_retries":         5,
		"max_subscriptions":           10,
		"stats_interval_seconds":      15,
		"cleanup_interval_seconds":    30,
		"dead_letter_retention_hours": 12,
		"max_dead_letters":            200,
		"enable_dead_letter_queue":    true,
		"dead_letter_path":            "/var/lib/vmdeck/deadletter.db",
		"persist_events":              true,
		"persist_path":                "/var/lib/vmdeck/events.json",
		"batch_size":                  25,
		"batch_timeout_ms":            250,
	})

	cfg := event.FromConfig(doc)

	if cfg.MaxBufferSize != 500 {
		t.Errorf("max buffer size: got %d", cfg.MaxBufferSize)
	}
	if cfg.DefaultTTL != 2*time.Minute {
		t.Errorf("default ttl: got %v", cfg.DefaultTTL)
	}
	if cfg.DefaultMaxRetries != 5 {
		t.Errorf("default max retries: got %d", cfg.DefaultMaxRetries)
	}
	if cfg.MaxSubscriptions != 10 {
		t.Errorf("max subscriptions: got %d", cfg.MaxSubscriptions)
	}
	if cfg.StatsInterval != 15*time.Second {
		t.Errorf("stats interval: got %v", cfg.StatsInterval)
	}
	if cfg.CleanupInterval != 30*time.Second {
		t.Errorf("cleanup interval: got %v", cfg.CleanupInterval)
	}
	if cfg.DeadLetterRetention != 12*time.Hour {
		t.Errorf("dead letter retention: got %v", cfg.DeadLetterRetention)
	}
	if cfg.MaxDeadLetters != 200 {
		t.Errorf("max dead letters: got %d", cfg.MaxDeadLetters)
	}
	if cfg.DisableDeadLetter {
		t.Error("expected dead letter queue enabled")
	}
	if cfg.DeadLetterPath != "/var/lib/vmdeck/deadletter.db" {
		t.Errorf("dead letter path: got %q", cfg.DeadLetterPath)
	}
	if !cfg.PersistEvents || cfg.PersistPath != "/var/lib/vmdeck/events.json" {
		t.Errorf("persistence: got %v %q", cfg.PersistEvents, cfg.PersistPath)
	}
	if cfg.BatchSize != 25 || cfg.BatchTimeout != 250*time.Millisecond {
		t.Errorf("batch hints: got %d %v", cfg.BatchSize, cfg.BatchTimeout)
	}
}

func TestFromConfigDefaults(t *testing.T) {
	cfg := event.FromConfig(config.New(nil))

	if cfg.MaxBufferSize != event.DefaultConfig.MaxBufferSize {
		t.Errorf("max buffer size: got %d", cfg.MaxBufferSize)
	}
	if cfg.DefaultTTL != event.DefaultConfig.DefaultTTL {
		t.Errorf("default ttl: got %v", cfg.DefaultTTL)
	}
	if cfg.DisableDeadLetter {
		t.Error("expected dead letter queue enabled by default")
	}
	if cfg.PersistEvents {
		t.Error("expected persistence disabled by default")
	}
	if cfg.DeadLetterRetention != 24*time.Hour {
		t.Errorf("dead letter retention: got %v", cfg.DeadLetterRetention)
	}
}

func TestFromConfigDisabledDeadLetter(t *testing.T) {
	cfg := event.FromConfig(config.New(map[string]any{
		"enable_dead_letter_queue": false,
	}))
	if !cfg.DisableDeadLetter {
		t.Error("expected dead letter queue disabled")
	}
}

func TestBusConfigFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmdeck.yaml")
	yaml := `
max_buffer_size: 42
default_ttl_seconds: 60
enable_dead_letter_queue: false
persist_events: false
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	doc, err := config.FromFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg := event.FromConfig(doc)

	if cfg.MaxBufferSize != 42 {
		t.Errorf("max buffer size: got %d", cfg.MaxBufferSize)
	}
	if cfg.DefaultTTL != time.Minute {
		t.Errorf("default ttl: got %v", cfg.DefaultTTL)
	}
	if !cfg.DisableDeadLetter {
		t.Error("expected dead letter queue disabled")
	}

	bus, err := event.NewBus(cfg)
	if err != nil {
		t.Fatalf("NewBus from file config: %v", err)
	}
	defer bus.Close()
}
