package event_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/vmdeck/vmdeck/pkg/vmdeck/event"
)

func TestNewDefaults(t *testing.T) {
	before := time.Now()
	evt := event.New(event.CategoryVMLifecycle, "vm_started", "vm_mgmt")

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.Priority != event.PriorityInfo {
		t.Errorf("expected default priority info, got %s", evt.Priority)
	}
	if evt.Timestamp.Before(before) {
		t.Error("expected timestamp to be set to creation time")
	}
	if evt.CorrelationID != evt.ID {
		t.Errorf("expected correlation ID to default to event ID, got %q", evt.CorrelationID)
	}
	if evt.ExpiresAt != nil {
		t.Error("expected no expiry on a fresh event; the bus stamps the default TTL")
	}
	if evt.MaxRetries != 0 {
		t.Errorf("expected zero max retries on a fresh event, got %d", evt.MaxRetries)
	}
}

func TestNewOptions(t *testing.T) {
	expires := time.Now().Add(time.Minute)
	evt := event.New(event.CategoryConfigChange, "config_saved", "config_loader",
		event.WithEventID("evt-1"),
		event.WithPriority(event.PriorityHigh),
		event.WithTarget("vm_mgmt"),
		event.WithPayload(map[string]any{"path": "/etc/vmdeck.yaml"}),
		event.WithCorrelationID("corr-1"),
		event.WithTags("config", "user"),
		event.WithRequiresAck(),
		event.WithExpiresAt(expires),
		event.WithMaxRetries(5),
	)

	if evt.ID != "evt-1" {
		t.Errorf("expected explicit ID, got %q", evt.ID)
	}
	if evt.Priority != event.PriorityHigh {
		t.Errorf("expected high priority, got %s", evt.Priority)
	}
	if evt.Target != "vm_mgmt" {
		t.Errorf("unexpected target %q", evt.Target)
	}
	if evt.CorrelationID != "corr-1" {
		t.Errorf("expected explicit correlation ID, got %q", evt.CorrelationID)
	}
	if !evt.RequiresAck {
		t.Error("expected requires_ack")
	}
	if evt.ExpiresAt == nil || !evt.ExpiresAt.Equal(expires) {
		t.Errorf("unexpected expiry %v", evt.ExpiresAt)
	}
	if evt.MaxRetries != 5 {
		t.Errorf("unexpected max retries %d", evt.MaxRetries)
	}
	if !evt.HasTag("config") || !evt.HasTag("user") || evt.HasTag("other") {
		t.Errorf("unexpected tags %v", evt.Tags)
	}
}

func TestNewFromParent(t *testing.T) {
	parent := event.New(event.CategoryVMLifecycle, "vm_started", "vm_mgmt",
		event.WithCorrelationID("corr-9"),
		event.WithUserID("user-1"),
		event.WithSessionID("sess-1"),
	)

	child := event.NewFromParent(parent, event.CategoryStateChange, "state_updated", "state_store")

	if child.CorrelationID != "corr-9" {
		t.Errorf("expected inherited correlation ID, got %q", child.CorrelationID)
	}
	if child.UserID != "user-1" || child.SessionID != "sess-1" {
		t.Errorf("expected inherited user/session, got %q/%q", child.UserID, child.SessionID)
	}
	if child.ID == parent.ID {
		t.Error("expected child to get its own ID")
	}
}

func TestIsExpired(t *testing.T) {
	past := event.New(event.CategoryLogCreated, "log_rotated", "log_collector",
		event.WithExpiresAt(time.Now().Add(-time.Second)))
	if !past.IsExpired() {
		t.Error("expected event with past deadline to be expired immediately")
	}

	future := event.New(event.CategoryLogCreated, "log_rotated", "log_collector",
		event.WithTTL(time.Hour))
	if future.IsExpired() {
		t.Error("expected event with future deadline to not be expired")
	}

	none := event.New(event.CategoryLogCreated, "log_rotated", "log_collector")
	if none.IsExpired() {
		t.Error("expected event without deadline to never expire")
	}
}

func TestPriorityOrder(t *testing.T) {
	order := []event.Priority{
		event.PriorityTrace,
		event.PriorityDebug,
		event.PriorityInfo,
		event.PriorityLow,
		event.PriorityMedium,
		event.PriorityHigh,
		event.PriorityCritical,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("expected %s < %s", order[i-1], order[i])
		}
	}
}

func TestParsePriority(t *testing.T) {
	for _, p := range []event.Priority{
		event.PriorityTrace, event.PriorityDebug, event.PriorityInfo,
		event.PriorityLow, event.PriorityMedium, event.PriorityHigh,
		event.PriorityCritical,
	} {
		parsed, err := event.ParsePriority(p.String())
		if err != nil {
			t.Fatalf("parse %q: %v", p.String(), err)
		}
		if parsed != p {
			t.Errorf("round trip %s: got %s", p, parsed)
		}
	}

	if _, err := event.ParsePriority("urgent"); err == nil {
		t.Error("expected error for unknown priority name")
	}
}

func TestCategoryKnown(t *testing.T) {
	if !event.CategoryVMLifecycle.Known() {
		t.Error("expected vm_lifecycle to be a known category")
	}
	if event.Category("tray_menu").Known() {
		t.Error("expected custom category to be unknown")
	}
}

// TestEventJSONRoundTrip checks that serializing an event with every optional
// field populated preserves all fields.
func TestEventJSONRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	expires := ts.Add(time.Hour)

	original := event.New(event.Category("tray_menu"), "menu_opened", "tray",
		event.WithEventID("evt-rt"),
		event.WithPriority(event.PriorityCritical),
		event.WithTarget("ui"),
		event.WithTimestamp(ts),
		event.WithPayload(map[string]any{"item": "restart", "count": float64(2)}),
		event.WithCorrelationID("corr-rt"),
		event.WithUserID("user-rt"),
		event.WithSessionID("sess-rt"),
		event.WithTags("ui", "menu"),
		event.WithMetadata(map[string]string{"origin": "left_click"}),
		event.WithRequiresAck(),
		event.WithExpiresAt(expires),
		event.WithMaxRetries(7),
	)
	original.RetryCount = 2

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded event.Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != original.ID ||
		decoded.Category != original.Category ||
		decoded.Type != original.Type ||
		decoded.Priority != original.Priority ||
		decoded.Source != original.Source ||
		decoded.Target != original.Target ||
		decoded.CorrelationID != original.CorrelationID ||
		decoded.UserID != original.UserID ||
		decoded.SessionID != original.SessionID ||
		decoded.RequiresAck != original.RequiresAck ||
		decoded.RetryCount != original.RetryCount ||
		decoded.MaxRetries != original.MaxRetries {
		t.Errorf("scalar fields differ after round trip:\n%+v\n%+v", original, decoded)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("timestamp differs: %v vs %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(*original.ExpiresAt) {
		t.Errorf("expires_at differs: %v vs %v", decoded.ExpiresAt, original.ExpiresAt)
	}
	if !reflect.DeepEqual(decoded.Tags, original.Tags) {
		t.Errorf("tags differ: %v vs %v", decoded.Tags, original.Tags)
	}
	if !reflect.DeepEqual(decoded.Metadata, original.Metadata) {
		t.Errorf("metadata differs: %v vs %v", decoded.Metadata, original.Metadata)
	}
	if !reflect.DeepEqual(decoded.Payload, original.Payload) {
		t.Errorf("payload differs: %v vs %v", decoded.Payload, original.Payload)
	}
}

func TestAckStatus(t *testing.T) {
	for _, s := range []event.AckStatus{
		event.AckAcknowledged, event.AckProcessed, event.AckFailed, event.AckRejected,
	} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if event.AckStatus("done").Valid() {
		t.Error("expected unknown status to be invalid")
	}

	if !event.AckAcknowledged.Success() || !event.AckProcessed.Success() {
		t.Error("expected acknowledged/processed to count as success")
	}
	if event.AckFailed.Success() || event.AckRejected.Success() {
		t.Error("expected failed/rejected to count as failure")
	}
}
