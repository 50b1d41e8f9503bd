package event_test

import (
	"testing"
	"time"

	"github.com/vmdeck/vmdeck/pkg/vmdeck/event"
)

func TestFilterMatches(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	evt := event.New(event.CategoryVMLifecycle, "vm_started", "vm_mgmt",
		event.WithPriority(event.PriorityMedium),
		event.WithTarget("tray"),
		event.WithTags("vm", "lifecycle"),
		event.WithTimestamp(ts),
	)

	hourBefore := ts.Add(-time.Hour)
	hourAfter := ts.Add(time.Hour)

	tests := []struct {
		name   string
		filter event.Filter
		want   bool
	}{
		{"empty filter matches all", event.Filter{}, true},
		{"category match", event.Filter{Categories: []event.Category{event.CategoryVMLifecycle}}, true},
		{"category mismatch", event.Filter{Categories: []event.Category{event.CategoryConfigChange}}, false},
		{"category list with match", event.Filter{Categories: []event.Category{event.CategoryConfigChange, event.CategoryVMLifecycle}}, true},
		{"type substring", event.Filter{Types: []string{"started"}}, true},
		{"type substring mismatch", event.Filter{Types: []string{"stopped"}}, false},
		{"type glob prefix", event.Filter{Types: []string{"vm_*"}}, true},
		{"type glob suffix", event.Filter{Types: []string{"*_started"}}, true},
		{"type glob mismatch", event.Filter{Types: []string{"config_*"}}, false},
		{"type glob is anchored", event.Filter{Types: []string{"m_sta*"}}, false},
		{"priority floor below", event.Filter{MinPriority: event.PriorityLow}, true},
		{"priority floor equal", event.Filter{MinPriority: event.PriorityMedium}, true},
		{"priority floor above", event.Filter{MinPriority: event.PriorityHigh}, false},
		{"source match", event.Filter{Sources: []string{"vm_mgmt"}}, true},
		{"source mismatch", event.Filter{Sources: []string{"log_collector"}}, false},
		{"target match", event.Filter{Targets: []string{"tray"}}, true},
		{"target mismatch", event.Filter{Targets: []string{"terminal"}}, false},
		{"tag any-of match", event.Filter{Tags: []string{"other", "vm"}}, true},
		{"tag any-of mismatch", event.Filter{Tags: []string{"other"}}, false},
		{"window containing", event.Filter{Since: &hourBefore, Until: &hourAfter}, true},
		{"window before", event.Filter{Until: &hourBefore}, false},
		{"window after", event.Filter{Since: &hourAfter}, false},
		{"window inclusive bounds", event.Filter{Since: &ts, Until: &ts}, true},
		{
			"all clauses pass",
			event.Filter{
				Categories:  []event.Category{event.CategoryVMLifecycle},
				Types:       []string{"vm_*"},
				MinPriority: event.PriorityLow,
				Sources:     []string{"vm_mgmt"},
				Targets:     []string{"tray"},
				Tags:        []string{"vm"},
				Since:       &hourBefore,
				Until:       &hourAfter,
			},
			true,
		},
		{
			"later clause fails",
			event.Filter{
				Categories: []event.Category{event.CategoryVMLifecycle},
				Tags:       []string{"missing"},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(evt); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

// An event without a target must fail any non-empty target filter.
func TestFilterTargetlessEvent(t *testing.T) {
	evt := event.New(event.CategoryLogCreated, "log_rotated", "log_collector")

	f := event.Filter{Targets: []string{"tray"}}
	if f.Matches(evt) {
		t.Error("expected targetless event to fail a non-empty target filter")
	}
	if !(event.Filter{}).Matches(evt) {
		t.Error("expected targetless event to pass an empty filter")
	}
}

func TestFilterCustomCategory(t *testing.T) {
	evt := event.New(event.Category("tray_menu"), "menu_opened", "tray")

	if !(event.Filter{Categories: []event.Category{"tray_menu"}}).Matches(evt) {
		t.Error("expected custom category to be filterable like any other")
	}
	if (event.Filter{Categories: []event.Category{event.CategoryVMLifecycle}}).Matches(evt) {
		t.Error("expected custom category to fail a different allow-list")
	}
}
