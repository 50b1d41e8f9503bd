package event

import (
	"regexp"
	"strings"
	"time"
)

// Filter is a predicate specification over events.
//
// Empty allow-lists match everything. The same predicate drives both
// retained-buffer queries and fan-out routing, so a subscription sees exactly
// the events a query with its filter would return.
type Filter struct {
	// Categories is a category allow-list. Empty matches all categories.
	Categories []Category `json:"categories,omitempty"`

	// Types holds event type patterns. A pattern containing '*' is matched
	// as an anchored glob; a pattern without one matches by substring.
	Types []string `json:"event_types,omitempty"`

	// MinPriority is the inclusive priority floor.
	// The zero value (PriorityTrace) matches every priority.
	MinPriority Priority `json:"min_priority,omitempty"`

	// Sources is a source allow-list. Empty matches all sources.
	Sources []string `json:"sources,omitempty"`

	// Targets is a target allow-list. An event without a target fails a
	// non-empty target filter.
	Targets []string `json:"targets,omitempty"`

	// Tags requires the event to carry at least one listed tag, when non-empty.
	Tags []string `json:"tags,omitempty"`

	// Since/Until bound the event timestamp, inclusive on both ends.
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`

	// Limit caps query results. Zero means no limit. Ignored for routing.
	Limit int `json:"limit,omitempty"`
}

// Matches evaluates the filter clauses left to right, short-circuiting on the
// first failing clause.
func (f Filter) Matches(e Event) bool {
	if len(f.Categories) > 0 && !containsCategory(f.Categories, e.Category) {
		return false
	}

	if len(f.Types) > 0 {
		matched := false
		for _, pattern := range f.Types {
			if matchType(pattern, e.Type) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if e.Priority < f.MinPriority {
		return false
	}

	if len(f.Sources) > 0 && !containsString(f.Sources, e.Source) {
		return false
	}

	if len(f.Targets) > 0 {
		if e.Target == "" || !containsString(f.Targets, e.Target) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		matched := false
		for _, tag := range f.Tags {
			if e.HasTag(tag) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}

	return true
}

// matchType matches an event type against a single pattern. Patterns with a
// wildcard become anchored regular expressions ('*' matching any run of
// characters); plain patterns match by substring containment.
func matchType(pattern, eventType string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(eventType, pattern)
	}

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return strings.Contains(eventType, pattern)
	}
	return re.MatchString(eventType)
}

func containsCategory(list []Category, c Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
