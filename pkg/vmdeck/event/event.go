package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category classifies an event for coarse-grained routing and filtering.
//
// A closed set of well-known categories covers the vmdeck subsystems; any
// other string is accepted as an ad hoc custom category. An unrecognized
// category is never an error.
type Category string

// Well-known categories.
const (
	CategoryVMLifecycle  Category = "vm_lifecycle"
	CategoryConfigChange Category = "config_change"
	CategoryStateChange  Category = "state_change"
	CategoryLogCreated   Category = "log_created"
	CategorySystemError  Category = "system_error"
)

// Known returns true for one of the well-known categories.
// Everything else is treated as a custom category.
func (c Category) Known() bool {
	switch c {
	case CategoryVMLifecycle, CategoryConfigChange, CategoryStateChange,
		CategoryLogCreated, CategorySystemError:
		return true
	}
	return false
}

// Priority orders events from least to most urgent.
// The zero value is PriorityTrace, which as a filter floor matches everything.
type Priority int

// Priority levels, in ascending order.
const (
	PriorityTrace Priority = iota
	PriorityDebug
	PriorityInfo
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = [...]string{"trace", "debug", "info", "low", "medium", "high", "critical"}

// String returns the lowercase priority name.
func (p Priority) String() string {
	if p < PriorityTrace || int(p) >= len(priorityNames) {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority converts a priority name back to its level.
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if name == s {
			return Priority(i), nil
		}
	}
	return PriorityTrace, fmt.Errorf("unknown priority %q", s)
}

// MarshalJSON encodes the priority as its name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a priority from its name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Event is the atomic unit of communication on the bus.
//
// Events are value types: the bus stores and delivers copies, so a published
// event is never mutated by the publisher afterwards. Only the bus itself
// touches RetryCount, and only during dead letter retry.
type Event struct {
	ID            string            `json:"id"`
	Category      Category          `json:"category"`
	Type          string            `json:"event_type"`
	Priority      Priority          `json:"priority"`
	Source        string            `json:"source"`
	Target        string            `json:"target,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Payload       map[string]any    `json:"payload,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RequiresAck   bool              `json:"requires_ack,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
}

// IsExpired reports whether the event's deadline has passed.
// Events without a deadline never expire.
func (e Event) IsExpired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

// HasTag reports whether the event carries the given tag.
func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Option configures event creation.
type Option func(*Event)

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) Option {
	return func(e *Event) { e.ID = id }
}

// WithPriority sets the event priority (default: PriorityInfo).
func WithPriority(p Priority) Option {
	return func(e *Event) { e.Priority = p }
}

// WithTarget addresses the event to a specific recipient component.
func WithTarget(target string) Option {
	return func(e *Event) { e.Target = target }
}

// WithPayload attaches structured payload data.
func WithPayload(payload map[string]any) Option {
	return func(e *Event) { e.Payload = payload }
}

// WithCorrelationID sets the correlation ID for tracing.
func WithCorrelationID(id string) Option {
	return func(e *Event) { e.CorrelationID = id }
}

// WithUserID attributes the event to a user.
func WithUserID(id string) Option {
	return func(e *Event) { e.UserID = id }
}

// WithSessionID attributes the event to a session.
func WithSessionID(id string) Option {
	return func(e *Event) { e.SessionID = id }
}

// WithTags attaches routing tags.
func WithTags(tags ...string) Option {
	return func(e *Event) { e.Tags = tags }
}

// WithMetadata attaches open key/value metadata.
func WithMetadata(md map[string]string) Option {
	return func(e *Event) { e.Metadata = md }
}

// WithRequiresAck marks the event as requiring acknowledgement.
func WithRequiresAck() Option {
	return func(e *Event) { e.RequiresAck = true }
}

// WithTTL sets the expiry deadline relative to the event timestamp.
func WithTTL(d time.Duration) Option {
	return func(e *Event) {
		t := e.Timestamp.Add(d)
		e.ExpiresAt = &t
	}
}

// WithExpiresAt sets an absolute expiry deadline.
func WithExpiresAt(t time.Time) Option {
	return func(e *Event) { e.ExpiresAt = &t }
}

// WithMaxRetries sets the dead letter retry budget.
func WithMaxRetries(n int) Option {
	return func(e *Event) { e.MaxRetries = n }
}

// WithTimestamp sets a specific creation time (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) { e.Timestamp = t }
}

// New creates an event with the given category, type, and source.
//
// Defaults: a fresh UUID, the current time, PriorityInfo, and the event's own
// ID as correlation ID when none is supplied. The bus fills in TTL and retry
// defaults at publish time.
func New(category Category, eventType, source string, opts ...Option) Event {
	e := Event{
		ID:        uuid.New().String(),
		Category:  category,
		Type:      eventType,
		Priority:  PriorityInfo,
		Source:    source,
		Timestamp: time.Now(),
	}

	for _, opt := range opts {
		opt(&e)
	}

	// No correlation ID means this event is the root of its chain.
	if e.CorrelationID == "" {
		e.CorrelationID = e.ID
	}

	return e
}

// NewFromParent creates an event caused by a parent event.
// It inherits the parent's correlation, user, and session IDs.
func NewFromParent(parent Event, category Category, eventType, source string, opts ...Option) Event {
	parentOpts := []Option{
		WithCorrelationID(parent.CorrelationID),
		WithUserID(parent.UserID),
		WithSessionID(parent.SessionID),
	}
	return New(category, eventType, source, append(parentOpts, opts...)...)
}

// AckStatus is the outcome a subscriber reports for an event that required
// acknowledgement.
type AckStatus string

// Acknowledgement outcomes. Acknowledged and Processed count as success,
// Failed and Rejected count as failure.
const (
	AckAcknowledged AckStatus = "acknowledged"
	AckProcessed    AckStatus = "processed"
	AckFailed       AckStatus = "failed"
	AckRejected     AckStatus = "rejected"
)

// Valid reports whether s is one of the defined outcomes.
func (s AckStatus) Valid() bool {
	switch s {
	case AckAcknowledged, AckProcessed, AckFailed, AckRejected:
		return true
	}
	return false
}

// Success reports whether the outcome counts as a successful acknowledgement.
func (s AckStatus) Success() bool {
	return s == AckAcknowledged || s == AckProcessed
}
