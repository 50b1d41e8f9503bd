package event

import (
	"errors"
	"fmt"
)

// Sentinel errors returned from the bus's synchronous surface.
var (
	// ErrBusClosed is returned by every operation after Close.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrSubscriptionLimit is returned by Subscribe when the configured
	// maximum number of concurrent subscriptions is already reached.
	ErrSubscriptionLimit = errors.New("subscription limit exceeded")

	// ErrSubscriptionNotFound is returned by Unsubscribe for an unknown ID.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvalidAckStatus is returned by AcknowledgeEvent for a status
	// outside the defined set.
	ErrInvalidAckStatus = errors.New("invalid acknowledgement status")
)

// EventError wraps an error that occurred while handling a specific event.
type EventError struct {
	EventID string // The event involved
	Op      string // Operation that failed ("publish", "persist", ...)
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s event %s: %s: %v", e.Op, e.EventID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s event %s: %s", e.Op, e.EventID, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}
