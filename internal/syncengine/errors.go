package syncengine

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is missing or empty user input. Reported to the invoking
	// user; never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotLinked is a thread or item with no counterpart mapping.
	ErrNotLinked = errors.New("thread not linked")
	// ErrUpstream is a failed external API call.
	ErrUpstream = errors.New("upstream call failed")
	// ErrThreadCreationFailed is a resolution that could not create a thread.
	// The triggering event is dropped; a later duplicate webhook re-triggers.
	ErrThreadCreationFailed = errors.New("thread creation failed")
	// ErrNoStatusColumn means the item has no locatable status column.
	ErrNoStatusColumn = errors.New("no status column")
)

// ValidationError carries the short message shown to the invoking user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamError wraps a raw transport or API failure at the component
// boundary so it never propagates into mapping or resolution logic.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
