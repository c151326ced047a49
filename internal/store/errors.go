package store

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies adapter failures. The sync engine branches on Kind, not
// on backend error text.
type Kind int

const (
	// Transient is a retryable transport or timeout failure.
	Transient Kind = iota
	// NotFound means the referenced list or item no longer exists.
	NotFound
	// PermissionDenied is terminal until the user grants access.
	PermissionDenied
	// Unknown is anything the adapter could not classify. Treated as
	// terminal for the current pass.
	Unknown
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	default:
		return "unknown"
	}
}

// Error is a classified adapter failure.
type Error struct {
	Kind Kind
	Op   string // adapter operation, e.g. "ListItems"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified adapter error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from err. Errors that did not come
// from an adapter are Unknown, except context timeouts which fold into
// Transient (a call that never completed is indistinguishable from a
// transport failure).
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	return Unknown
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool { return err != nil && KindOf(err) == Transient }

// IsNotFound reports whether err means the referenced object is gone.
func IsNotFound(err error) bool { return err != nil && KindOf(err) == NotFound }
