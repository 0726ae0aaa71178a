package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a persistence error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	kind string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so wrapped copies still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.kind == t.kind
	}
	return false
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err, kind: e.kind}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err, kind: e.kind}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
		kind:    "not_found",
	}

	// ErrAlreadyExists is returned when an insert violates a uniqueness
	// constraint, including the one-open-invitation-per-pair index.
	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
		kind:    "already_exists",
	}

	// ErrNotPending is returned when a guarded transition matched no row:
	// the invitation does not exist, is not addressed to the caller, or is no longer pending.
	ErrNotPending = &Error{
		Code:    http.StatusConflict,
		Message: "invitation not found or not pending",
		kind:    "not_pending",
	}

	// ErrPropertyOccupied is returned when a status change requires an empty tenant set.
	ErrPropertyOccupied = &Error{
		Code:    http.StatusConflict,
		Message: "property has assigned tenants",
		kind:    "occupied",
	}

	// ErrUnavailable marks transient failures: lock contention, timeouts, closed pools.
	// Callers may retry with backoff.
	ErrUnavailable = &Error{
		Code:    http.StatusServiceUnavailable,
		Message: "storage unavailable",
		kind:    "unavailable",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
		kind:    "invalid_input",
	}
)
