// Package domainerrors provides coded errors shared by services and transports.
//
// Stores return pkg/platform/sentinel errors for infrastructure facts; services
// translate those into coded domain errors here so handlers can map them to
// HTTP statuses without inspecting storage internals.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	// CodeNotFound means the operation targeted an entity that does not exist.
	// Surfaced to the caller, never retried.
	CodeNotFound Code = "not_found"

	// CodeConflict means a uniqueness or state conflict the caller can correct
	// (duplicate email on creation, for example).
	CodeConflict Code = "conflict"

	// CodeInvalidInput means malformed input: a stage outside the fixed
	// enumeration, an empty bulk id set, blank note content.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest means the request itself could not be parsed.
	CodeBadRequest Code = "bad_request"

	// CodeUnavailable means the underlying store is temporarily unreachable.
	// The caller may retry with the usual exactly-once caveats: the core never
	// retries on its own, to avoid double-appending ledger entries.
	CodeUnavailable Code = "unavailable"

	// CodeInvariantViolation means a domain invariant would be broken.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a classification code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
