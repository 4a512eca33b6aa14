// Package domainerrors defines the structured error type shared across the
// module. Services return these instead of string-matched sentinel errors so
// callers can branch on an explicit discriminant.
//
// Import as dErrors by convention:
//
//	import dErrors "agegate/pkg/domain-errors"
//
//	return dErrors.New(dErrors.CodeQuotaExceeded, "dealer credits exhausted")
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is the machine-readable discriminant carried by every domain error.
type Code string

const (
	// CodeValidation marks malformed or missing input.
	CodeValidation Code = "validation_error"
	// CodeBadRequest marks a structurally valid request that cannot be served.
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput is an alias-level code for field parsing failures.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks an absent buyer, dealer, payment, or session.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a write that collides with existing state.
	CodeConflict Code = "conflict"
	// CodeInvalidState marks a state-machine transition not permitted from the
	// current state. State is left unchanged when this is returned.
	CodeInvalidState Code = "invalid_state"
	// CodeQuotaExceeded marks a dealer whose used credits reached purchased.
	CodeQuotaExceeded Code = "quota_exceeded"
	// CodeDuplicate marks an idempotent no-op: the requested effect is already
	// applied. It is a marker, not a failure; callers usually treat it as success.
	CodeDuplicate Code = "duplicate_request"
	// CodeExternal marks an unreachable provider or an unexpected provider status.
	CodeExternal Code = "external_service_error"
	// CodeUnauthorized marks missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks valid credentials lacking access.
	CodeForbidden Code = "forbidden"
	// CodeInternal marks everything the caller cannot act on.
	CodeInternal Code = "internal_error"
)

// Error carries a code plus a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match two domain errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New builds a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for plain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is re-exports errors.Is so callers importing this package as dErrors do not
// need a second errors import for the common check.
func Is(err, target error) bool { return errors.Is(err, target) }
