package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and provider clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: insert collided with an existing row
// - ErrExpired: session or lock has passed its expiry timestamp
// - ErrAlreadyApplied: idempotent effect (capture, release, append) already done
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrExhausted: counter reached its limit (dealer credits)
// - ErrUnavailable: provider or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrExpired        = errors.New("expired")
	ErrAlreadyApplied = errors.New("already applied")
	ErrInvalidState   = errors.New("invalid state")
	ErrExhausted      = errors.New("exhausted")
	ErrUnavailable    = errors.New("unavailable")
)
