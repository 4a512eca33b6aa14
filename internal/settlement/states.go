// Package settlement drives a buyer's verification attempt through the
// payment hold, the KYC session, the proof engine, and the compliance ledger.
// All per-buyer transitions run under the per-buyer lock; cross-buyer work is
// fully independent.
package settlement

import (
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// Event is a settlement state machine input.
type Event string

const (
	EventStart            Event = "start"
	EventSessionOpened    Event = "session_opened"
	EventDecisionApproved Event = "decision_approved"
	EventDecisionDeclined Event = "decision_declined"
	EventCaptureFailed    Event = "capture_failed"
)

// transitions is the complete table. Any (event, state) pair absent here is
// rejected; statuses only ever move forward along it.
var transitions = map[Event]map[id.PaymentStatus]id.PaymentStatus{
	EventStart: {
		id.PaymentPending:          id.PaymentAuthorized,
		id.PaymentFailed:           id.PaymentAuthorized,
		id.PaymentRejectedRefunded: id.PaymentAuthorized,
	},
	EventSessionOpened: {
		id.PaymentAuthorized: id.PaymentChecking,
	},
	EventDecisionApproved: {
		id.PaymentChecking:   id.PaymentPassed,
		id.PaymentAuthorized: id.PaymentPassed,
	},
	EventDecisionDeclined: {
		id.PaymentChecking:   id.PaymentRejectedRefunded,
		id.PaymentAuthorized: id.PaymentRejectedRefunded,
	},
	EventCaptureFailed: {
		id.PaymentPassed: id.PaymentError,
	},
}

// Next returns the state event moves current to. Pairs absent from the table
// fail with CodeInvalidState and imply no state change.
func Next(current id.PaymentStatus, event Event) (id.PaymentStatus, error) {
	allowed, ok := transitions[event]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidState, "unknown settlement event %q", event)
	}
	next, ok := allowed[current]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidState,
			"event %s is not permitted from state %s", event, current)
	}
	return next, nil
}

// Satisfied reports whether current is already at or past the state event
// targets. Used by webhook dedup to turn replays into no-op successes.
func Satisfied(current id.PaymentStatus, event Event) bool {
	switch event {
	case EventStart:
		return current == id.PaymentAuthorized || current == id.PaymentChecking ||
			current == id.PaymentPassed || current == id.PaymentCompleted
	case EventSessionOpened:
		return current == id.PaymentChecking || current == id.PaymentPassed ||
			current == id.PaymentCompleted
	case EventDecisionApproved:
		return current == id.PaymentPassed || current == id.PaymentCompleted
	case EventDecisionDeclined:
		return current == id.PaymentRejectedRefunded
	case EventCaptureFailed:
		return current == id.PaymentError
	default:
		return false
	}
}
