package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

var allStates = []id.PaymentStatus{
	id.PaymentPending,
	id.PaymentAuthorized,
	id.PaymentChecking,
	id.PaymentPassed,
	id.PaymentCompleted,
	id.PaymentRejectedRefunded,
	id.PaymentCompletedRefunded,
	id.PaymentFailed,
	id.PaymentError,
}

var allEvents = []Event{
	EventStart,
	EventSessionOpened,
	EventDecisionApproved,
	EventDecisionDeclined,
	EventCaptureFailed,
}

func TestNext_AllowedTransitions(t *testing.T) {
	cases := []struct {
		from  id.PaymentStatus
		event Event
		to    id.PaymentStatus
	}{
		{id.PaymentPending, EventStart, id.PaymentAuthorized},
		{id.PaymentFailed, EventStart, id.PaymentAuthorized},
		{id.PaymentRejectedRefunded, EventStart, id.PaymentAuthorized},
		{id.PaymentAuthorized, EventSessionOpened, id.PaymentChecking},
		{id.PaymentChecking, EventDecisionApproved, id.PaymentPassed},
		{id.PaymentAuthorized, EventDecisionApproved, id.PaymentPassed},
		{id.PaymentChecking, EventDecisionDeclined, id.PaymentRejectedRefunded},
		{id.PaymentAuthorized, EventDecisionDeclined, id.PaymentRejectedRefunded},
		{id.PaymentPassed, EventCaptureFailed, id.PaymentError},
	}

	for _, tc := range cases {
		next, err := Next(tc.from, tc.event)
		require.NoError(t, err, "%s from %s", tc.event, tc.from)
		assert.Equal(t, tc.to, next)
	}
}

// Every (state, event) pair absent from the table must fail with an invalid
// state error, and imply no state change.
func TestNext_TotalOverAbsentPairs(t *testing.T) {
	for _, state := range allStates {
		for _, event := range allEvents {
			if _, inTable := transitions[event][state]; inTable {
				continue
			}
			next, err := Next(state, event)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState),
				"%s from %s should be invalid", event, state)
			assert.Empty(t, next)
		}
	}
}

func TestNext_UnknownEvent(t *testing.T) {
	_, err := Next(id.PaymentPending, Event("bogus"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestSatisfied(t *testing.T) {
	cases := []struct {
		state     id.PaymentStatus
		event     Event
		satisfied bool
	}{
		{id.PaymentAuthorized, EventStart, true},
		{id.PaymentCompleted, EventStart, true},
		{id.PaymentPending, EventStart, false},
		{id.PaymentChecking, EventSessionOpened, true},
		{id.PaymentAuthorized, EventSessionOpened, false},
		{id.PaymentCompleted, EventDecisionApproved, true},
		{id.PaymentChecking, EventDecisionApproved, false},
		{id.PaymentRejectedRefunded, EventDecisionDeclined, true},
		{id.PaymentCompleted, EventDecisionDeclined, false},
		{id.PaymentError, EventCaptureFailed, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.satisfied, Satisfied(tc.state, tc.event),
			"%s at %s", tc.event, tc.state)
	}
}
