package domain

import (
	"time"

	id "agegate/pkg/domain"
)

// PaymentEvent is one row per settlement attempt. CustomerReferenceID is the
// buyer's permanent pseudonymous reference; it stays behind if the owning
// account is erased.
type PaymentEvent struct {
	ID          id.PaymentEventID
	BuyerID     id.BuyerID
	AttemptID   id.AttemptID
	Type        id.PaymentEventType
	AmountCents int64

	// Status mirrors the payment leg of the settlement state machine.
	Status id.PaymentStatus

	CustomerReferenceID id.ReferenceID
	ProviderHoldRef     id.HoldRef

	AuthorizedAt *time.Time
	CapturedAt   *time.Time
	RefundedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether this payment event can no longer change.
func (e PaymentEvent) Terminal() bool { return e.Status.Terminal() }
