// Package domain holds typed identifiers and shared enums. Wrapping uuid.UUID
// in distinct named types makes cross-wiring a buyer id into a dealer slot a
// compile error instead of a data bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "agegate/pkg/domain-errors"
)

type (
	// BuyerID identifies a buyer account row.
	BuyerID uuid.UUID
	// DealerID identifies a dealer account row.
	DealerID uuid.UUID
	// AttemptID identifies a single verification attempt. It is the natural key
	// for the exactly-one-compliance-event invariant.
	AttemptID uuid.UUID
	// PaymentEventID identifies a settlement attempt row.
	PaymentEventID uuid.UUID
)

// Provider-issued references are opaque strings; we never parse their shape.
type (
	// HoldRef is the payment processor's reference for a manual-capture hold.
	HoldRef string
	// KYCSessionID is the identity provider's reference for a verification session.
	KYCSessionID string
	// ReferenceID is the permanent pseudonymous identifier for a buyer or dealer.
	// It survives deletion of the owning account row.
	ReferenceID string
)

func (id BuyerID) String() string        { return uuid.UUID(id).String() }
func (id DealerID) String() string       { return uuid.UUID(id).String() }
func (id AttemptID) String() string      { return uuid.UUID(id).String() }
func (id PaymentEventID) String() string { return uuid.UUID(id).String() }

func (id BuyerID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DealerID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AttemptID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PaymentEventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewBuyerID returns a fresh random buyer id.
func NewBuyerID() BuyerID { return BuyerID(uuid.New()) }

// NewDealerID returns a fresh random dealer id.
func NewDealerID() DealerID { return DealerID(uuid.New()) }

// NewAttemptID returns a fresh random attempt id.
func NewAttemptID() AttemptID { return AttemptID(uuid.New()) }

// NewPaymentEventID returns a fresh random payment event id.
func NewPaymentEventID() PaymentEventID { return PaymentEventID(uuid.New()) }

// NewReferenceID mints a permanent pseudonymous reference. Reference ids are
// never reused and never deleted, so they are plain random UUID strings with a
// stable prefix for log greppability.
func NewReferenceID(prefix string) ReferenceID {
	return ReferenceID(prefix + "_" + uuid.NewString())
}

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseBuyerID validates raw as a non-nil UUID buyer id.
func ParseBuyerID(raw string) (BuyerID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return BuyerID{}, err
	}
	return BuyerID(parsed), nil
}

// ParseDealerID validates raw as a non-nil UUID dealer id.
func ParseDealerID(raw string) (DealerID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return DealerID{}, err
	}
	return DealerID(parsed), nil
}

// ParseAttemptID validates raw as a non-nil UUID attempt id.
func ParseAttemptID(raw string) (AttemptID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return AttemptID{}, err
	}
	return AttemptID(parsed), nil
}
