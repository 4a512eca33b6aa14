package domain

import (
	"time"

	id "agegate/pkg/domain"
)

// BuyerAccount is the identity anchor for a verification attempt. The
// ReferenceID is permanent: it is never reused and survives account deletion.
// Only the settlement state machine and the webhook reconciler mutate the
// status fields.
type BuyerAccount struct {
	ID          id.BuyerID
	ReferenceID id.ReferenceID
	Email       string

	// ShippingAddress is the address the buyer's identity record must match.
	// Captured at start; nulled on erasure like the other PII fields.
	ShippingAddress Address

	PaymentStatus      id.PaymentStatus
	VerificationStatus id.VerificationStatus

	// AttemptID names the current verification attempt. Regenerated on each
	// accepted start.
	AttemptID id.AttemptID
	// HoldRef is the external payment-hold reference for the current attempt.
	HoldRef id.HoldRef
	// SessionID is the external KYC session for the current attempt.
	SessionID id.KYCSessionID

	// VerificationExpiresAt bounds how long a passed verification stays valid.
	// Expiry is checked by comparing against request time, not by a reaper.
	VerificationExpiresAt time.Time

	// Anonymized marks a CCPA-style erased account: PII fields are nulled,
	// ReferenceID is kept.
	Anonymized bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DealerAccount is a verifying party with a prepaid credit balance. The API
// credential is stored as a bcrypt hash only.
type DealerAccount struct {
	ID          id.DealerID
	ReferenceID id.ReferenceID
	Name        string

	CreditsPurchased int
	CreditsUsed      int

	APIKeyHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account is the role-tagged union over the two account kinds. Exactly one
// payload is non-nil; callers switch on Role.
type Account struct {
	Role   id.AccountRole
	Buyer  *BuyerAccount
	Dealer *DealerAccount
}

// BuyerOf wraps a buyer account in the tagged union.
func BuyerOf(b *BuyerAccount) Account {
	return Account{Role: id.RoleBuyer, Buyer: b}
}

// DealerOf wraps a dealer account in the tagged union.
func DealerOf(d *DealerAccount) Account {
	return Account{Role: id.RoleDealer, Dealer: d}
}
