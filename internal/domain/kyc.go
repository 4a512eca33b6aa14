package domain

import (
	"time"

	id "agegate/pkg/domain"
)

// VerificationSession references the external KYC provider's session. Only the
// id and opaque token are held; the provider owns the lifecycle.
type VerificationSession struct {
	ID        id.KYCSessionID
	Token     string
	BuyerID   id.BuyerID
	AttemptID id.AttemptID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired compares against the supplied clock reading. There is no background
// reaper; expiry is always a comparison at use time.
func (s VerificationSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// IdentityAttributes are the decrypted attributes the KYC provider releases
// after an approved check. They exist only transiently inside the proof
// engine boundary.
type IdentityAttributes struct {
	DateOfBirth time.Time
	Address     Address
}

// Address is a postal address used for match scoring.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// WebhookEventKind classifies normalized provider events.
type WebhookEventKind string

const (
	WebhookSessionOpened    WebhookEventKind = "session_opened"
	WebhookDecisionApproved WebhookEventKind = "decision_approved"
	WebhookDecisionDeclined WebhookEventKind = "decision_declined"
	WebhookHoldAuthorized   WebhookEventKind = "hold_authorized"
)

// WebhookEvent is a normalized at-least-once event from either provider,
// keyed by the external reference it carries.
type WebhookEvent struct {
	Kind       WebhookEventKind
	SessionID  id.KYCSessionID
	HoldRef    id.HoldRef
	ReceivedAt time.Time
}
