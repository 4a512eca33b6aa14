package domain

// PaymentStatus mirrors the payment leg of a verification attempt. Statuses
// only move forward along the settlement transition graph, never backward.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentChecking          PaymentStatus = "checking"
	PaymentPassed            PaymentStatus = "passed"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentRejectedRefunded  PaymentStatus = "rejected_refunded"
	PaymentCompletedRefunded PaymentStatus = "completed_refunded"
	PaymentFailed            PaymentStatus = "failed"
	// PaymentError is terminal and requires manual reconciliation: a decision
	// was approved but the capture failed. It is never silently reverted.
	PaymentError PaymentStatus = "error"
)

// Terminal reports whether no further transition may leave this status.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentRejectedRefunded, PaymentError:
		return true
	}
	return false
}

// Open reports an in-flight attempt. A failed attempt is neither terminal nor
// open: it does not block a fresh start.
func (s PaymentStatus) Open() bool {
	switch s {
	case PaymentPending, PaymentAuthorized, PaymentChecking, PaymentPassed:
		return true
	}
	return false
}

// VerificationStatus tracks the identity leg of an attempt.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationChecking   VerificationStatus = "checking"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// PaymentEventType distinguishes the one-shot verification settlement from
// recurring subscription charges. Only verification flows through the
// settlement orchestrator.
type PaymentEventType string

const (
	PaymentEventVerification PaymentEventType = "verification"
	PaymentEventSubscription PaymentEventType = "subscription"
)

// AccountRole tags the account sum type. Buyer and dealer payloads are
// disjoint; callers switch on the role, never on runtime type inspection.
type AccountRole string

const (
	RoleBuyer  AccountRole = "buyer"
	RoleDealer AccountRole = "dealer"
)
