// Package kyc coordinates identity verification sessions with the external
// KYC provider. Decisions never come from a synchronous poll; they arrive only
// through the webhook reconciliation path.
package kyc

import (
	"context"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
)

//go:generate mockgen -source=provider.go -destination=mocks/provider.go -package=mocks Provider

// SessionResult is the provider's answer to a session request.
type SessionResult struct {
	SessionID id.KYCSessionID
	Token     string
}

// Provider is the external KYC provider contract.
type Provider interface {
	CreateSession(ctx context.Context, referenceID id.ReferenceID) (SessionResult, error)
	// Attributes releases the decrypted identity attributes for an approved
	// session. Callers must keep them inside the proof engine boundary.
	Attributes(ctx context.Context, sessionID id.KYCSessionID) (domain.IdentityAttributes, error)
}
