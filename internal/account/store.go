// Package account owns buyer account persistence and the CCPA-style erasure
// flow. Dealer accounts live in internal/dealer; the shared tagged union is in
// internal/domain.
package account

import (
	"context"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
)

// Store persists buyer accounts. Implementations return sentinel.ErrNotFound
// for absent rows and sentinel.ErrConflict for reference collisions.
type Store interface {
	Save(ctx context.Context, buyer *domain.BuyerAccount) error
	FindByID(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error)
	FindByEmail(ctx context.Context, email string) (*domain.BuyerAccount, error)
	// FindByHoldRef and FindBySessionID resolve webhook references back to the
	// owning buyer.
	FindByHoldRef(ctx context.Context, holdRef id.HoldRef) (*domain.BuyerAccount, error)
	FindBySessionID(ctx context.Context, sessionID id.KYCSessionID) (*domain.BuyerAccount, error)
}
