// Package dealer owns dealer accounts and the prepaid quota meter.
package dealer

import (
	"context"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
)

// Store persists dealer accounts. Reserve and AddCredits must be atomic at
// the storage layer: concurrent verify calls from the same dealer race on the
// counters, and a read-then-write in application code would double-spend.
type Store interface {
	Save(ctx context.Context, dealer *domain.DealerAccount) error
	FindByID(ctx context.Context, dealerID id.DealerID) (*domain.DealerAccount, error)
	// Reserve atomically checks used+cost <= purchased and increments used.
	// Returns sentinel.ErrExhausted when the balance does not cover cost and
	// sentinel.ErrNotFound for an unknown dealer.
	Reserve(ctx context.Context, dealerID id.DealerID, cost int) (*domain.DealerAccount, error)
	// Refund atomically decrements used by cost, never below zero.
	Refund(ctx context.Context, dealerID id.DealerID, cost int) error
	// AddCredits atomically increments purchased.
	AddCredits(ctx context.Context, dealerID id.DealerID, credits int) (*domain.DealerAccount, error)
}
