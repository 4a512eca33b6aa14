package payment

import (
	"context"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
)

// Store persists payment events. Implementations return sentinel.ErrNotFound
// for absent rows.
type Store interface {
	Save(ctx context.Context, event *domain.PaymentEvent) error
	FindByID(ctx context.Context, eventID id.PaymentEventID) (*domain.PaymentEvent, error)
	FindByHoldRef(ctx context.Context, holdRef id.HoldRef) (*domain.PaymentEvent, error)
	// FindOpenByBuyer returns the buyer's in-flight payment event, if any
	// (pending, authorized, checking, or passed).
	FindOpenByBuyer(ctx context.Context, buyerID id.BuyerID) (*domain.PaymentEvent, error)
}
