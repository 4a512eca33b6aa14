package webhook

import (
	"context"
	"time"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/platform/sentinel"
)

// Resolution is what a bounded wait produced.
type Resolution struct {
	Resolved           bool
	PaymentStatus      id.PaymentStatus
	VerificationStatus id.VerificationStatus
}

// WaitForResolution blocks until the buyer's attempt reaches a terminal state
// or maxWait passes, whichever comes first. The primary wake-up is the
// notifier channel; fixed-interval state reads back it up so a missed
// notification cannot strand the caller. The provider's thread is never held
// past the deadline.
func (s *Service) WaitForResolution(ctx context.Context, buyerID id.BuyerID, maxWait time.Duration) (Resolution, error) {
	notify, cancel := s.notifier.Subscribe(buyerID)
	defer cancel()

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()

	for {
		buyer, err := s.readState(ctx, buyerID)
		if err != nil {
			return Resolution{}, err
		}
		if buyer.PaymentStatus.Terminal() {
			return Resolution{
				Resolved:           true,
				PaymentStatus:      buyer.PaymentStatus,
				VerificationStatus: buyer.VerificationStatus,
			}, nil
		}

		select {
		case <-notify:
		case <-poll.C:
		case <-deadline.C:
			return Resolution{
				PaymentStatus:      buyer.PaymentStatus,
				VerificationStatus: buyer.VerificationStatus,
			}, nil
		case <-ctx.Done():
			return Resolution{}, ctx.Err()
		}
	}
}

func (s *Service) readState(ctx context.Context, buyerID id.BuyerID) (*domain.BuyerAccount, error) {
	buyer, err := s.accounts.FindByID(ctx, buyerID)
	if dErrors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "buyer not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "buyer lookup failed")
	}
	return buyer, nil
}
