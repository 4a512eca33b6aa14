package settlement

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agegate/internal/domain"
	"agegate/internal/ledger"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	"agegate/pkg/requestcontext"
)

const verifyCost = 1

// VerifyRequest is a dealer's cross-party check against a buyer's standing
// verification.
type VerifyRequest struct {
	BuyerEmail      string
	ShippingAddress domain.Address
	ComplianceAck   bool
}

// ProofHashes are the commitment hashes backing a verify answer.
type ProofHashes struct {
	Age     string `json:"age"`
	Address string `json:"address"`
}

// VerifyResult carries only derived outcomes. No buyer PII ever appears here,
// on success or on any error path.
type VerifyResult struct {
	AgeVerified       bool        `json:"age_verified"`
	AddressVerified   bool        `json:"address_verified"`
	Confidence        float64     `json:"confidence"`
	ComplianceEventID string      `json:"compliance_event_id"`
	ProofHashes       ProofHashes `json:"proof_hashes"`
}

// Verify answers whether the buyer behind an email is of age and resident at
// the dealer's shipping address. The dealer's credit is reserved before any
// other work; whether a failed attempt keeps the credit is the
// ChargeOnFailure policy, not an accident of control flow.
func (s *Service) Verify(ctx context.Context, dealer *domain.DealerAccount, req VerifyRequest) (VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Verify",
		trace.WithAttributes(attribute.String("dealer_id", dealer.ID.String())))
	defer span.End()

	if req.BuyerEmail == "" {
		return VerifyResult{}, dErrors.New(dErrors.CodeValidation, "buyer_email is required")
	}
	if !req.ComplianceAck {
		return VerifyResult{}, dErrors.New(dErrors.CodeValidation, "compliance_ack must be accepted")
	}
	if s.quota == nil {
		return VerifyResult{}, dErrors.New(dErrors.CodeInternal, "quota meter is not configured")
	}

	if _, err := s.quota.Reserve(ctx, dealer.ID, verifyCost); err != nil {
		return VerifyResult{}, err
	}

	result, err := s.crossCheck(ctx, dealer, req)
	if err != nil && !s.policy.ChargeOnFailure {
		if refundErr := s.quota.Refund(ctx, dealer.ID, verifyCost); refundErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "quota refund failed",
				"dealer_id", dealer.ID, "error", refundErr)
		}
	}
	return result, err
}

func (s *Service) crossCheck(ctx context.Context, dealer *domain.DealerAccount, req VerifyRequest) (VerifyResult, error) {
	buyer, err := s.accounts.FindByEmail(ctx, req.BuyerEmail)
	if err != nil {
		return VerifyResult{}, dErrors.New(dErrors.CodeNotFound, "no verified buyer for that email")
	}

	now := requestcontext.Now(ctx)
	if buyer.VerificationStatus != id.VerificationVerified {
		return VerifyResult{}, dErrors.New(dErrors.CodeInvalidState, "buyer verification is not current")
	}
	if !buyer.VerificationExpiresAt.IsZero() && now.After(buyer.VerificationExpiresAt) {
		return VerifyResult{}, dErrors.New(dErrors.CodeInvalidState, "buyer verification has expired")
	}

	attrs, err := s.sessions.Attributes(ctx, buyer.SessionID)
	if err != nil {
		return VerifyResult{}, err
	}
	artifacts, err := s.engine.Evaluate(attrs, req.ShippingAddress, now)
	if err != nil {
		return VerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "proof evaluation failed")
	}

	// Every dealer check is its own attempt in the ledger, scoped to both
	// reference ids.
	event, err := s.ledger.Append(ctx, ledger.AppendParams{
		AttemptID:         id.NewAttemptID(),
		BuyerID:           buyer.ID,
		BuyerReferenceID:  buyer.ReferenceID,
		DealerReferenceID: dealer.ReferenceID,
		Artifacts:         artifacts,
	})
	if err != nil {
		return VerifyResult{}, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "dealer verification recorded",
			"dealer_id", dealer.ID,
			"buyer_reference_id", buyer.ReferenceID,
			"compliance_event_id", event.ID,
			"age_verified", artifacts.AgeVerified,
			"address_verified", artifacts.AddressVerified,
		)
	}
	return VerifyResult{
		AgeVerified:       artifacts.AgeVerified,
		AddressVerified:   artifacts.AddressVerified,
		Confidence:        artifacts.Confidence,
		ComplianceEventID: event.ID,
		ProofHashes: ProofHashes{
			Age:     artifacts.AgeProofHash,
			Address: artifacts.AddressHash,
		},
	}, nil
}
