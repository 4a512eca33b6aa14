package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/account"
	"agegate/internal/dealer"
	"agegate/internal/domain"
	"agegate/internal/kyc"
	"agegate/internal/ledger"
	"agegate/internal/payment"
	"agegate/internal/platform/config"
	"agegate/internal/proof"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// =============================================================================
// Settlement Scenario Test Suite
// =============================================================================
// The full orchestration over real services with fake external providers:
// payment hold, KYC session, proof engine, ledger, and quota meter together.

type SettlementSuite struct {
	suite.Suite
	accounts    *account.MemoryStore
	payments    *payment.FakeProvider
	kycProvider *kyc.FakeProvider
	ledgerStore *ledger.MemoryStore
	dealers     *dealer.MemoryStore
	dealerSvc   *dealer.Service
	service     *Service

	buyer *domain.BuyerAccount
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementSuite))
}

func (s *SettlementSuite) SetupTest() {
	s.accounts = account.NewMemoryStore()
	s.payments = payment.NewFakeProvider()
	s.kycProvider = kyc.NewFakeProvider()
	s.ledgerStore = ledger.NewMemoryStore()
	s.dealers = dealer.NewMemoryStore()

	paymentSvc, err := payment.New(s.payments, payment.NewMemoryStore())
	s.Require().NoError(err)
	kycSvc, err := kyc.New(s.kycProvider, kyc.NewMemorySessionStore())
	s.Require().NoError(err)
	ledgerSvc, err := ledger.New(s.ledgerStore)
	s.Require().NoError(err)
	s.dealerSvc, err = dealer.New(s.dealers)
	s.Require().NoError(err)

	s.service, err = New(
		s.accounts, paymentSvc, kycSvc,
		proof.NewEngine(config.DefaultPolicy()), ledgerSvc,
		Config{
			AmountCents:     500,
			VerificationTTL: 365 * 24 * time.Hour,
			Policy:          config.DefaultPolicy(),
		},
		WithQuota(s.dealerSvc),
	)
	s.Require().NoError(err)

	now := time.Now().UTC()
	s.buyer = &domain.BuyerAccount{
		ID:                 id.NewBuyerID(),
		ReferenceID:        id.NewReferenceID("buyer"),
		Email:              "buyer@example.com",
		PaymentStatus:      id.PaymentPending,
		VerificationStatus: id.VerificationUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.Require().NoError(s.accounts.Save(context.Background(), s.buyer))
}

func (s *SettlementSuite) shipping() domain.Address {
	return domain.Address{
		Street:     "123 Main St",
		City:       "Los Angeles",
		State:      "CA",
		PostalCode: "90210",
	}
}

func (s *SettlementSuite) start() StartResult {
	result, err := s.service.Start(context.Background(), s.buyer.ID, s.shipping())
	s.Require().NoError(err)
	return result
}

func (s *SettlementSuite) ledgerEvents() []domain.ComplianceEvent {
	events, err := s.ledgerStore.Query(context.Background(),
		ledger.Scope{BuyerReferenceID: s.buyer.ReferenceID},
		domain.LedgerFilter{}, domain.Page{})
	s.Require().NoError(err)
	return events
}

// =============================================================================
// Start Tests
// =============================================================================

func (s *SettlementSuite) TestStart() {
	ctx := context.Background()

	s.Run("opens hold and session", func() {
		result := s.start()
		s.NotEmpty(result.HoldRef)
		s.NotEmpty(result.SessionID)
		s.NotEmpty(result.SessionToken)
		s.Equal(id.PaymentAuthorized, result.PaymentStatus)
		s.Equal(id.VerificationChecking, result.VerificationStatus)

		buyer, err := s.accounts.FindByID(ctx, s.buyer.ID)
		s.Require().NoError(err)
		s.Equal(result.HoldRef, buyer.HoldRef)
		s.False(buyer.AttemptID.IsNil())
	})

	s.Run("second start while in flight is invalid", func() {
		_, err := s.service.Start(ctx, s.buyer.ID, s.shipping())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown buyer is not found", func() {
		_, err := s.service.Start(ctx, id.NewBuyerID(), s.shipping())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Scenario 1: happy path
// =============================================================================

func (s *SettlementSuite) TestApprovedDecisionCompletes() {
	ctx := context.Background()
	s.start()

	buyer, err := s.service.HandleDecision(ctx, s.buyer.ID, true)
	s.Require().NoError(err)

	s.Equal(id.PaymentCompleted, buyer.PaymentStatus)
	s.Equal(id.VerificationVerified, buyer.VerificationStatus)
	s.False(buyer.VerificationExpiresAt.IsZero())
	s.Equal(1, s.payments.CaptureCount())

	events := s.ledgerEvents()
	s.Require().Len(events, 1)
	s.True(events[0].AgeVerified)
	s.True(events[0].AddressVerified)
	s.Equal(buyer.AttemptID, events[0].AttemptID)
}

// =============================================================================
// Scenario 2: KYC decline
// =============================================================================

func (s *SettlementSuite) TestDeclinedDecisionRefunds() {
	ctx := context.Background()
	s.start()

	buyer, err := s.service.HandleDecision(ctx, s.buyer.ID, false)
	s.Require().NoError(err)

	s.Equal(id.PaymentRejectedRefunded, buyer.PaymentStatus)
	s.Equal(id.VerificationRejected, buyer.VerificationStatus)
	s.Equal(0, s.payments.CaptureCount())

	events := s.ledgerEvents()
	s.Require().Len(events, 1)
	s.False(events[0].AgeVerified)
	s.False(events[0].AddressVerified)
}

// =============================================================================
// Approval with failing local checks
// =============================================================================

func (s *SettlementSuite) TestApprovalWithUnderageBuyerReleases() {
	ctx := context.Background()
	result := s.start()

	s.kycProvider.SetAttributes(result.SessionID, domain.IdentityAttributes{
		DateOfBirth: time.Now().UTC().AddDate(-18, 0, 0),
		Address:     s.shipping(),
	})

	buyer, err := s.service.HandleDecision(ctx, s.buyer.ID, true)
	s.Require().NoError(err)

	s.Equal(id.PaymentRejectedRefunded, buyer.PaymentStatus)
	s.Equal(0, s.payments.CaptureCount())

	events := s.ledgerEvents()
	s.Require().Len(events, 1)
	s.False(events[0].AgeVerified)
	s.True(events[0].AddressVerified)
}

// =============================================================================
// Restart after rejection
// =============================================================================

func (s *SettlementSuite) TestRestartAfterRejection() {
	ctx := context.Background()
	s.start()
	_, err := s.service.HandleDecision(ctx, s.buyer.ID, false)
	s.Require().NoError(err)

	firstAttempt := s.ledgerEvents()[0].AttemptID

	result, err := s.service.Start(ctx, s.buyer.ID, s.shipping())
	s.Require().NoError(err)
	s.Equal(id.PaymentAuthorized, result.PaymentStatus)

	buyer, err := s.accounts.FindByID(ctx, s.buyer.ID)
	s.Require().NoError(err)
	s.NotEqual(firstAttempt, buyer.AttemptID)
}

// =============================================================================
// Decision replay
// =============================================================================

func (s *SettlementSuite) TestDecisionReplayIsRejectedByStateTable() {
	ctx := context.Background()
	s.start()
	_, err := s.service.HandleDecision(ctx, s.buyer.ID, true)
	s.Require().NoError(err)

	_, err = s.service.HandleDecision(ctx, s.buyer.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	s.Len(s.ledgerEvents(), 1)
	s.Equal(1, s.payments.CaptureCount())
}

// =============================================================================
// Scenario 3: dealer quota
// =============================================================================

func (s *SettlementSuite) TestVerify() {
	ctx := context.Background()

	s.Run("exhausted quota blocks before any ledger work", func() {
		s.start()
		_, err := s.service.HandleDecision(ctx, s.buyer.ID, true)
		s.Require().NoError(err)
		recorded := len(s.ledgerEvents())

		provisioned, err := s.dealerSvc.Provision(ctx, "Empty Cellars", 0)
		s.Require().NoError(err)

		_, err = s.service.Verify(ctx, provisioned.Dealer, VerifyRequest{
			BuyerEmail:      s.buyer.Email,
			ShippingAddress: s.shipping(),
			ComplianceAck:   true,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
		s.Len(s.ledgerEvents(), recorded)
	})

	s.Run("verified buyer answers without PII", func() {
		provisioned, err := s.dealerSvc.Provision(ctx, "Vineyard Direct", 10)
		s.Require().NoError(err)

		result, err := s.service.Verify(ctx, provisioned.Dealer, VerifyRequest{
			BuyerEmail: s.buyer.Email,
			ShippingAddress: domain.Address{
				Street:     "123 MAIN ST",
				City:       "LOS ANGELES",
				State:      "CA",
				PostalCode: "90210-1234",
			},
			ComplianceAck: true,
		})
		s.Require().NoError(err)
		s.True(result.AgeVerified)
		s.True(result.AddressVerified)
		s.GreaterOrEqual(result.Confidence, 0.8)
		s.NotEmpty(result.ComplianceEventID)
		s.NotEmpty(result.ProofHashes.Age)
		s.NotEmpty(result.ProofHashes.Address)

		dealerAcct, err := s.dealerSvc.Get(ctx, provisioned.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(1, dealerAcct.CreditsUsed)
	})

	s.Run("missing compliance ack is rejected without spending credit", func() {
		provisioned, err := s.dealerSvc.Provision(ctx, "Careless Co", 5)
		s.Require().NoError(err)

		_, err = s.service.Verify(ctx, provisioned.Dealer, VerifyRequest{
			BuyerEmail:      s.buyer.Email,
			ShippingAddress: s.shipping(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		dealerAcct, err := s.dealerSvc.Get(ctx, provisioned.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(0, dealerAcct.CreditsUsed)
	})

	s.Run("unverified buyer keeps the credit under charge-on-failure", func() {
		provisioned, err := s.dealerSvc.Provision(ctx, "Vineyard Direct", 10)
		s.Require().NoError(err)

		_, err = s.service.Verify(ctx, provisioned.Dealer, VerifyRequest{
			BuyerEmail:      "stranger@example.com",
			ShippingAddress: s.shipping(),
			ComplianceAck:   true,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		dealerAcct, err := s.dealerSvc.Get(ctx, provisioned.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(1, dealerAcct.CreditsUsed)
	})
}

func (s *SettlementSuite) TestVerifyRefundsWhenPolicyDisablesChargeOnFailure() {
	ctx := context.Background()

	policy := config.DefaultPolicy()
	policy.ChargeOnFailure = false

	paymentSvc, err := payment.New(s.payments, payment.NewMemoryStore())
	s.Require().NoError(err)
	kycSvc, err := kyc.New(s.kycProvider, kyc.NewMemorySessionStore())
	s.Require().NoError(err)
	ledgerSvc, err := ledger.New(s.ledgerStore)
	s.Require().NoError(err)

	svc, err := New(
		s.accounts, paymentSvc, kycSvc,
		proof.NewEngine(policy), ledgerSvc,
		Config{AmountCents: 500, VerificationTTL: time.Hour, Policy: policy},
		WithQuota(s.dealerSvc),
	)
	s.Require().NoError(err)

	provisioned, err := s.dealerSvc.Provision(ctx, "Lenient Co", 5)
	s.Require().NoError(err)

	_, err = svc.Verify(ctx, provisioned.Dealer, VerifyRequest{
		BuyerEmail:      "stranger@example.com",
		ShippingAddress: s.shipping(),
		ComplianceAck:   true,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	dealerAcct, err := s.dealerSvc.Get(ctx, provisioned.Dealer.ID)
	s.Require().NoError(err)
	s.Equal(0, dealerAcct.CreditsUsed)
}
