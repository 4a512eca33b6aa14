package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"agegate/internal/account"
	"agegate/internal/domain"
	"agegate/internal/ledger"
	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// =============================================================================
// Account Service Test Suite
// =============================================================================

type AccountServiceSuite struct {
	suite.Suite
	store       *account.MemoryStore
	ledgerStore *ledger.MemoryStore
	ledgerSvc   *ledger.Service
	service     *account.Service
}

func TestAccountServiceSuite(t *testing.T) {
	suite.Run(t, new(AccountServiceSuite))
}

func (s *AccountServiceSuite) SetupTest() {
	s.store = account.NewMemoryStore()
	s.ledgerStore = ledger.NewMemoryStore()

	var err error
	s.ledgerSvc, err = ledger.New(s.ledgerStore)
	s.Require().NoError(err)
	s.service, err = account.New(s.store, account.WithLedger(s.ledgerSvc))
	s.Require().NoError(err)
}

func (s *AccountServiceSuite) TestFindOrCreateMintsOnce() {
	first, err := s.service.FindOrCreate(context.Background(), "buyer@example.com")
	s.Require().NoError(err)
	s.NotEmpty(first.ReferenceID)
	s.Equal(id.PaymentPending, first.PaymentStatus)
	s.Equal(id.VerificationUnverified, first.VerificationStatus)

	second, err := s.service.FindOrCreate(context.Background(), "buyer@example.com")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(first.ReferenceID, second.ReferenceID)

	other, err := s.service.FindOrCreate(context.Background(), "other@example.com")
	s.Require().NoError(err)
	s.NotEqual(first.ID, other.ID)
}

func (s *AccountServiceSuite) TestFindOrCreateRequiresEmail() {
	_, err := s.service.FindOrCreate(context.Background(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AccountServiceSuite) TestGetUnknownBuyer() {
	_, err := s.service.Get(context.Background(), id.NewBuyerID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Get(context.Background(), id.BuyerID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AccountServiceSuite) TestEraseKeepsReferenceAndDetachesLedger() {
	buyer, err := s.service.FindOrCreate(context.Background(), "buyer@example.com")
	s.Require().NoError(err)
	buyer.ShippingAddress = domain.Address{Street: "100 Main St", City: "Springfield"}
	buyer.AttemptID = id.NewAttemptID()
	s.Require().NoError(s.store.Save(context.Background(), buyer))

	event, err := s.ledgerSvc.Append(context.Background(), ledger.AppendParams{
		AttemptID:        buyer.AttemptID,
		BuyerID:          buyer.ID,
		BuyerReferenceID: buyer.ReferenceID,
		Artifacts:        domain.ProofArtifacts{AgeVerified: true, AddressVerified: true, Confidence: 1},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Erase(context.Background(), buyer.ID))

	erased, err := s.service.Get(context.Background(), buyer.ID)
	s.Require().NoError(err)
	s.True(erased.Anonymized)
	s.Empty(erased.Email)
	s.Equal(domain.Address{}, erased.ShippingAddress)
	s.Equal(buyer.ReferenceID, erased.ReferenceID)

	// Ledger row survives erasure under the reference id, detached from the
	// account row.
	events, err := s.ledgerSvc.Query(context.Background(),
		ledger.Scope{BuyerReferenceID: buyer.ReferenceID}, domain.LedgerFilter{}, domain.Page{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(event.ID, events[0].ID)
	s.Nil(events[0].BuyerID)

	// The erased email can be registered again as a brand-new account.
	fresh, err := s.service.FindOrCreate(context.Background(), "buyer@example.com")
	s.Require().NoError(err)
	s.NotEqual(buyer.ID, fresh.ID)
}

func (s *AccountServiceSuite) TestEraseTwiceIsRejected() {
	buyer, err := s.service.FindOrCreate(context.Background(), "buyer@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Erase(context.Background(), buyer.ID))

	err = s.service.Erase(context.Background(), buyer.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
}
