//go:build integration

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/account"
	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.Postgres
	store    *account.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgres(s.T())
	s.store = account.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "buyer_accounts"))
}

func newBuyer(email string) *domain.BuyerAccount {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.BuyerAccount{
		ID:          id.NewBuyerID(),
		ReferenceID: id.NewReferenceID("buyer"),
		Email:       email,
		ShippingAddress: domain.Address{
			Street: "123 Main St", City: "Los Angeles", State: "CA", PostalCode: "90210",
		},
		PaymentStatus:      id.PaymentPending,
		VerificationStatus: id.VerificationUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *PostgresStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	buyer := newBuyer("roundtrip@example.com")
	buyer.AttemptID = id.NewAttemptID()
	buyer.HoldRef = "hold_abc"
	buyer.SessionID = "kyc_abc"
	s.Require().NoError(s.store.Save(ctx, buyer))

	found, err := s.store.FindByID(ctx, buyer.ID)
	s.Require().NoError(err)
	s.Equal(buyer.Email, found.Email)
	s.Equal(buyer.ReferenceID, found.ReferenceID)
	s.Equal(buyer.ShippingAddress, found.ShippingAddress)
	s.Equal(buyer.AttemptID, found.AttemptID)

	byEmail, err := s.store.FindByEmail(ctx, buyer.Email)
	s.Require().NoError(err)
	s.Equal(buyer.ID, byEmail.ID)

	byHold, err := s.store.FindByHoldRef(ctx, "hold_abc")
	s.Require().NoError(err)
	s.Equal(buyer.ID, byHold.ID)

	bySession, err := s.store.FindBySessionID(ctx, "kyc_abc")
	s.Require().NoError(err)
	s.Equal(buyer.ID, bySession.ID)
}

func (s *PostgresStoreSuite) TestFindUnknownReturnsNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, id.NewBuyerID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByEmail(ctx, "nobody@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSaveUpsertsStatusFields() {
	ctx := context.Background()
	buyer := newBuyer("upsert@example.com")
	s.Require().NoError(s.store.Save(ctx, buyer))

	buyer.PaymentStatus = id.PaymentAuthorized
	buyer.VerificationStatus = id.VerificationChecking
	buyer.HoldRef = "hold_next"
	s.Require().NoError(s.store.Save(ctx, buyer))

	found, err := s.store.FindByID(ctx, buyer.ID)
	s.Require().NoError(err)
	s.Equal(id.PaymentAuthorized, found.PaymentStatus)
	s.Equal(id.VerificationChecking, found.VerificationStatus)
	s.Equal(id.HoldRef("hold_next"), found.HoldRef)
}

// TestErasedRowsDoNotBlockEmailReuse verifies the partial unique index: two
// erased rows may both carry the empty email.
func (s *PostgresStoreSuite) TestErasedRowsDoNotBlockEmailReuse() {
	ctx := context.Background()
	for range 2 {
		buyer := newBuyer("")
		buyer.Anonymized = true
		s.Require().NoError(s.store.Save(ctx, buyer))
	}
}
