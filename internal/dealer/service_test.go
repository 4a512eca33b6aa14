package dealer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// =============================================================================
// Dealer Service Test Suite
// =============================================================================
// Justification for unit tests: the quota meter's atomicity and the one-time
// API key contract are invariants that E2E tests cannot exercise precisely
// without racing real HTTP calls.

type DealerServiceSuite struct {
	suite.Suite
	store   *MemoryStore
	service *Service
}

func TestDealerServiceSuite(t *testing.T) {
	suite.Run(t, new(DealerServiceSuite))
}

func (s *DealerServiceSuite) SetupTest() {
	s.store = NewMemoryStore()

	var err error
	s.service, err = New(s.store)
	s.Require().NoError(err)
}

func (s *DealerServiceSuite) provision(credits int) *ProvisionResult {
	result, err := s.service.Provision(context.Background(), "Vineyard Direct", credits)
	s.Require().NoError(err)
	return result
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *DealerServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "dealer store is required")
	})
}

// =============================================================================
// Provision Tests
// =============================================================================

func (s *DealerServiceSuite) TestProvision() {
	ctx := context.Background()

	s.Run("empty name is rejected", func() {
		_, err := s.service.Provision(ctx, "", 10)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("negative credits are rejected", func() {
		_, err := s.service.Provision(ctx, "Vineyard Direct", -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("mints key with embedded dealer id", func() {
		result := s.provision(100)
		s.True(strings.HasPrefix(result.APIKey, "ag_"+result.Dealer.ID.String()+"_"))
		s.Equal(100, result.Dealer.CreditsPurchased)
		s.Equal(0, result.Dealer.CreditsUsed)
	})

	s.Run("plaintext secret is never stored", func() {
		result := s.provision(10)
		stored, err := s.store.FindByID(ctx, result.Dealer.ID)
		s.Require().NoError(err)
		s.NotContains(result.APIKey, stored.APIKeyHash)
		s.NotContains(stored.APIKeyHash, result.APIKey)
	})
}

// =============================================================================
// Authenticate Tests
// =============================================================================

func (s *DealerServiceSuite) TestAuthenticate() {
	ctx := context.Background()

	s.Run("valid key resolves dealer", func() {
		result := s.provision(10)
		dealer, err := s.service.Authenticate(ctx, result.APIKey)
		s.NoError(err)
		s.Equal(result.Dealer.ID, dealer.ID)
	})

	s.Run("malformed key is unauthorized", func() {
		for _, key := range []string{"", "ag_only-two", "xx_a_b", "ag_not-a-uuid_secret"} {
			_, err := s.service.Authenticate(ctx, key)
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "key %q", key)
		}
	})

	s.Run("wrong secret is unauthorized", func() {
		result := s.provision(10)
		_, err := s.service.Authenticate(ctx, "ag_"+result.Dealer.ID.String()+"_wrong-secret")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown dealer is unauthorized", func() {
		_, err := s.service.Authenticate(ctx, "ag_"+id.NewDealerID().String()+"_secret")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// Reserve Tests
// =============================================================================

func (s *DealerServiceSuite) TestReserve() {
	ctx := context.Background()

	s.Run("debits credits up to the purchased balance", func() {
		result := s.provision(3)

		for want := 1; want <= 3; want++ {
			dealer, err := s.service.Reserve(ctx, result.Dealer.ID, 1)
			s.NoError(err)
			s.Equal(want, dealer.CreditsUsed)
		}

		_, err := s.service.Reserve(ctx, result.Dealer.ID, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	})

	s.Run("exhausted reserve does not mutate counters", func() {
		result := s.provision(1)
		_, err := s.service.Reserve(ctx, result.Dealer.ID, 2)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

		dealer, err := s.service.Get(ctx, result.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(0, dealer.CreditsUsed)
	})

	s.Run("unknown dealer is not found", func() {
		_, err := s.service.Reserve(ctx, id.NewDealerID(), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-positive cost is rejected", func() {
		result := s.provision(1)
		_, err := s.service.Reserve(ctx, result.Dealer.ID, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("concurrent reserves never overspend", func() {
		result := s.provision(50)

		var wg sync.WaitGroup
		granted := make(chan struct{}, 100)
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.service.Reserve(ctx, result.Dealer.ID, 1); err == nil {
					granted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(granted)

		s.Equal(50, len(granted))
		dealer, err := s.service.Get(ctx, result.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(50, dealer.CreditsUsed)
	})
}

// =============================================================================
// Refund Tests
// =============================================================================

func (s *DealerServiceSuite) TestRefund() {
	ctx := context.Background()

	s.Run("returns reserved credits", func() {
		result := s.provision(5)
		_, err := s.service.Reserve(ctx, result.Dealer.ID, 2)
		s.Require().NoError(err)

		s.NoError(s.service.Refund(ctx, result.Dealer.ID, 1))

		dealer, err := s.service.Get(ctx, result.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(1, dealer.CreditsUsed)
	})

	s.Run("never drives used below zero", func() {
		result := s.provision(5)
		s.NoError(s.service.Refund(ctx, result.Dealer.ID, 3))

		dealer, err := s.service.Get(ctx, result.Dealer.ID)
		s.Require().NoError(err)
		s.Equal(0, dealer.CreditsUsed)
	})
}

// =============================================================================
// AddCredits Tests
// =============================================================================

func (s *DealerServiceSuite) TestAddCredits() {
	ctx := context.Background()

	s.Run("raises the purchased balance", func() {
		result := s.provision(10)
		dealer, err := s.service.AddCredits(ctx, result.Dealer.ID, 15)
		s.NoError(err)
		s.Equal(25, dealer.CreditsPurchased)
	})

	s.Run("unblocks an exhausted dealer", func() {
		result := s.provision(1)
		_, err := s.service.Reserve(ctx, result.Dealer.ID, 1)
		s.Require().NoError(err)
		_, err = s.service.Reserve(ctx, result.Dealer.ID, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

		_, err = s.service.AddCredits(ctx, result.Dealer.ID, 1)
		s.Require().NoError(err)

		_, err = s.service.Reserve(ctx, result.Dealer.ID, 1)
		s.NoError(err)
	})
}
