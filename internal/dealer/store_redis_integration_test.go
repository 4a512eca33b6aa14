//go:build integration

package dealer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/dealer"
	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.Redis
	store *dealer.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedis(s.T())
	store, err := dealer.NewRedisStore(s.redis.Client)
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) seed(credits int) *domain.DealerAccount {
	now := time.Now().UTC().Truncate(time.Millisecond)
	acct := &domain.DealerAccount{
		ID:               id.NewDealerID(),
		ReferenceID:      id.NewReferenceID("dealer"),
		Name:             "Coastal Spirits",
		CreditsPurchased: credits,
		APIKeyHash:       "hash",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.Require().NoError(s.store.Save(context.Background(), acct))
	return acct
}

func (s *RedisStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	acct := s.seed(10)

	found, err := s.store.FindByID(ctx, acct.ID)
	s.Require().NoError(err)
	s.Equal(acct.ReferenceID, found.ReferenceID)
	s.Equal(acct.Name, found.Name)
	s.Equal(10, found.CreditsPurchased)
	s.WithinDuration(acct.CreatedAt, found.CreatedAt, time.Millisecond)

	_, err = s.store.FindByID(ctx, id.NewDealerID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestReserveRefundAddCredits() {
	ctx := context.Background()
	acct := s.seed(2)

	reserved, err := s.store.Reserve(ctx, acct.ID, 2)
	s.Require().NoError(err)
	s.Equal(2, reserved.CreditsUsed)

	_, err = s.store.Reserve(ctx, acct.ID, 1)
	s.ErrorIs(err, sentinel.ErrExhausted)

	s.Require().NoError(s.store.Refund(ctx, acct.ID, 5))
	found, err := s.store.FindByID(ctx, acct.ID)
	s.Require().NoError(err)
	s.Equal(0, found.CreditsUsed)

	topped, err := s.store.AddCredits(ctx, acct.ID, 3)
	s.Require().NoError(err)
	s.Equal(5, topped.CreditsPurchased)

	_, err = s.store.Reserve(ctx, id.NewDealerID(), 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentReserveNeverOversells exercises the Lua check-and-increment
// under contention.
func (s *RedisStoreSuite) TestConcurrentReserveNeverOversells() {
	ctx := context.Background()
	const credits = 25
	const goroutines = 60
	acct := s.seed(credits)

	var wg sync.WaitGroup
	var granted atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Reserve(ctx, acct.ID, 1); err == nil {
				granted.Add(1)
			} else {
				s.True(errors.Is(err, sentinel.ErrExhausted))
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(credits), granted.Load())
	found, err := s.store.FindByID(ctx, acct.ID)
	s.Require().NoError(err)
	s.Equal(credits, found.CreditsUsed)
}
