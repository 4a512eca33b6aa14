//go:build integration

package settlement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/settlement"
	id "agegate/pkg/domain"
	"agegate/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.Redis
	locker *settlement.RedisLocker
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.NewRedis(s.T())
	locker, err := settlement.NewRedisLocker(s.redis.Client)
	s.Require().NoError(err)
	s.locker = locker
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockerSuite) TestAcquireRelease() {
	ctx := context.Background()
	release, err := s.locker.Acquire(ctx, id.NewBuyerID())
	s.Require().NoError(err)
	release()
}

// TestMutualExclusionPerBuyer serializes counter increments through the lock;
// any overlap would lose updates.
func (s *RedisLockerSuite) TestMutualExclusionPerBuyer() {
	ctx := context.Background()
	buyerID := id.NewBuyerID()
	const goroutines = 20

	counter := 0
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.locker.Acquire(ctx, buyerID)
			if !s.NoError(err) {
				return
			}
			defer release()
			current := counter
			time.Sleep(time.Millisecond)
			counter = current + 1
		}()
	}
	wg.Wait()
	s.Equal(goroutines, counter)
}

func (s *RedisLockerSuite) TestDistinctBuyersDoNotContend() {
	ctx := context.Background()

	releaseA, err := s.locker.Acquire(ctx, id.NewBuyerID())
	s.Require().NoError(err)
	defer releaseA()

	acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	releaseB, err := s.locker.Acquire(acquireCtx, id.NewBuyerID())
	s.Require().NoError(err)
	releaseB()
}

func (s *RedisLockerSuite) TestAcquireRespectsContextDeadline() {
	ctx := context.Background()
	buyerID := id.NewBuyerID()

	release, err := s.locker.Acquire(ctx, buyerID)
	s.Require().NoError(err)
	defer release()

	blockedCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = s.locker.Acquire(blockedCtx, buyerID)
	s.ErrorIs(err, context.DeadlineExceeded)
}
