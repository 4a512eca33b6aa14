//go:build integration

package webhook_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"agegate/internal/webhook"
	"agegate/pkg/testutil/containers"
)

type RedisTrackerSuite struct {
	suite.Suite
	redis   *containers.Redis
	tracker *webhook.RedisTracker
}

func TestRedisTrackerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTrackerSuite))
}

func (s *RedisTrackerSuite) SetupSuite() {
	s.redis = containers.NewRedis(s.T())
	tracker, err := webhook.NewRedisTracker(s.redis.Client)
	s.Require().NoError(err)
	s.tracker = tracker
}

func (s *RedisTrackerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisTrackerSuite) TestCountsPerKey() {
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := s.tracker.Next(ctx, "session:kyc_1:approved")
		s.Require().NoError(err)
		s.Equal(want, got)
	}

	got, err := s.tracker.Next(ctx, "session:kyc_2:approved")
	s.Require().NoError(err)
	s.Equal(1, got)
}

func (s *RedisTrackerSuite) TestKeysCarryTTL() {
	ctx := context.Background()
	_, err := s.tracker.Next(ctx, "session:kyc_ttl:approved")
	s.Require().NoError(err)

	ttl, err := s.redis.Client.TTL(ctx, "webhook:deliveries:session:kyc_ttl:approved").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}
