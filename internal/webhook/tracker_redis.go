package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const trackerKeyPrefix = "webhook:deliveries:"

// RedisTracker shares delivery counts across processes so backoff guidance
// stays consistent no matter which instance receives the redelivery.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client) (*RedisTracker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisTracker{client: client, ttl: time.Hour}, nil
}

func (t *RedisTracker) Next(ctx context.Context, key string) (int, error) {
	redisKey := trackerKeyPrefix + key
	count, err := t.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("track webhook delivery: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, redisKey, t.ttl).Err(); err != nil {
			return int(count), fmt.Errorf("expire webhook delivery key: %w", err)
		}
	}
	return int(count), nil
}
