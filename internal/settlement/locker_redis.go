package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "agegate/pkg/domain"
)

const (
	lockKeyPrefix = "settlement:lock:"
	lockTTL       = 30 * time.Second
	lockRetry     = 50 * time.Millisecond
)

// releaseScript deletes the lock only when it still carries our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements the per-buyer lock as SET NX PX against a shared
// redis, for deployments running more than one process. Stale locks expire by
// TTL; there is no background reaper.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, buyerID id.BuyerID) (func(), error) {
	key := lockKeyPrefix + buyerID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire settlement lock: %w", err)
		}
		if ok {
			return func() {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-time.After(lockRetry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
