package dealer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"agegate/internal/domain"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

const dealerKeyPrefix = "dealer:account:"

// reserveScript does the check-and-increment server side so concurrent
// verify calls against the same dealer cannot double-spend. Returns the new
// used count, -1 for an unknown dealer, -2 when the balance is exhausted.
var reserveScript = redis.NewScript(`
local purchased = redis.call("HGET", KEYS[1], "credits_purchased")
if not purchased then
	return -1
end
local used = tonumber(redis.call("HGET", KEYS[1], "credits_used")) or 0
local cost = tonumber(ARGV[1])
if used + cost > tonumber(purchased) then
	return -2
end
return redis.call("HINCRBY", KEYS[1], "credits_used", cost)
`)

// refundScript decrements used without going below zero.
var refundScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
local used = tonumber(redis.call("HGET", KEYS[1], "credits_used")) or 0
local next = used - tonumber(ARGV[1])
if next < 0 then
	next = 0
end
redis.call("HSET", KEYS[1], "credits_used", next)
return next
`)

// RedisStore keeps dealer accounts as redis hashes, one hash per dealer, with
// the quota counters mutated only through Lua scripts. For deployments where
// the quota meter has to be shared across processes without a relational
// database in the path.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func dealerKey(dealerID id.DealerID) string {
	return dealerKeyPrefix + dealerID.String()
}

func (s *RedisStore) Save(ctx context.Context, dealer *domain.DealerAccount) error {
	err := s.client.HSet(ctx, dealerKey(dealer.ID), map[string]any{
		"reference_id":      string(dealer.ReferenceID),
		"name":              dealer.Name,
		"credits_purchased": dealer.CreditsPurchased,
		"credits_used":      dealer.CreditsUsed,
		"api_key_hash":      dealer.APIKeyHash,
		"created_at":        dealer.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":        dealer.UpdatedAt.Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("save dealer: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, dealerID id.DealerID) (*domain.DealerAccount, error) {
	fields, err := s.client.HGetAll(ctx, dealerKey(dealerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load dealer: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return unmarshalDealer(dealerID, fields), nil
}

func (s *RedisStore) Reserve(ctx context.Context, dealerID id.DealerID, cost int) (*domain.DealerAccount, error) {
	n, err := reserveScript.Run(ctx, s.client, []string{dealerKey(dealerID)}, cost).Int64()
	if err != nil {
		return nil, fmt.Errorf("reserve credits: %w", err)
	}
	switch n {
	case -1:
		return nil, sentinel.ErrNotFound
	case -2:
		return nil, sentinel.ErrExhausted
	}
	return s.FindByID(ctx, dealerID)
}

func (s *RedisStore) Refund(ctx context.Context, dealerID id.DealerID, cost int) error {
	n, err := refundScript.Run(ctx, s.client, []string{dealerKey(dealerID)}, cost).Int64()
	if err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	if n == -1 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) AddCredits(ctx context.Context, dealerID id.DealerID, credits int) (*domain.DealerAccount, error) {
	key := dealerKey(dealerID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	if exists == 0 {
		return nil, sentinel.ErrNotFound
	}
	if err := s.client.HIncrBy(ctx, key, "credits_purchased", int64(credits)).Err(); err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	return s.FindByID(ctx, dealerID)
}

func unmarshalDealer(dealerID id.DealerID, fields map[string]string) *domain.DealerAccount {
	purchased, _ := strconv.Atoi(fields["credits_purchased"])
	used, _ := strconv.Atoi(fields["credits_used"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	return &domain.DealerAccount{
		ID:               dealerID,
		ReferenceID:      id.ReferenceID(fields["reference_id"]),
		Name:             fields["name"],
		CreditsPurchased: purchased,
		CreditsUsed:      used,
		APIKeyHash:       fields["api_key_hash"],
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
}
