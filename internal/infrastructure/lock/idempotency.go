package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// =====================================================
// IDEMPOTENCY STORE
// =====================================================

// IdempotencyStore caches the result of a logical operation under its
// idempotency key so retries observe the original outcome.
type IdempotencyStore interface {
	// Get returns the stored result, or (false, nil) on miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Put stores the result with TTL.
	Put(ctx context.Context, key string, result interface{}, ttl time.Duration) error

	// MarkSideEffect records that an external side effect (e.g. a gateway
	// call) was issued under key, before the call's outcome is known.
	// A handler that dies mid-call reconciles on the next attempt by
	// finding this marker and checking gateway status instead of
	// re-issuing the call.
	MarkSideEffect(ctx context.Context, key string, reference string, ttl time.Duration) error

	// SideEffect returns the recorded reference, or "" if none.
	SideEffect(ctx context.Context, key string) (string, error)
}

type redisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{
		client: client,
		prefix: "idem:",
	}
}

func (s *redisIdempotencyStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("idempotency get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal idempotency record %s: %w", key, err)
	}

	return true, nil
}

func (s *redisIdempotencyStore) Put(ctx context.Context, key string, result interface{}, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal idempotency record %s: %w", key, err)
	}

	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency put %s: %w", key, err)
	}

	return nil
}

func (s *redisIdempotencyStore) MarkSideEffect(ctx context.Context, key string, reference string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+"effect:"+key, reference, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency mark side effect %s: %w", key, err)
	}
	return nil
}

func (s *redisIdempotencyStore) SideEffect(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+"effect:"+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("idempotency side effect %s: %w", key, err)
	}
	return val, nil
}
