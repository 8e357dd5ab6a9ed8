package lock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// =====================================================
// DISTRIBUTED LOCK (Redis SET NX + holder token)
// =====================================================

var (
	// ErrLockTimeout is returned when the lock could not be acquired
	// within the bounded retry window.
	ErrLockTimeout = errors.New("LOCK_TIMEOUT: could not acquire lock")

	// ErrLockLost is returned when release or extend finds the lock held
	// by another token. The caller must not commit its state change.
	ErrLockLost = errors.New("LOCK_LOST: lock no longer held by this token")
)

// release and extend compare the holder token before acting so a lock that
// expired and was re-acquired by another process is never touched.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Token identifies a held lock. Release is idempotent per token.
type Token struct {
	Key   string
	Value string
	Lease time.Duration
}

// Locker is the distributed lock contract shared by the refund manager
// and the workers.
type Locker interface {
	// Acquire obtains key for lease, retrying with jitter up to maxWait.
	// Fails with ErrLockTimeout once the retry ceiling is reached.
	Acquire(ctx context.Context, key string, lease time.Duration, maxWait time.Duration) (*Token, error)

	// TryAcquire attempts once without retrying.
	TryAcquire(ctx context.Context, key string, lease time.Duration) (*Token, error)

	// Extend pushes out the lease. Mandatory before 50% of the lease has
	// elapsed if the holder has not finished.
	Extend(ctx context.Context, token *Token, lease time.Duration) error

	// Release drops the lock. Idempotent; releasing a lost lock is a no-op.
	Release(ctx context.Context, token *Token) error
}

type redisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{
		client: client,
		prefix: "lock:",
	}
}

func (l *redisLocker) TryAcquire(ctx context.Context, key string, lease time.Duration) (*Token, error) {
	value := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.prefix+key, value, lease).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	return &Token{Key: key, Value: value, Lease: lease}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string, lease time.Duration, maxWait time.Duration) (*Token, error) {
	deadline := time.Now().Add(maxWait)
	backoff := 25 * time.Millisecond

	for {
		token, err := l.TryAcquire(ctx, key, lease)
		if err != nil {
			return nil, err
		}
		if token != nil {
			return token, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		// Bounded backoff with jitter to avoid thundering-herd retries.
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)))
		if backoff < 400*time.Millisecond {
			backoff *= 2
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, fmt.Errorf("lock acquire cancelled: %w", ctx.Err())
		}
	}
}

func (l *redisLocker) Extend(ctx context.Context, token *Token, lease time.Duration) error {
	res, err := extendScript.Run(ctx, l.client,
		[]string{l.prefix + token.Key}, token.Value, lease.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("lock extend %s: %w", token.Key, err)
	}
	if res == 0 {
		return ErrLockLost
	}

	token.Lease = lease
	return nil
}

func (l *redisLocker) Release(ctx context.Context, token *Token) error {
	if token == nil {
		return nil
	}

	_, err := releaseScript.Run(ctx, l.client,
		[]string{l.prefix + token.Key}, token.Value).Int()
	if err != nil {
		return fmt.Errorf("lock release %s: %w", token.Key, err)
	}

	// res == 0 means the lease already expired or another holder took
	// over; release stays idempotent either way.
	return nil
}
