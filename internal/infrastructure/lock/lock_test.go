package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLocker(client), mr
}

func TestTryAcquireMutualExclusion(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	token, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, token)

	second, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second, "held lock must not be acquired again")

	require.NoError(t, locker.Release(ctx, token))

	third, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestAcquireTimesOut(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	holder, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, holder)

	_, err = locker.Acquire(ctx, "refund:r-1", time.Minute, 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestAcquireAfterExpiry(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	_, err := locker.TryAcquire(ctx, "refund:r-1", 50*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(100 * time.Millisecond)

	token, err := locker.Acquire(ctx, "refund:r-1", time.Minute, time.Second)
	require.NoError(t, err)
	assert.NotNil(t, token)
}

func TestExtendRejectsLostLock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	token, err := locker.TryAcquire(ctx, "refund:r-1", 50*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(100 * time.Millisecond)

	// Another worker takes over after the lease lapsed.
	taken, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, taken)

	assert.ErrorIs(t, locker.Extend(ctx, token, time.Minute), ErrLockLost)
}

func TestReleaseLostLockIsNoop(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	token, err := locker.TryAcquire(ctx, "refund:r-1", 50*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(100 * time.Millisecond)

	taken, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, taken)

	// Releasing the stale token must not free the new holder's lock.
	require.NoError(t, locker.Release(ctx, token))

	still, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, still)
}

func TestExtendPushesLease(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	token, err := locker.TryAcquire(ctx, "refund:r-1", 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, locker.Extend(ctx, token, time.Minute))
	mr.FastForward(100 * time.Millisecond)

	other, err := locker.TryAcquire(ctx, "refund:r-1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, other, "extended lock outlives the original lease")
}

// =====================================================
// IDEMPOTENCY STORE
// =====================================================

func newStore(t *testing.T) (IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisIdempotencyStore(client), mr
}

func TestIdempotencyRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	type record struct {
		RefundID string `json:"refund_id"`
	}

	var miss record
	found, err := store.Get(ctx, "create:M1:t-1:key-1", &miss)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "create:M1:t-1:key-1", record{RefundID: "r-1"}, time.Hour))

	var hit record
	found, err = store.Get(ctx, "create:M1:t-1:key-1", &hit)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "r-1", hit.RefundID)
}

func TestIdempotencyExpiry(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", map[string]string{"a": "b"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var dest map[string]string
	found, err := store.Get(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSideEffectMarker(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ref, err := store.SideEffect(ctx, "dispatch:r-1")
	require.NoError(t, err)
	assert.Empty(t, ref)

	require.NoError(t, store.MarkSideEffect(ctx, "dispatch:r-1", "STRIPE", time.Hour))

	ref, err = store.SideEffect(ctx, "dispatch:r-1")
	require.NoError(t, err)
	assert.Equal(t, "STRIPE", ref)
}
