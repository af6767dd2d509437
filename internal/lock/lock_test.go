package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rezkam/mono/internal/lock"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *lock.Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.New(client)
}

func TestAcquire_SecondCallerFails(t *testing.T) {
	l := newTestLocker(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "job-1", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire(ctx, "job-1", "owner-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRelease_WrongOwnerIsNoOp(t *testing.T) {
	l := newTestLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "job-1", "owner-a", time.Minute)
	require.NoError(t, err)

	released, err := l.Release(ctx, "job-1", "owner-b")
	require.NoError(t, err)
	require.False(t, released)

	ok, err := l.Acquire(ctx, "job-1", "owner-c", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "lock should still be held by owner-a")
}

func TestRelease_CorrectOwnerFreesTheLock(t *testing.T) {
	l := newTestLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "job-1", "owner-a", time.Minute)
	require.NoError(t, err)

	released, err := l.Release(ctx, "job-1", "owner-a")
	require.NoError(t, err)
	require.True(t, released)

	ok, err := l.Acquire(ctx, "job-1", "owner-b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAcquire_ExpiresAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := lock.New(client)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "job-1", "owner-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = l.Acquire(ctx, "job-1", "owner-b", time.Second)
	require.NoError(t, err)
	require.True(t, ok, "lock should have expired")
}
