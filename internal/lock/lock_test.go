package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// newTestLock spins up an in-memory Redis server so BookingLock's
// SETNX/release-script behavior is exercised over a real go-redis client
// without a network dependency, mirroring the pack's miniredis-backed
// Redis test setup.
func newTestLock(t *testing.T, ttl time.Duration) (*BookingLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, ttl), mr
}

func TestTryAcquireThenContentionSkips(t *testing.T) {
	l, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	guard, err := l.TryAcquire(ctx, "booking-1", "holder-a")
	require.NoError(t, err)
	require.NotNil(t, guard)

	_, err = l.TryAcquire(ctx, "booking-1", "holder-b")
	require.ErrorIs(t, err, ErrNotAcquired)
}

func TestReleaseAllowsReacquisition(t *testing.T) {
	l, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	guard, err := l.TryAcquire(ctx, "booking-1", "holder-a")
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx))

	guard2, err := l.TryAcquire(ctx, "booking-1", "holder-b")
	require.NoError(t, err)
	require.NotNil(t, guard2)
}

func TestReleaseDoesNotStealANewerHoldersLock(t *testing.T) {
	l, mr := newTestLock(t, time.Minute)
	ctx := context.Background()

	guard, err := l.TryAcquire(ctx, "booking-1", "holder-a")
	require.NoError(t, err)

	// Simulate the guard's TTL lapsing and another worker picking up the
	// lock before the original holder's deferred Release runs.
	mr.FastForward(2 * time.Minute)
	_, err = l.TryAcquire(ctx, "booking-1", "holder-b")
	require.NoError(t, err)

	require.NoError(t, guard.Release(ctx))

	_, err = l.TryAcquire(ctx, "booking-1", "holder-c")
	require.ErrorIs(t, err, ErrNotAcquired, "holder-a's stale release must not have deleted holder-b's lock")
}

func TestLocksAreScopedPerBooking(t *testing.T) {
	l, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	_, err := l.TryAcquire(ctx, "booking-1", "holder-a")
	require.NoError(t, err)

	guard2, err := l.TryAcquire(ctx, "booking-2", "holder-a")
	require.NoError(t, err, "a different booking id must not contend with booking-1's lock")
	require.NotNil(t, guard2)
}

func TestNilGuardReleaseIsNoop(t *testing.T) {
	var g *Guard
	require.NoError(t, g.Release(context.Background()))
}
