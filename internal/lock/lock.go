// Package lock provides the per-booking distributed lock every
// three-phase operation must hold during its PSP call, grounded on the
// teacher's pkg/redis SetNX wrapper but narrowed to the single
// try-acquire-and-release contract the worker/service layers need.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by TryAcquire when another process already
// holds the booking's lock. Callers skip the booking and continue the
// scan rather than blocking, per SPEC_FULL §5.
var ErrNotAcquired = errors.New("lock: booking already locked")

// BookingLock acquires a non-blocking, TTL-bounded advisory lock keyed
// by booking id. It is Redis-backed rather than a Postgres advisory lock
// because Phase 2 (the PSP call) holds no database connection.
type BookingLock struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *BookingLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BookingLock{client: client, ttl: ttl}
}

// Guard is a held lock; callers must Release it once the three-phase
// operation completes, success or failure.
type Guard struct {
	client *redis.Client
	key    string
	token  string
}

func keyFor(bookingID string) string {
	return fmt.Sprintf("bpe:lock:booking:%s", bookingID)
}

// TryAcquire attempts to take the lock for bookingID without blocking.
// It returns ErrNotAcquired immediately if the lock is held, matching
// the "skip and continue" semantics every scheduled job in
// PaymentWorkerSet relies on.
func (l *BookingLock) TryAcquire(ctx context.Context, bookingID, token string) (*Guard, error) {
	key := keyFor(bookingID)
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring booking lock: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Guard{client: l.client, key: key, token: token}, nil
}

// releaseScript deletes the key only if it still holds our token, so a
// guard from a previous, already-expired acquisition can never delete a
// newer holder's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`

func (g *Guard) Release(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.client.Eval(ctx, releaseScript, []string{g.key}, g.token).Err()
}
