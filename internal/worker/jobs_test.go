package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

func TestEligibleForRetry(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	t.Run("never attempted is always eligible", func(t *testing.T) {
		assert.True(t, eligibleForRetry(domain.BookingPayment{}, now))
	})

	t.Run("first failure backs off one hour", func(t *testing.T) {
		attempted := now.Add(-59 * time.Minute)
		assert.False(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 1, AuthAttemptedAt: &attempted}, now))

		attempted = now.Add(-61 * time.Minute)
		assert.True(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 1, AuthAttemptedAt: &attempted}, now))
	})

	t.Run("second failure backs off four hours", func(t *testing.T) {
		attempted := now.Add(-3*time.Hour - 59*time.Minute)
		assert.False(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 2, AuthAttemptedAt: &attempted}, now))

		attempted = now.Add(-4*time.Hour - time.Minute)
		assert.True(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 2, AuthAttemptedAt: &attempted}, now))
	})

	t.Run("third and later failures back off eight hours", func(t *testing.T) {
		attempted := now.Add(-7*time.Hour - 59*time.Minute)
		assert.False(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 3, AuthAttemptedAt: &attempted}, now))

		attempted = now.Add(-8*time.Hour - time.Minute)
		assert.True(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 3, AuthAttemptedAt: &attempted}, now))

		attempted = now.Add(-9 * time.Hour)
		assert.True(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 5, AuthAttemptedAt: &attempted}, now),
			"backoff must cap at the 8h tier rather than keep growing")
	})

	t.Run("boundary is inclusive at exactly the backoff duration", func(t *testing.T) {
		attempted := now.Add(-time.Hour)
		assert.True(t, eligibleForRetry(domain.BookingPayment{AuthFailureCount: 1, AuthAttemptedAt: &attempted}, now))
	})
}
