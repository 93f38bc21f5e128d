package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/pricing"
)

// fixedClock is a minimal clock.Service stand-in for tests that only need
// a deterministic OccurredAt stamp, not the timezone/hours-until math.
type fixedClock struct{}

func (fixedClock) Now() time.Time                 { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }
func (fixedClock) HoursUntil(t time.Time) float64 { return time.Until(t).Hours() }
func (fixedClock) ToUTC(date, localTime, tz string) (time.Time, error) {
	return time.Time{}, nil
}

// classifyCancellation and outboxEvent are the pure decision points inside
// BookingService's three-phase flows — the DB/PSP-touching phases around
// them need a live Postgres + Redis to exercise (see the package-level
// integration suite the teacher gates behind TEST_POSTGRES_HOST), but the
// settlement-outcome and envelope logic itself is plain arithmetic worth
// pinning down directly, per SPEC_FULL §8's scenarios S1-S7.
func TestClassifyCancellation(t *testing.T) {
	s := &BookingService{pricing: pricing.New(1000)}

	t.Run("24h or more before start is a full no-charge cancellation", func(t *testing.T) {
		outcome, payout, retained := s.classifyCancellation(24, &domain.BookingPayment{PaymentStatus: domain.PaymentStatusAuthorized}, 10000)
		assert.Equal(t, domain.OutcomeStudentCancelGT24NoCharge, outcome)
		assert.Zero(t, payout)
		assert.Zero(t, retained)
	})

	t.Run("just under 12h before start splits 50/50 (S4)", func(t *testing.T) {
		outcome, payout, retained := s.classifyCancellation(4, &domain.BookingPayment{PaymentStatus: domain.PaymentStatusAuthorized}, 10000)
		assert.Equal(t, domain.OutcomeStudentCancelLT12Split5050, outcome)
		assert.Equal(t, int64(5000), payout)
		assert.Equal(t, int64(5000), retained)
		assert.Equal(t, payout+retained, int64(10000), "split must account for the full captured amount")
	})

	t.Run("between 12h and 24h still resolves as the gt24 no-charge outcome", func(t *testing.T) {
		outcome, payout, retained := s.classifyCancellation(18, &domain.BookingPayment{PaymentStatus: domain.PaymentStatusAuthorized}, 10000)
		assert.Equal(t, domain.OutcomeStudentCancelGT24NoCharge, outcome)
		assert.Zero(t, payout)
		assert.Zero(t, retained)
	})

	t.Run("exactly 12h before start is outside the split window and resolves as no-charge", func(t *testing.T) {
		outcome, _, _ := s.classifyCancellation(12, &domain.BookingPayment{}, 10000)
		assert.Equal(t, domain.OutcomeStudentCancelGT24NoCharge, outcome)
	})
}

func TestOutboxEventCarriesBookingIdentity(t *testing.T) {
	s := &BookingService{clock: fixedClock{}}
	b := &domain.Booking{
		ID: "booking-1", StudentID: "student-1", InstructorID: "instructor-1",
		Status: domain.BookingStatusConfirmed,
	}

	ev := s.outboxEvent(domain.OutboxBookingConfirmed, b)

	require.NotEmpty(t, ev.EventID)
	assert.Equal(t, domain.OutboxBookingConfirmed, ev.EventType)
	assert.Equal(t, "booking-1", ev.BookingID)
	assert.Equal(t, "student-1", ev.StudentID)
	assert.Equal(t, "instructor-1", ev.InstructorID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "booking-1", payload["booking_id"])
	assert.Equal(t, string(domain.BookingStatusConfirmed), payload["status"])
}
