package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

func TestTransitionBookingPendingToConfirmed(t *testing.T) {
	next, err := TransitionBooking(domain.BookingStatusPending, BookingEventConfirm)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, next)
}

func TestTransitionBookingRejectsFromTerminal(t *testing.T) {
	_, err := TransitionBooking(domain.BookingStatusCompleted, BookingEventCancel)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionBookingRejectsUnknownEvent(t *testing.T) {
	_, err := TransitionBooking(domain.BookingStatusPending, BookingEventComplete)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionPaymentLockedCanStillSettle(t *testing.T) {
	next, err := TransitionPayment(domain.PaymentStatusLocked, PaymentEventUnlockSettle)
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSettled, next)
}

func TestTransitionPaymentRejectsFromSettled(t *testing.T) {
	_, err := TransitionPayment(domain.PaymentStatusSettled, PaymentEventCapture)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionBookingRescheduleFromPending(t *testing.T) {
	next, err := TransitionBooking(domain.BookingStatusPending, BookingEventReschedule)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, next)
}

func TestTransitionBookingRescheduleFromConfirmed(t *testing.T) {
	next, err := TransitionBooking(domain.BookingStatusConfirmed, BookingEventReschedule)
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, next)
}

func TestTransitionBookingRescheduleRejectsFromTerminal(t *testing.T) {
	_, err := TransitionBooking(domain.BookingStatusCompleted, BookingEventReschedule)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionPaymentLockFromAuthorized(t *testing.T) {
	next, err := TransitionPayment(domain.PaymentStatusAuthorized, PaymentEventLock)
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusLocked, next)
}
