// Package statemachine centralizes the booking-status and
// payment-status transition guards so every three-phase operation
// consults the same table instead of re-deriving allowed transitions
// inline, the way the source's domain/errors.go classification
// predicates are generalized here into one guard per state machine.
package statemachine

import "github.com/msaedi/instructly-booking-engine/internal/domain"

// BookingEvent names a caller-initiated or worker-initiated transition
// trigger for the booking status machine.
type BookingEvent string

const (
	BookingEventConfirm    BookingEvent = "confirm"
	BookingEventComplete   BookingEvent = "complete"
	BookingEventCancel     BookingEvent = "cancel"
	BookingEventNoShow     BookingEvent = "no_show"
	BookingEventReschedule BookingEvent = "reschedule"
)

var bookingTransitions = map[domain.BookingStatus]map[BookingEvent]domain.BookingStatus{
	domain.BookingStatusPending: {
		BookingEventConfirm:    domain.BookingStatusConfirmed,
		BookingEventCancel:     domain.BookingStatusCancelled,
		BookingEventReschedule: domain.BookingStatusCancelled,
	},
	domain.BookingStatusConfirmed: {
		BookingEventComplete:   domain.BookingStatusCompleted,
		BookingEventCancel:     domain.BookingStatusCancelled,
		BookingEventNoShow:     domain.BookingStatusNoShow,
		BookingEventReschedule: domain.BookingStatusCancelled,
	},
}

// TransitionBooking returns the next booking status for (current, event)
// or domain.ErrInvalidTransition if the move is not allowed. Terminal
// statuses never have outgoing transitions, matching invariant 7
// (no regression out of a terminal state).
func TransitionBooking(current domain.BookingStatus, event BookingEvent) (domain.BookingStatus, error) {
	if domain.BookingStatus(current).Terminal() {
		return current, domain.ErrInvalidTransition
	}
	next, ok := bookingTransitions[current][event]
	if !ok {
		return current, domain.ErrInvalidTransition
	}
	return next, nil
}

// PaymentEvent names a transition trigger for the payment status
// machine, one per PaymentWorkerSet job plus the confirm-time seam.
type PaymentEvent string

const (
	PaymentEventAuthorize     PaymentEvent = "authorize"
	PaymentEventRequireMethod PaymentEvent = "require_method"
	PaymentEventCapture       PaymentEvent = "capture"
	PaymentEventLock          PaymentEvent = "lock"
	PaymentEventUnlockSettle  PaymentEvent = "unlock_settle"
	PaymentEventUnlockRefund  PaymentEvent = "unlock_refund"
	PaymentEventAbandon       PaymentEvent = "abandon"
	PaymentEventManualReview  PaymentEvent = "manual_review"
)

var paymentTransitions = map[domain.PaymentStatus]map[PaymentEvent]domain.PaymentStatus{
	domain.PaymentStatusScheduled: {
		PaymentEventAuthorize:     domain.PaymentStatusAuthorized,
		PaymentEventRequireMethod: domain.PaymentStatusMethodRequired,
		PaymentEventLock:          domain.PaymentStatusLocked,
		PaymentEventManualReview:  domain.PaymentStatusManualReview,
	},
	domain.PaymentStatusMethodRequired: {
		PaymentEventAuthorize:    domain.PaymentStatusAuthorized,
		PaymentEventAbandon:      domain.PaymentStatusSettled,
		PaymentEventManualReview: domain.PaymentStatusManualReview,
	},
	domain.PaymentStatusAuthorized: {
		PaymentEventCapture:      domain.PaymentStatusSettled,
		PaymentEventRequireMethod: domain.PaymentStatusMethodRequired,
		PaymentEventLock:         domain.PaymentStatusLocked,
		PaymentEventManualReview: domain.PaymentStatusManualReview,
	},
	domain.PaymentStatusLocked: {
		PaymentEventUnlockSettle: domain.PaymentStatusSettled,
		PaymentEventUnlockRefund: domain.PaymentStatusSettled,
		PaymentEventManualReview: domain.PaymentStatusManualReview,
	},
}

// TransitionPayment returns the next payment status for (current, event)
// or domain.ErrInvalidTransition if the move is not allowed.
func TransitionPayment(current domain.PaymentStatus, event PaymentEvent) (domain.PaymentStatus, error) {
	if current.Terminal() && current != domain.PaymentStatusLocked {
		return current, domain.ErrInvalidTransition
	}
	next, ok := paymentTransitions[current][event]
	if !ok {
		return current, domain.ErrInvalidTransition
	}
	return next, nil
}
