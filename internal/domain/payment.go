package domain

import "time"

// PaymentStatus is the authoritative state of a BookingPayment. Guarded
// centrally by statemachine.BookingStateMachine per SPEC_FULL §4.2.
type PaymentStatus string

const (
	PaymentStatusScheduled            PaymentStatus = "SCHEDULED"
	PaymentStatusAuthorized           PaymentStatus = "AUTHORIZED"
	PaymentStatusMethodRequired       PaymentStatus = "PAYMENT_METHOD_REQUIRED"
	PaymentStatusSettled              PaymentStatus = "SETTLED"
	PaymentStatusLocked               PaymentStatus = "LOCKED"
	PaymentStatusManualReview         PaymentStatus = "MANUAL_REVIEW"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSettled || s == PaymentStatusManualReview
}

// SettlementOutcome is the terminal label recorded on a BookingPayment,
// per SPEC_FULL §4.5.
type SettlementOutcome string

const (
	OutcomeLessonCompletedFullPayout  SettlementOutcome = "lesson_completed_full_payout"
	OutcomeStudentCancelGT24NoCharge  SettlementOutcome = "student_cancel_gt24_no_charge"
	OutcomeStudentCancelLT12Split5050 SettlementOutcome = "student_cancel_lt12_split_50_50"
	OutcomeInstructorCancel           SettlementOutcome = "instructor_cancel"
	OutcomeStudentNoShow              SettlementOutcome = "student_no_show"
	OutcomeInstructorNoShow           SettlementOutcome = "instructor_no_show"
	OutcomeCaptureFailureEscalated    SettlementOutcome = "capture_failure_escalated"
	OutcomeCaptureFailureInstructorPaid SettlementOutcome = "capture_failure_instructor_paid"
)

// BookingPayment is the 1:1 payment-lifecycle record for a Booking.
type BookingPayment struct {
	BookingID string

	PaymentStatus   PaymentStatus
	PaymentIntentID string
	PaymentMethodID string

	AuthScheduledFor time.Time
	AuthAttemptedAt  *time.Time
	AuthFailureCount int
	AuthLastError    string
	LastAuthAttemptReason string

	AuthFailureFirstEmailSentAt *time.Time
	AuthFailureT13WarningSentAt *time.Time

	CaptureFirstFailedAt *time.Time
	CaptureFailedAt    *time.Time
	CaptureRetryCount  int
	CaptureError       string
	CaptureEscalatedAt *time.Time

	CreditsReservedCents int64

	SettlementOutcome      SettlementOutcome
	InstructorPayoutAmount int64 // cents
	ManualTransferID       string
}

// IsTerminalForPaymentPurposes matches the data-model invariant in
// SPEC_FULL §3: once SETTLED or MANUAL_REVIEW, the booking is done from
// the payment engine's perspective.
func (p *BookingPayment) IsTerminalForPaymentPurposes() bool {
	return p.PaymentStatus.Terminal()
}
