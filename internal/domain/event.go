package domain

import (
	"encoding/json"
	"time"
)

// EventType is the ledger event-type vocabulary from SPEC_FULL §4.6.
type EventType string

const (
	EventAuthSucceeded            EventType = "auth_succeeded"
	EventAuthSucceededCreditsOnly EventType = "auth_succeeded_credits_only"
	EventAuthFailed               EventType = "auth_failed"
	EventAuthRetryAttempted       EventType = "auth_retry_attempted"
	EventAuthRetrySucceeded       EventType = "auth_retry_succeeded"
	EventAuthRetryFailed          EventType = "auth_retry_failed"
	EventAuthExpired              EventType = "auth_expired"
	EventAuthAbandoned            EventType = "auth_abandoned"
	EventT24FirstFailureEmailSent EventType = "t24_first_failure_email_sent"
	EventFinalWarningSent         EventType = "final_warning_sent"
	EventPaymentCaptured          EventType = "payment_captured"
	EventCaptureAlreadyDone       EventType = "capture_already_done"
	EventCaptureFailed            EventType = "capture_failed"
	EventCaptureFailedExpired     EventType = "capture_failed_expired"
	EventCaptureFailedCard        EventType = "capture_failed_card"
	EventCaptureFailureEscalated  EventType = "capture_failure_escalated"
	EventReauthAndCaptureSuccess  EventType = "reauth_and_capture_success"
	EventReauthAndCaptureFailed   EventType = "reauth_and_capture_failed"
	EventLateCancellationCaptured EventType = "late_cancellation_captured"
	EventLateCancellationCaptureFailed EventType = "late_cancellation_capture_failed"
	EventAutoCompleted            EventType = "auto_completed"
	EventNoShowReported           EventType = "no_show_reported"
	EventNoShowDisputed           EventType = "no_show_disputed"
	EventNoShowResolved           EventType = "no_show_resolved"
	EventBookingCreated           EventType = "booking_created"
	EventBookingCancelled         EventType = "booking_cancelled"
	EventLockedFundsCreated       EventType = "locked_funds_created"
	EventLockedFundsResolved      EventType = "locked_funds_resolved"
)

// PaymentEvent is an append-only ledger entry. ExternalRef plus EventType
// plus BookingID form the idempotency key enforced by a unique index in
// the repository (SPEC_FULL §4.6).
type PaymentEvent struct {
	ID          string
	BookingID   string
	EventType   EventType
	ExternalRef string // PSP intent/transfer id, or a sentinel like "none"
	EventData   json.RawMessage
	CreatedAt   time.Time
}

// OutboxEventType is the external event-type vocabulary from SPEC_FULL §6.
type OutboxEventType string

const (
	OutboxBookingCreated    OutboxEventType = "booking.created"
	OutboxBookingConfirmed  OutboxEventType = "booking.confirmed"
	OutboxBookingCancelled  OutboxEventType = "booking.cancelled"
	OutboxBookingCompleted  OutboxEventType = "booking.completed"
	OutboxBookingNoShow     OutboxEventType = "booking.no_show"
	OutboxPaymentAuthorized OutboxEventType = "payment.authorized"
	OutboxPaymentCaptured   OutboxEventType = "payment.captured"
	OutboxPaymentFailed     OutboxEventType = "payment.failed"
	OutboxPaymentEscalated  OutboxEventType = "payment.escalated"
)

// OutboxEvent is the envelope written transactionally alongside a state
// change and later dispatched at-least-once (SPEC_FULL §6).
type OutboxEvent struct {
	EventID      string
	EventType    OutboxEventType
	BookingID    string
	StudentID    string
	InstructorID string
	OccurredAt   time.Time
	Payload      json.RawMessage

	Dispatched   bool
	DispatchedAt *time.Time
}

// AuditAction enumerates the actor-initiated mutations that write an
// AuditLog entry.
type AuditAction string

const (
	AuditActionCreateBooking     AuditAction = "create_booking"
	AuditActionConfirmPayment    AuditAction = "confirm_payment"
	AuditActionCancelBooking     AuditAction = "cancel_booking"
	AuditActionRescheduleBooking AuditAction = "reschedule_booking"
	AuditActionCompleteBooking   AuditAction = "complete_booking"
	AuditActionMarkNoShow        AuditAction = "mark_no_show"
	AuditActionDisputeNoShow     AuditAction = "dispute_no_show"
	AuditActionResolveNoShow     AuditAction = "resolve_no_show"
	AuditActionRetryAuthorization AuditAction = "retry_authorization"
)

// AuditEntry is a structured audit record keyed by actor+action+resource.
type AuditEntry struct {
	ID         string
	ActorID    string
	ActorIsSystem bool
	Action     AuditAction
	BookingID  string
	Detail     json.RawMessage
	CreatedAt  time.Time
}
