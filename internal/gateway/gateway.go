// Package gateway defines the PSP boundary and a Stripe implementation,
// grounded on backend-payment/internal/gateway/stripe_gateway.go's
// PaymentIntent create/confirm/capture/refund patterns using
// github.com/stripe/stripe-go/v82, generalized to the booking engine's
// three-phase call discipline and error classification.
package gateway

import (
	"context"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

// AuthResult is the outcome of an authorization attempt.
type AuthResult struct {
	PSPIntentID string
	Status      string // psp-native status string, logged verbatim into the ledger
}

// CaptureResult is the outcome of a capture attempt.
type CaptureResult struct {
	PSPChargeID string
}

// RefundResult is the outcome of a refund attempt.
type RefundResult struct {
	PSPRefundID string
}

// TransferResult is the outcome of a manual/instructor payout transfer.
type TransferResult struct {
	PSPTransferID string
}

// PSPAdapter is the seam every Phase 2 call goes through. Every method
// takes a caller-supplied idempotencyKey derived by the idempotency
// package so retried calls are safe to resend verbatim.
type PSPAdapter interface {
	// CreateOrRetryAuth places or re-places a hold for amountCents on the
	// student's default payment method.
	CreateOrRetryAuth(ctx context.Context, idempotencyKey, customerID string, amountCents int64) (*AuthResult, error)

	// ConfirmAuth finalizes a previously created (but unconfirmed)
	// authorization, used when the initial create returned a
	// requires-action status.
	ConfirmAuth(ctx context.Context, idempotencyKey, pspIntentID string) (*AuthResult, error)

	// CaptureAuth captures a previously authorized hold.
	CaptureAuth(ctx context.Context, idempotencyKey, pspIntentID string, amountCents int64) (*CaptureResult, error)

	// CancelAuth releases a hold without capturing it.
	CancelAuth(ctx context.Context, idempotencyKey, pspIntentID string) error

	// Refund returns captured funds to the student's card.
	Refund(ctx context.Context, idempotencyKey, pspChargeID string, amountCents int64) (*RefundResult, error)

	// ManualTransfer pays an instructor out of band from the usual
	// capture-triggered transfer, used by the capture-failure escalation
	// in retryFailedCaptures.
	ManualTransfer(ctx context.Context, idempotencyKey, instructorAccountID string, amountCents int64) (*TransferResult, error)

	// SetPayoutSchedule configures when a captured transfer actually
	// lands in the instructor's bank account, audited nightly by
	// PaymentWorkerSet's payout schedule job.
	SetPayoutSchedule(ctx context.Context, instructorAccountID string, delayDays int) error

	// Classify maps a raw error returned by any of the above into the
	// engine's PSP error taxonomy so the three-phase orchestrator can
	// decide the right terminal state.
	Classify(err error) domain.PSPErrorClass
}
