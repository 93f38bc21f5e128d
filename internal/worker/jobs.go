package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/gateway"
	"github.com/msaedi/instructly-booking-engine/internal/idempotency"
	"github.com/msaedi/instructly-booking-engine/internal/statemachine"
)

// processScheduledAuthorizations places the initial authorization hold
// for every payment whose auth_scheduled_for has arrived (24h before the
// lesson, per the booking service's CreateBooking).
func (w *PaymentWorkerSet) processScheduledAuthorizations(batchSize int) jobFunc {
	return func(ctx context.Context) (int, int, error) {
		due, err := w.payments.DueForAuthorization(ctx, w.clock.Now(), batchSize)
		if err != nil {
			return 0, 0, err
		}

		processed, failed := 0, 0
		for _, p := range due {
			err := w.withBookingLock(ctx, p.BookingID, func(ctx context.Context) error {
				return w.authorizeOnce(ctx, p.BookingID, 1)
			})
			processed++
			if err != nil {
				failed++
				w.log.Error("scheduled authorization failed")
			}
		}
		return processed, failed, nil
	}
}

// retryFailedAuthorizations re-attempts authorization for payments stuck
// in PAYMENT_METHOD_REQUIRED, classifying each by hoursUntilStart per
// SPEC_FULL §4.4.2's table: abandon inside 12h, a one-time final warning
// in the 12-13h band, and a silent backoff-gated retry otherwise.
func (w *PaymentWorkerSet) retryFailedAuthorizations(batchSize int) jobFunc {
	return func(ctx context.Context) (int, int, error) {
		candidates, err := w.payments.MethodRequired(ctx, batchSize)
		if err != nil {
			return 0, 0, err
		}

		processed, failed := 0, 0
		for _, p := range candidates {
			booking, err := w.bookings.Get(ctx, p.BookingID)
			if err != nil {
				failed++
				processed++
				continue
			}
			hoursUntil := w.clock.HoursUntil(booking.BookingStartUTC)
			err = w.withBookingLock(ctx, p.BookingID, func(ctx context.Context) error {
				return w.retryAuthorizationOnce(ctx, p, hoursUntil)
			})
			processed++
			if err != nil {
				failed++
			}
		}
		return processed, failed, nil
	}
}

func (w *PaymentWorkerSet) retryAuthorizationOnce(ctx context.Context, p domain.BookingPayment, hoursUntil float64) error {
	if hoursUntil <= 12 {
		return w.cancelAbandonedAuth(ctx, p.BookingID)
	}
	if hoursUntil < 13 && p.AuthFailureT13WarningSentAt == nil {
		if err := w.sendFinalWarning(ctx, p.BookingID); err != nil {
			return err
		}
	}
	if !eligibleForRetry(p, w.clock.Now()) {
		return nil
	}
	return w.authorizeOnce(ctx, p.BookingID, p.AuthFailureCount+1)
}

// eligibleForRetry enforces the 1h/4h/8h backoff schedule keyed off
// AuthFailureCount (SPEC_FULL §4.4.2).
func eligibleForRetry(p domain.BookingPayment, now time.Time) bool {
	if p.AuthAttemptedAt == nil {
		return true
	}
	since := now.Sub(*p.AuthAttemptedAt)
	switch {
	case p.AuthFailureCount <= 1:
		return since >= time.Hour
	case p.AuthFailureCount == 2:
		return since >= 4*time.Hour
	default:
		return since >= 8*time.Hour
	}
}

// sendFinalWarning marks the idempotent T-13h warning sentinel and
// notifies the student, guarded so a retried job run never double-sends.
func (w *PaymentWorkerSet) sendFinalWarning(ctx context.Context, bookingID string) error {
	now := w.clock.Now()
	err := w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.AuthFailureT13WarningSentAt != nil {
			return nil
		}
		p.AuthFailureT13WarningSentAt = &now
		if err := w.payments.Update(ctx, tx, p); err != nil {
			return err
		}
		return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventFinalWarningSent})
	})
	if err != nil {
		return err
	}
	b, err := w.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	return w.notifier.NotifyAuthFailureFinalWarning(ctx, bookingID, b.StudentID)
}

// cancelAbandonedAuth runs the system-initiated cancellation for a
// booking whose authorization never recovered by the T-12h cutoff:
// payment settles at zero charge and any reserved credit is released.
func (w *PaymentWorkerSet) cancelAbandonedAuth(ctx context.Context, bookingID string) error {
	var booking *domain.Booking
	var payment *domain.BookingPayment
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return domain.ErrAlreadySettled
		}
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.PaymentStatus.Terminal() {
			return domain.ErrAlreadySettled
		}
		booking, payment = b, p
		return nil
	}); err != nil {
		if err == domain.ErrAlreadySettled {
			return nil
		}
		return err
	}

	now := w.clock.Now()
	booking.Status = domain.BookingStatusCancelled
	booking.CancelledAt = &now
	booking.CancellationReason = "authorization_abandoned"
	booking.CancelledByRole = domain.CancelledBySystem
	booking.StudentCreditAmount = payment.CreditsReservedCents
	payment.PaymentStatus = domain.PaymentStatusSettled
	payment.SettlementOutcome = domain.OutcomeStudentCancelGT24NoCharge

	return w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		if err := w.bookings.Update(ctx, tx, booking); err != nil {
			return err
		}
		if err := w.payments.Update(ctx, tx, payment); err != nil {
			return err
		}
		if err := w.credit.Release(ctx, tx, bookingID); err != nil {
			return err
		}
		return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventAuthAbandoned})
	})
}

// checkImmediateAuthTimeout cancels a just-created booking whose inline
// authorization (for lessons under 24h away) failed and has sat in
// PAYMENT_METHOD_REQUIRED for 30 minutes without the student supplying a
// new payment method (SPEC_FULL §4.4.7).
func (w *PaymentWorkerSet) checkImmediateAuthTimeout() jobFunc {
	return func(ctx context.Context) (int, int, error) {
		candidates, err := w.payments.MethodRequired(ctx, 500)
		if err != nil {
			return 0, 0, err
		}
		cutoff := w.clock.Now().Add(-30 * time.Minute)

		processed, failed := 0, 0
		for _, p := range candidates {
			if p.AuthAttemptedAt == nil || p.AuthAttemptedAt.After(cutoff) {
				continue
			}
			booking, err := w.bookings.Get(ctx, p.BookingID)
			if err != nil || booking.Status != domain.BookingStatusPending {
				continue
			}
			err = w.withBookingLock(ctx, p.BookingID, func(ctx context.Context) error {
				return w.cancelAbandonedAuth(ctx, p.BookingID)
			})
			processed++
			if err != nil {
				failed++
			}
		}
		return processed, failed, nil
	}
}

// authorizeOnce runs the three-phase authorization attempt for a single
// booking: Phase 1 re-validates the payment is still SCHEDULED or
// PAYMENT_METHOD_REQUIRED, Phase 2 calls the PSP, Phase 3 records the
// outcome, including the one-time first-failure email sentinel.
func (w *PaymentWorkerSet) authorizeOnce(ctx context.Context, bookingID string, attempt int) error {
	var payment *domain.BookingPayment
	var totalPrice int64
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != domain.PaymentStatusScheduled && p.PaymentStatus != domain.PaymentStatusMethodRequired {
			return domain.ErrAlreadySettled
		}
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		payment, totalPrice = p, b.TotalPrice
		return nil
	}); err != nil {
		if err == domain.ErrAlreadySettled {
			return nil
		}
		return err
	}

	// If reserved credits already cover the full price, the hold is
	// placed against the student's credit balance instead of the PSP
	// (SPEC_FULL §4.4.1): no CreateOrRetryAuth call, no intent id.
	studentPay := totalPrice - payment.CreditsReservedCents
	if studentPay < 0 {
		studentPay = 0
	}
	creditsOnly := studentPay == 0

	idemKey := idempotency.AuthKey(bookingID, attempt)
	var result *gateway.AuthResult
	var pspErr error
	if !creditsOnly {
		claimErr := w.idemStore.Claim(ctx, idemKey, bookingID, "authorize")
		if claimErr != nil && claimErr != idempotency.ErrAlreadyClaimed {
			return claimErr
		}
		result, pspErr = w.psp.CreateOrRetryAuth(ctx, idemKey, payment.PaymentMethodID, studentPay)
	}

	now := w.clock.Now()
	var firstFailureEmail bool
	err := w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		p.AuthAttemptedAt = &now

		if pspErr != nil {
			p.AuthFailureCount++
			p.AuthLastError = pspErr.Error()
			class := w.psp.Classify(pspErr)
			if class == domain.PSPCardDeclined && p.PaymentStatus != domain.PaymentStatusMethodRequired {
				p.PaymentStatus = domain.PaymentStatusMethodRequired
			}
			eventType := domain.EventAuthFailed
			if attempt > 1 {
				eventType = domain.EventAuthRetryFailed
			}
			if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: eventType}); err != nil {
				return err
			}
			if p.AuthFailureFirstEmailSentAt == nil {
				p.AuthFailureFirstEmailSentAt = &now
				firstFailureEmail = true
				if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventT24FirstFailureEmailSent}); err != nil {
					return err
				}
			}
		} else {
			p.PaymentStatus = domain.PaymentStatusAuthorized
			if creditsOnly {
				if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventAuthSucceededCreditsOnly}); err != nil {
					return err
				}
			} else {
				p.PaymentIntentID = result.PSPIntentID
				eventType := domain.EventAuthSucceeded
				if attempt > 1 {
					eventType = domain.EventAuthRetrySucceeded
				}
				if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: eventType, ExternalRef: result.PSPIntentID}); err != nil {
					return err
				}
			}

			b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
			if err != nil {
				return err
			}
			if next, serr := statemachine.TransitionBooking(b.Status, statemachine.BookingEventConfirm); serr == nil {
				b.Status = next
				b.ConfirmedAt = &now
				if err := w.bookings.Update(ctx, tx, b); err != nil {
					return err
				}
				if err := w.outboxPub.Write(ctx, tx, w.outboxEvent(domain.OutboxBookingConfirmed, b)); err != nil {
					return err
				}
			}
		}

		if err := w.payments.Update(ctx, tx, p); err != nil {
			return err
		}
		if !creditsOnly {
			return w.idemStore.Resolve(ctx, tx, idemKey, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if firstFailureEmail {
		b, bErr := w.bookings.Get(ctx, bookingID)
		if bErr == nil {
			_ = w.notifier.NotifyAuthFailureFirstWarning(ctx, bookingID, b.StudentID)
		}
	}
	return nil
}

// captureCompletedLessons drives candidate sets 1 and 2 from SPEC_FULL
// §4.4.3: capturing AUTHORIZED payments behind bookings already
// COMPLETED (by an instructor's manual complete), and auto-completing
// CONFIRMED bookings whose lesson ended 24h ago before capturing those
// too. Candidate set 3 (auths stale past ~7 days) is handled inline as
// an AuthExpired branch of captureOnce rather than a separate scan,
// since that's a property of the PSP's response to the same capture
// call, not a distinct query.
func (w *PaymentWorkerSet) captureCompletedLessons(batchSize int) jobFunc {
	return func(ctx context.Context) (int, int, error) {
		processed, failed := 0, 0

		due, err := w.payments.DueForCapture(ctx, w.clock.Now(), batchSize)
		if err != nil {
			return 0, 0, err
		}
		for _, p := range due {
			err := w.withBookingLock(ctx, p.BookingID, func(ctx context.Context) error {
				return w.captureOnce(ctx, p.BookingID)
			})
			processed++
			if err != nil {
				failed++
			}
		}

		cutoff := w.clock.Now().Add(-24 * time.Hour)
		autoCandidates, err := w.bookings.DueForAutoComplete(ctx, cutoff, batchSize)
		if err != nil {
			return processed, failed, err
		}
		for _, b := range autoCandidates {
			err := w.withBookingLock(ctx, b.ID, func(ctx context.Context) error {
				return w.autoCompleteAndCapture(ctx, b.ID)
			})
			processed++
			if err != nil {
				failed++
			}
		}
		return processed, failed, nil
	}
}

// autoCompleteAndCapture transitions a CONFIRMED booking whose lesson
// ended 24h ago to COMPLETED with completedAt pinned to the lesson's own
// end time, then captures under the same lock.
func (w *PaymentWorkerSet) autoCompleteAndCapture(ctx context.Context, bookingID string) error {
	var booking *domain.Booking
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusConfirmed {
			return domain.ErrAlreadySettled
		}
		booking = b
		return nil
	}); err != nil {
		if err == domain.ErrAlreadySettled {
			return nil
		}
		return err
	}

	completedAt := booking.BookingEndUTC
	err := w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusConfirmed {
			return nil
		}
		b.Status = domain.BookingStatusCompleted
		b.CompletedAt = &completedAt
		if err := w.bookings.Update(ctx, tx, b); err != nil {
			return err
		}
		return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventAutoCompleted})
	})
	if err != nil {
		return err
	}
	return w.captureOnce(ctx, bookingID)
}

// captureOnce runs the three-phase capture for a single non-terminal
// payment behind a COMPLETED booking: AUTHORIZED on the first attempt,
// PAYMENT_METHOD_REQUIRED when retryFailedCaptures retries it. An AuthExpired classification
// routes to createNewAuthorizationAndCapture instead of a plain retry,
// since the original hold can no longer be captured at all (S7).
func (w *PaymentWorkerSet) captureOnce(ctx context.Context, bookingID string) error {
	var payment *domain.BookingPayment
	var totalPrice int64
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.PaymentStatus.Terminal() {
			return domain.ErrAlreadySettled
		}
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		payment, totalPrice = p, b.TotalPrice
		return nil
	}); err != nil {
		if err == domain.ErrAlreadySettled {
			return nil
		}
		return err
	}

	if payment.PaymentIntentID == "" {
		// Credits-only authorization: nothing was held at the PSP, so
		// "capture" is just releasing the reserved credit to the
		// instructor's side of the ledger.
		return w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
			p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
			if err != nil {
				return err
			}
			p.PaymentStatus = domain.PaymentStatusSettled
			p.SettlementOutcome = domain.OutcomeLessonCompletedFullPayout
			if err := w.payments.Update(ctx, tx, p); err != nil {
				return err
			}
			if err := w.credit.Forfeit(ctx, tx, bookingID); err != nil {
				return err
			}
			return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventPaymentCaptured})
		})
	}

	idemKey := idempotency.CaptureKey(bookingID)
	claimErr := w.idemStore.Claim(ctx, idemKey, bookingID, "capture")
	if claimErr != nil && claimErr != idempotency.ErrAlreadyClaimed {
		return claimErr
	}

	result, pspErr := w.psp.CaptureAuth(ctx, idemKey, payment.PaymentIntentID, totalPrice)
	if pspErr != nil && w.psp.Classify(pspErr) == domain.PSPAuthExpired {
		if err := w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
			return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventCaptureFailedExpired})
		}); err != nil {
			return err
		}
		return w.createNewAuthorizationAndCapture(ctx, bookingID)
	}

	now := w.clock.Now()
	return w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if pspErr != nil {
			class := w.psp.Classify(pspErr)
			if class == domain.PSPAlreadyCaptured {
				p.PaymentStatus = domain.PaymentStatusSettled
				p.SettlementOutcome = domain.OutcomeLessonCompletedFullPayout
				if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventCaptureAlreadyDone}); err != nil {
					return err
				}
				if err := w.credit.Forfeit(ctx, tx, bookingID); err != nil {
					return err
				}
			} else {
				if p.CaptureFirstFailedAt == nil {
					p.CaptureFirstFailedAt = &now
				}
				p.CaptureFailedAt = &now
				p.CaptureRetryCount++
				p.CaptureError = pspErr.Error()
				p.PaymentStatus = domain.PaymentStatusMethodRequired
				eventType := domain.EventCaptureFailed
				if class == domain.PSPCardDeclined {
					eventType = domain.EventCaptureFailedCard
				}
				if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: eventType}); err != nil {
					return err
				}
			}
		} else {
			p.PaymentStatus = domain.PaymentStatusSettled
			p.SettlementOutcome = domain.OutcomeLessonCompletedFullPayout
			if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventPaymentCaptured, ExternalRef: result.PSPChargeID}); err != nil {
				return err
			}
			if err := w.credit.Forfeit(ctx, tx, bookingID); err != nil {
				return err
			}
		}

		if err := w.payments.Update(ctx, tx, p); err != nil {
			return err
		}
		return w.idemStore.Resolve(ctx, tx, idemKey, nil)
	})
}

// createNewAuthorizationAndCapture implements S7: the original hold
// expired before capture, so a fresh authorization is placed and
// captured immediately under the same lock, using deterministic keys
// derived from the booking id rather than the (not-yet-known) new
// intent id, so a crash-and-retry reproduces the same pair of calls.
func (w *PaymentWorkerSet) createNewAuthorizationAndCapture(ctx context.Context, bookingID string) error {
	var payment *domain.BookingPayment
	var totalPrice int64
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		payment, totalPrice = p, b.TotalPrice
		return nil
	}); err != nil {
		return err
	}

	reauthKey := idempotency.ReauthKey(bookingID)
	authResult, authErr := w.psp.CreateOrRetryAuth(ctx, reauthKey, payment.PaymentMethodID, totalPrice)

	var chargeID string
	var captureErr error
	if authErr == nil {
		captureKey := idempotency.ReauthCaptureKey(bookingID)
		res, err := w.psp.CaptureAuth(ctx, captureKey, authResult.PSPIntentID, totalPrice)
		captureErr = err
		if res != nil {
			chargeID = res.PSPChargeID
		}
	}

	now := w.clock.Now()
	return w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		p.AuthAttemptedAt = &now

		if authErr != nil || captureErr != nil {
			p.PaymentStatus = domain.PaymentStatusMethodRequired
			if p.CaptureFirstFailedAt == nil {
				p.CaptureFirstFailedAt = &now
			}
			p.CaptureFailedAt = &now
			p.CaptureRetryCount++
			if authErr != nil {
				p.CaptureError = authErr.Error()
			} else {
				p.CaptureError = captureErr.Error()
			}
			if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventReauthAndCaptureFailed}); err != nil {
				return err
			}
		} else {
			p.PaymentIntentID = authResult.PSPIntentID
			p.PaymentStatus = domain.PaymentStatusSettled
			p.SettlementOutcome = domain.OutcomeLessonCompletedFullPayout
			if err := w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventReauthAndCaptureSuccess, ExternalRef: chargeID}); err != nil {
				return err
			}
		}
		return w.payments.Update(ctx, tx, p)
	})
}

// retryFailedCaptures re-attempts a capture that failed, escalating to
// MANUAL_REVIEW after the retry budget is exhausted.
func (w *PaymentWorkerSet) retryFailedCaptures(batchSize int) jobFunc {
	const escalateAfter = 72 * time.Hour

	return func(ctx context.Context) (int, int, error) {
		candidates, err := w.payments.FailedCaptures(ctx, batchSize)
		if err != nil {
			return 0, 0, err
		}

		processed, failed := 0, 0
		for _, p := range candidates {
			if p.CaptureFailedAt != nil && w.clock.Now().Sub(*p.CaptureFailedAt) < 4*time.Hour {
				continue
			}
			if p.CaptureFirstFailedAt != nil && w.clock.Now().Sub(*p.CaptureFirstFailedAt) >= escalateAfter {
				err := w.withBookingLock(ctx, p.BookingID, func(ctx context.Context) error {
					return w.escalateCaptureFailure(ctx, p.BookingID)
				})
				processed++
				if err != nil {
					failed++
				}
				continue
			}
			err := w.withBookingLock(ctx, p.BookingID, func(ctx context.Context) error {
				return w.captureOnce(ctx, p.BookingID)
			})
			processed++
			if err != nil {
				failed++
			}
		}
		return processed, failed, nil
	}
}

// escalateCaptureFailure moves a payment to MANUAL_REVIEW once 72h have
// elapsed since its first capture failure (CaptureFirstFailedAt, checked
// by retryFailedCaptures), and attempts a direct manual transfer of the
// instructor's target payout so the instructor isn't left unpaid while
// the booking sits in review.
func (w *PaymentWorkerSet) escalateCaptureFailure(ctx context.Context, bookingID string) error {
	var totalPrice int64
	var instructorAccountID string
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.CaptureEscalatedAt != nil {
			return domain.ErrAlreadyResolved
		}
		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		totalPrice, instructorAccountID = b.TotalPrice, b.InstructorID
		return nil
	}); err != nil {
		if err == domain.ErrAlreadyResolved {
			return nil
		}
		return err
	}

	payoutCents, _ := w.pricing.NormalPayout(totalPrice)
	idemKey := idempotency.CaptureFailurePayoutKey(bookingID)
	transferResult, transferErr := w.psp.ManualTransfer(ctx, idemKey, instructorAccountID, payoutCents)

	now := w.clock.Now()
	err := w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.CaptureEscalatedAt != nil {
			return nil
		}
		p.CaptureEscalatedAt = &now
		p.PaymentStatus = domain.PaymentStatusManualReview
		if transferErr == nil {
			p.SettlementOutcome = domain.OutcomeCaptureFailureInstructorPaid
			p.InstructorPayoutAmount = payoutCents
			p.ManualTransferID = transferResult.PSPTransferID
		} else {
			p.SettlementOutcome = domain.OutcomeCaptureFailureEscalated
		}
		if err := w.payments.Update(ctx, tx, p); err != nil {
			return err
		}
		return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventCaptureFailureEscalated})
	})
	if err == nil {
		_ = w.notifier.NotifyCaptureFailureEscalated(ctx, bookingID, instructorAccountID)
	}
	return err
}

// resolveUndisputedNoShows auto-resolves a no-show report once the
// dispute window has closed without a challenge.
func (w *PaymentWorkerSet) resolveUndisputedNoShows(batchSize int) jobFunc {
	return func(ctx context.Context) (int, int, error) {
		cutoff := w.clock.Now().Add(-24 * time.Hour)
		reports, err := w.noShows.UndisputedOlderThan(ctx, cutoff, batchSize)
		if err != nil {
			return 0, 0, err
		}

		processed, failed := 0, 0
		for _, r := range reports {
			err := w.withBookingLock(ctx, r.BookingID, func(ctx context.Context) error {
				return w.resolveNoShowOnce(ctx, r.BookingID)
			})
			processed++
			if err != nil {
				failed++
			}
		}
		return processed, failed, nil
	}
}

func (w *PaymentWorkerSet) resolveNoShowOnce(ctx context.Context, bookingID string) error {
	var report *domain.NoShowReport
	var payment *domain.BookingPayment
	if err := w.tx.RunRead(ctx, func(tx pgx.Tx) error {
		n, err := w.noShows.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if n == nil || n.NoShowResolvedAt != nil || n.NoShowDisputed {
			return domain.ErrAlreadyResolved
		}
		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		report, payment = n, p
		return nil
	}); err != nil {
		if err == domain.ErrAlreadyResolved {
			return nil
		}
		return err
	}

	// An undisputed report confirms the allegation: the reported-absent
	// party's outcome applies without a PSP call here when the party is
	// the instructor (no-charge refund path is handled by the admin
	// resolveNoShow flow for disputed cases; the undisputed auto-path
	// only ever confirms what was reported).
	var pspErr error
	var pspRef string
	if report.NoShowType == domain.NoShowStudent && payment.PaymentStatus == domain.PaymentStatusAuthorized {
		booking, err := w.bookings.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		idemKey := idempotency.CaptureKey(bookingID)
		result, err := w.psp.CaptureAuth(ctx, idemKey, payment.PaymentIntentID, booking.TotalPrice)
		pspErr = err
		if result != nil {
			pspRef = result.PSPChargeID
		}
	}
	if pspErr != nil {
		return pspErr
	}

	now := w.clock.Now()
	return w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		n, err := w.noShows.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if n == nil || n.NoShowResolvedAt != nil {
			return nil
		}
		n.NoShowResolvedAt = &now
		n.NoShowResolution = "auto_resolved_undisputed"
		if err := w.noShows.Update(ctx, tx, n); err != nil {
			return err
		}

		p, err := w.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != domain.PaymentStatusSettled {
			p.PaymentStatus = domain.PaymentStatusSettled
			if report.NoShowType == domain.NoShowStudent {
				p.SettlementOutcome = domain.OutcomeStudentNoShow
			} else {
				p.SettlementOutcome = domain.OutcomeInstructorNoShow
			}
			if err := w.payments.Update(ctx, tx, p); err != nil {
				return err
			}
		}

		b, err := w.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusNoShow {
			b.Status = domain.BookingStatusNoShow
			if err := w.bookings.Update(ctx, tx, b); err != nil {
				return err
			}
		}

		return w.ledger.Append(ctx, tx, domain.PaymentEvent{BookingID: bookingID, EventType: domain.EventNoShowResolved, ExternalRef: pspRef})
	})
}

// auditPayoutSchedules calls PSPAdapter.SetPayoutSchedule (with a 2-day
// delay) for the instructor behind every transfer whose payout schedule
// hasn't been checked in the last 24h, then stamps
// PayoutScheduleCheckedAt. It does not read the account's current
// schedule back from the PSP.
func (w *PaymentWorkerSet) auditPayoutSchedules(batchSize int) jobFunc {
	return func(ctx context.Context) (int, int, error) {
		cutoff := w.clock.Now().Add(-24 * time.Hour)
		due, err := w.transfers.DueForPayoutAudit(ctx, cutoff, batchSize)
		if err != nil {
			return 0, 0, err
		}

		processed, failed := 0, 0
		for _, t := range due {
			booking, err := w.bookings.Get(ctx, t.BookingID)
			if err != nil {
				failed++
				processed++
				continue
			}
			if err := w.psp.SetPayoutSchedule(ctx, booking.InstructorID, 2); err != nil {
				failed++
				processed++
				continue
			}
			now := w.clock.Now()
			t.PayoutScheduleCheckedAt = &now
			if err := w.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
				return w.transfers.Upsert(ctx, tx, &t)
			}); err != nil {
				failed++
			}
			processed++
		}
		return processed, failed, nil
	}
}

// authorizationHealthCheck reports whether the scheduled-authorization
// pipeline is keeping up: a growing backlog of SCHEDULED payments past
// their due time indicates the worker itself is stuck.
func (w *PaymentWorkerSet) authorizationHealthCheck() jobFunc {
	return func(ctx context.Context) (int, int, error) {
		overdue, err := w.payments.DueForAuthorization(ctx, w.clock.Now().Add(-time.Hour), 6)
		if err != nil {
			return 0, 0, err
		}
		if len(overdue) > 5 {
			w.log.Warn("authorization pipeline backlog detected")
			return 1, 1, nil
		}
		return 1, 0, nil
	}
}
