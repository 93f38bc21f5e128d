// Package lockedfunds implements LockedFundsResolver, the three-phase
// resolver for LOCKED parent bookings created by a reschedule inside the
// 12-24h window: once the rescheduled child booking reaches a terminal
// state, the parent's held funds are settled or released accordingly.
package lockedfunds

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/msaedi/instructly-booking-engine/internal/clock"
	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/gateway"
	"github.com/msaedi/instructly-booking-engine/internal/idempotency"
	"github.com/msaedi/instructly-booking-engine/internal/ledger"
	"github.com/msaedi/instructly-booking-engine/internal/lock"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
	"github.com/msaedi/instructly-booking-engine/internal/pricing"
	"github.com/msaedi/instructly-booking-engine/internal/repository"
)

type Resolver struct {
	lockRecords *repository.LockRecordRepository
	bookings    *repository.BookingRepository
	payments    *repository.BookingPaymentRepository
	tx          *repository.TxRepository
	locks       *lock.BookingLock
	idemStore   *idempotency.Store
	ledger      *ledger.EventLedger
	psp         gateway.PSPAdapter
	pricing     *pricing.Calculator
	clock       clock.Service
	log         *logger.Logger
}

type Dependencies struct {
	LockRecords *repository.LockRecordRepository
	Bookings    *repository.BookingRepository
	Payments    *repository.BookingPaymentRepository
	Tx          *repository.TxRepository
	Locks       *lock.BookingLock
	Idempotency *idempotency.Store
	Ledger      *ledger.EventLedger
	PSP         gateway.PSPAdapter
	Pricing     *pricing.Calculator
	Clock       clock.Service
	Log         *logger.Logger
}

func New(d Dependencies) *Resolver {
	return &Resolver{
		lockRecords: d.LockRecords, bookings: d.Bookings, payments: d.Payments, tx: d.Tx,
		locks: d.Locks, idemStore: d.Idempotency, ledger: d.Ledger, psp: d.PSP,
		pricing: d.Pricing, clock: d.Clock, log: d.Log,
	}
}

// ResolvePending scans every open LockRecord whose child booking has
// reached a terminal state and settles or releases the parent's held
// funds accordingly. Called by PaymentWorkerSet on its own cadence.
func (r *Resolver) ResolvePending(ctx context.Context, batchSize int) (processed, failed int, err error) {
	records, err := r.lockRecords.Unresolved(ctx, batchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		guard, aerr := r.locks.TryAcquire(ctx, rec.BookingID, rec.BookingID)
		if aerr != nil {
			if aerr == lock.ErrNotAcquired {
				continue
			}
			failed++
			processed++
			continue
		}

		child, cerr := r.bookings.Get(ctx, rec.ChildBookingID)
		if cerr != nil || !child.Status.Terminal() {
			guard.Release(ctx)
			continue
		}

		if err := r.resolveOne(ctx, rec, child); err != nil {
			r.log.Error("resolving locked funds failed")
			failed++
		}
		processed++
		guard.Release(ctx)
	}
	return processed, failed, nil
}

// resolveOne settles or releases a parent booking's LOCKED hold per
// SPEC_FULL §4.7, based on the outcome the rescheduled child booking
// reached: a completed or student-no-show child means the lock is
// captured (the original hold had already reserved the funds); an
// instructor-cancelled child releases the hold back to the student.
func (r *Resolver) resolveOne(ctx context.Context, rec domain.LockRecord, child *domain.Booking) error {
	var resolution domain.LockResolution
	var outcome domain.SettlementOutcome
	capture := true

	switch child.Status {
	case domain.BookingStatusCompleted:
		resolution, outcome = domain.LockResolutionNewLessonCompleted, domain.OutcomeLessonCompletedFullPayout
	case domain.BookingStatusCancelled:
		if child.CancelledByRole == domain.CancelledByInstructor {
			resolution, outcome, capture = domain.LockResolutionInstructorCancelled, domain.OutcomeInstructorCancel, false
		} else {
			resolution, outcome = domain.LockResolutionNewLessonCompleted, domain.OutcomeLessonCompletedFullPayout
		}
	case domain.BookingStatusNoShow:
		resolution, outcome = domain.LockResolutionStudentNoShow, domain.OutcomeStudentNoShow
	default:
		resolution, outcome = domain.LockResolutionNewLessonCompleted, domain.OutcomeLessonCompletedFullPayout
	}

	parentPayment, err := r.payments.Get(ctx, rec.BookingID)
	if err != nil {
		return fmt.Errorf("fetching parent payment for locked-funds resolution: %w", err)
	}

	var pspRef string
	if capture {
		idemKey := idempotency.CaptureKey(rec.BookingID)
		result, err := r.psp.CaptureAuth(ctx, idemKey, parentPayment.PaymentIntentID, rec.LockedAmountCents)
		if err != nil {
			return fmt.Errorf("capturing locked funds: %w", err)
		}
		pspRef = result.PSPChargeID
	} else {
		idemKey := idempotency.ManualTransferKey(rec.BookingID)
		if err := r.psp.CancelAuth(ctx, idemKey, parentPayment.PaymentIntentID); err != nil {
			return fmt.Errorf("releasing locked funds: %w", err)
		}
	}

	return r.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		if err := r.lockRecords.Resolve(ctx, tx, rec.BookingID, resolution); err != nil {
			return err
		}
		payment, err := r.payments.GetForUpdate(ctx, tx, rec.BookingID)
		if err != nil {
			return err
		}
		payment.PaymentStatus = domain.PaymentStatusSettled
		payment.SettlementOutcome = outcome
		if err := r.payments.Update(ctx, tx, payment); err != nil {
			return err
		}
		return r.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: rec.BookingID, EventType: domain.EventLockedFundsResolved, ExternalRef: pspRef,
		})
	})
}
