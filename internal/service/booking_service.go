// Package service implements BookingService, the three-phase
// orchestrator behind every caller-initiated booking/payment operation,
// grounded on backend-booking/internal/service/booking_service.go's
// shape (span-per-operation, constructor-injected repositories,
// precondition checks via domain predicate methods, post-commit async
// event dispatch) but generalized to the short-DB-txn / PSP-call /
// short-DB-txn discipline this engine requires.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/msaedi/instructly-booking-engine/internal/audit"
	"github.com/msaedi/instructly-booking-engine/internal/availability"
	"github.com/msaedi/instructly-booking-engine/internal/clock"
	"github.com/msaedi/instructly-booking-engine/internal/credit"
	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/gateway"
	"github.com/msaedi/instructly-booking-engine/internal/idempotency"
	"github.com/msaedi/instructly-booking-engine/internal/ledger"
	"github.com/msaedi/instructly-booking-engine/internal/lock"
	"github.com/msaedi/instructly-booking-engine/internal/notify"
	"github.com/msaedi/instructly-booking-engine/internal/outbox"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
	"github.com/msaedi/instructly-booking-engine/internal/platform/telemetry"
	"github.com/msaedi/instructly-booking-engine/internal/pricing"
	"github.com/msaedi/instructly-booking-engine/internal/repository"
	"github.com/msaedi/instructly-booking-engine/internal/statemachine"
	"github.com/msaedi/instructly-booking-engine/internal/videoroom"
)

// CreateBookingInput carries the caller-supplied fields needed to place
// a new PENDING booking.
type CreateBookingInput struct {
	StudentID      string
	InstructorID   string
	BookingDate    time.Time
	StartTime      string
	EndTime        string
	DurationMin    int
	LessonTimezone string
	ServiceName    string
	HourlyRateCents int64
	TotalPriceCents int64
	LocationType   domain.LocationType
	Address        string
	CustomerID     string // PSP customer id, used later at authorization time

	// RequestedCreditCents is how much of the student's platform credit
	// balance to apply against this booking, clamped to the total price
	// by PricingCalculator.AppliedCredit. Zero means pay the full price
	// by card.
	RequestedCreditCents int64

	// RescheduledFromBookingID and HasLockedFunds are set by
	// RescheduleBooking when the new booking replaces one whose payment
	// is being held rather than settled (SPEC_FULL §4.3.e). Left zero for
	// every ordinary booking.
	RescheduledFromBookingID *string
	HasLockedFunds           bool
}

// BookingService is the single entrypoint for every caller-initiated
// booking/payment mutation. It never holds a database connection across
// a PSP call: each public method runs Phase 1 and Phase 3 as their own
// short transactions, bracketing an uncommitted Phase 2 PSP call.
type BookingService struct {
	tx           *repository.TxRepository
	bookings     *repository.BookingRepository
	payments     *repository.BookingPaymentRepository
	transfers    *repository.TransferRepository
	noShows      *repository.NoShowRepository
	lockRecords  *repository.LockRecordRepository
	locks        *lock.BookingLock
	idempotency  *idempotency.Store
	ledger       *ledger.EventLedger
	audit        *audit.Log
	outboxPub    *outbox.Publisher
	pricing      *pricing.Calculator
	psp          gateway.PSPAdapter
	clock        clock.Service
	availability *availability.Validator
	credit       *credit.Service
	notifier     notify.Notifier
	video        videoroom.Provisioner
	log          *logger.Logger
}

type Dependencies struct {
	Tx           *repository.TxRepository
	Bookings     *repository.BookingRepository
	Payments     *repository.BookingPaymentRepository
	Transfers    *repository.TransferRepository
	NoShows      *repository.NoShowRepository
	LockRecords  *repository.LockRecordRepository
	Locks        *lock.BookingLock
	Idempotency  *idempotency.Store
	Ledger       *ledger.EventLedger
	Audit        *audit.Log
	Outbox       *outbox.Publisher
	Pricing      *pricing.Calculator
	PSP          gateway.PSPAdapter
	Clock        clock.Service
	Availability *availability.Validator
	Credit       *credit.Service
	Notifier     notify.Notifier
	Video        videoroom.Provisioner
	Log          *logger.Logger
}

func New(d Dependencies) *BookingService {
	return &BookingService{
		tx: d.Tx, bookings: d.Bookings, payments: d.Payments, transfers: d.Transfers,
		noShows: d.NoShows, lockRecords: d.LockRecords, locks: d.Locks,
		idempotency: d.Idempotency, ledger: d.Ledger, audit: d.Audit, outboxPub: d.Outbox,
		pricing: d.Pricing, psp: d.PSP, clock: d.Clock, availability: d.Availability,
		credit: d.Credit, notifier: d.Notifier, video: d.Video, log: d.Log,
	}
}

// CreateBooking places a new PENDING booking and its matching SCHEDULED
// payment row. No PSP call happens here; authorization is deferred to
// the scheduled-authorization worker job per SPEC_FULL §4.4.1.
func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, in CreateBookingInput) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.create")
	defer span.End()

	startUTC, err := s.clock.ToUTC(in.BookingDate.Format("2006-01-02"), in.StartTime, in.LessonTimezone)
	if err != nil {
		return nil, fmt.Errorf("resolving booking start: %w", err)
	}
	endUTC, err := s.clock.ToUTC(in.BookingDate.Format("2006-01-02"), in.EndTime, in.LessonTimezone)
	if err != nil {
		return nil, fmt.Errorf("resolving booking end: %w", err)
	}
	if !endUTC.After(startUTC) {
		return nil, domain.ErrDurationWrapsDay
	}

	ok, err := s.availability.Covers(ctx, in.InstructorID, in.BookingDate, startUTC, endUTC)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSlotUnavailable
	}

	overlapping, err := s.bookings.OverlappingForInstructor(ctx, in.InstructorID, startUTC, endUTC)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, domain.NewConflictError(domain.ConflictScopeInstructor, nil)
	}

	studentOverlapping, err := s.bookings.OverlappingForStudent(ctx, in.StudentID, startUTC, endUTC)
	if err != nil {
		return nil, err
	}
	if len(studentOverlapping) > 0 {
		return nil, domain.NewConflictError(domain.ConflictScopeStudent, nil)
	}

	b := &domain.Booking{
		ID: uuid.NewString(), StudentID: in.StudentID, InstructorID: in.InstructorID,
		BookingDate: in.BookingDate, StartTime: in.StartTime, EndTime: in.EndTime,
		DurationMinutes: in.DurationMin, LessonTimezone: in.LessonTimezone,
		BookingStartUTC: startUTC, BookingEndUTC: endUTC,
		ServiceName: in.ServiceName, HourlyRate: in.HourlyRateCents, TotalPrice: in.TotalPriceCents,
		LocationType: in.LocationType, Address: in.Address,
		Status: domain.BookingStatusPending, CreatedAt: s.clock.Now(),
		RescheduledFromBookingID: in.RescheduledFromBookingID, HasLockedFunds: in.HasLockedFunds,
	}

	err = s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		if err := s.bookings.Insert(ctx, tx, b); err != nil {
			return err
		}
		payment := &domain.BookingPayment{
			BookingID: b.ID, PaymentStatus: domain.PaymentStatusScheduled,
			AuthScheduledFor: startUTC.Add(-24 * time.Hour),
		}
		if err := s.payments.Insert(ctx, tx, payment); err != nil {
			return err
		}
		appliedCredit := s.pricing.AppliedCredit(b.TotalPrice, in.RequestedCreditCents)
		if appliedCredit > 0 {
			if err := s.credit.Reserve(ctx, tx, in.StudentID, b.ID, appliedCredit); err != nil {
				return err
			}
			payment.CreditsReservedCents = appliedCredit
			if err := s.payments.Update(ctx, tx, payment); err != nil {
				return err
			}
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionCreateBooking, b.ID, nil); err != nil {
			return err
		}
		return s.outboxPub.Write(ctx, tx, s.outboxEvent(domain.OutboxBookingCreated, b))
	})
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	return b, nil
}

// CancelBooking runs the full three-phase cancellation flow: Phase 1
// locks and validates the booking is cancellable, Phase 2 calls the PSP
// (CancelAuth to release the hold for a no-charge outcome, CaptureAuth
// for a late-cancellation split, or nothing when no hold is authorized),
// Phase 3 applies the terminal state and writes the
// ledger/audit/outbox records.
func (s *BookingService) CancelBooking(ctx context.Context, actor domain.Actor, bookingID, reason string, by domain.CancelledByRole) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.cancel")
	defer span.End()

	guard, err := s.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		return err
	}
	defer guard.Release(ctx)

	var booking *domain.Booking
	var payment *domain.BookingPayment
	if err := s.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if _, err := statemachine.TransitionBooking(b.Status, statemachine.BookingEventCancel); err != nil {
			return domain.ErrNotCancellable
		}
		p, err := s.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		booking, payment = b, p
		return nil
	}); err != nil {
		return err
	}

	return s.settleCancellation(ctx, actor, booking, payment, reason, by)
}

// settleCancellation applies the PSP call and terminal write for a
// cancellation whose booking/payment rows have already been fetched and
// whose booking lock is already held by the caller. Shared by
// CancelBooking and RescheduleBooking's outside-the-lock-window path,
// since the latter already holds the original booking's lock when it
// needs the same settlement.
func (s *BookingService) settleCancellation(ctx context.Context, actor domain.Actor, booking *domain.Booking, payment *domain.BookingPayment, reason string, by domain.CancelledByRole) error {
	bookingID := booking.ID
	hoursUntil := s.clock.HoursUntil(booking.BookingStartUTC)
	outcome, instructorPayout, platformRetained := s.classifyCancellation(hoursUntil, payment, booking.TotalPrice)

	idemKey := idempotency.RefundKey(bookingID, payment.AuthFailureCount)
	var pspRefundID string
	if outcome == domain.OutcomeStudentCancelGT24NoCharge && payment.PaymentStatus == domain.PaymentStatusAuthorized {
		if err := s.idempotency.Claim(ctx, idemKey, bookingID, "cancel_refund"); err != nil && err != idempotency.ErrAlreadyClaimed {
			return err
		}
		if err := s.psp.CancelAuth(ctx, idemKey, payment.PaymentIntentID); err != nil {
			class := s.psp.Classify(err)
			if class != domain.PSPAlreadyCaptured {
				return domain.NewPSPError(class, err)
			}
		}
	}
	if outcome == domain.OutcomeStudentCancelLT12Split5050 && payment.PaymentStatus == domain.PaymentStatusAuthorized {
		captureKey := idempotency.LateCancelCaptureKey(bookingID)
		res, err := s.psp.CaptureAuth(ctx, captureKey, payment.PaymentIntentID, booking.TotalPrice)
		if err != nil {
			return domain.NewPSPError(s.psp.Classify(err), err)
		}
		pspRefundID = res.PSPChargeID
		payment.PaymentStatus = domain.PaymentStatusSettled
	}
	if outcome == domain.OutcomeStudentCancelGT24NoCharge {
		payment.PaymentStatus = domain.PaymentStatusSettled
	}

	now := s.clock.Now()
	booking.Status = domain.BookingStatusCancelled
	booking.CancelledAt = &now
	booking.CancellationReason = reason
	booking.CancelledByRole = by
	payment.SettlementOutcome = outcome
	payment.InstructorPayoutAmount = instructorPayout
	if outcome == domain.OutcomeStudentCancelGT24NoCharge && payment.CreditsReservedCents > 0 {
		booking.StudentCreditAmount = payment.CreditsReservedCents
	}

	err := s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		if err := s.bookings.Update(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.idempotency.Resolve(ctx, tx, idemKey, nil); err != nil {
			return err
		}
		if outcome == domain.OutcomeStudentCancelGT24NoCharge && payment.CreditsReservedCents > 0 {
			if err := s.credit.Release(ctx, tx, bookingID); err != nil {
				return err
			}
		}
		if err := s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventBookingCancelled, ExternalRef: pspRefundID,
		}); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionCancelBooking, bookingID, nil); err != nil {
			return err
		}
		_ = platformRetained // retained amount is implicit: totalPrice - instructorPayout stays uncredited
		return s.outboxPub.Write(ctx, tx, s.outboxEvent(domain.OutboxBookingCancelled, booking))
	})
	if err != nil {
		return fmt.Errorf("cancelling booking: %w", err)
	}
	return nil
}

func (s *BookingService) classifyCancellation(hoursUntil float64, payment *domain.BookingPayment, totalPrice int64) (domain.SettlementOutcome, int64, int64) {
	switch {
	case hoursUntil >= 24:
		return domain.OutcomeStudentCancelGT24NoCharge, 0, 0
	case hoursUntil < 12:
		payout, retained := s.pricing.LateCancellationSplit(totalPrice)
		return domain.OutcomeStudentCancelLT12Split5050, payout, retained
	default:
		return domain.OutcomeStudentCancelGT24NoCharge, 0, 0
	}
}

// ConfirmBookingPayment confirms a PENDING booking's outstanding PSP
// authorization and moves the booking to CONFIRMED. Used for the
// card-auth flows that require explicit customer confirmation (3DS and
// similar) before the hold is considered valid.
func (s *BookingService) ConfirmBookingPayment(ctx context.Context, actor domain.Actor, bookingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.confirm_payment")
	defer span.End()

	guard, err := s.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		return err
	}
	defer guard.Release(ctx)

	var booking *domain.Booking
	var payment *domain.BookingPayment
	if err := s.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending {
			return domain.ErrNotConfirmable
		}
		p, err := s.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.PaymentIntentID == "" {
			return domain.ErrNotConfirmable
		}
		booking, payment = b, p
		return nil
	}); err != nil {
		return err
	}

	idemKey := idempotency.AuthKey(bookingID, payment.AuthFailureCount)
	result, err := s.psp.ConfirmAuth(ctx, idemKey, payment.PaymentIntentID)
	if err != nil {
		return domain.NewPSPError(s.psp.Classify(err), err)
	}

	now := s.clock.Now()
	booking.Status = domain.BookingStatusConfirmed
	booking.ConfirmedAt = &now
	payment.PaymentStatus = domain.PaymentStatusAuthorized
	payment.PaymentIntentID = result.PSPIntentID

	err = s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		if err := s.bookings.Update(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventAuthSucceeded, ExternalRef: result.PSPIntentID,
		}); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionConfirmPayment, bookingID, nil); err != nil {
			return err
		}
		return s.outboxPub.Write(ctx, tx, s.outboxEvent(domain.OutboxBookingConfirmed, booking))
	})
	if err != nil {
		return fmt.Errorf("confirming booking payment: %w", err)
	}
	return nil
}

// RescheduleBooking moves a booking to a new lesson window by cancelling
// the original and creating a replacement, applying the locked-funds
// carve-out of SPEC_FULL §4.3.e: a reschedule initiated 12-24h before the
// original lesson, while its payment is still held (AUTHORIZED or
// SCHEDULED), locks the original hold instead of settling or releasing
// it, and the new booking carries hasLockedFunds=true back to the
// original. Outside that window the original is settled exactly as a
// plain cancellation would settle it.
func (s *BookingService) RescheduleBooking(ctx context.Context, actor domain.Actor, bookingID string, in CreateBookingInput) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.reschedule")
	defer span.End()

	guard, err := s.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		return nil, err
	}
	defer guard.Release(ctx)

	var original *domain.Booking
	var payment *domain.BookingPayment
	if err := s.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if _, err := statemachine.TransitionBooking(b.Status, statemachine.BookingEventReschedule); err != nil {
			return domain.ErrNotReschedulable
		}
		p, err := s.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		original, payment = b, p
		return nil
	}); err != nil {
		return nil, err
	}

	hoursUntil := s.clock.HoursUntil(original.BookingStartUTC)
	lockWindow := hoursUntil >= 12 && hoursUntil < 24 &&
		(payment.PaymentStatus == domain.PaymentStatusAuthorized || payment.PaymentStatus == domain.PaymentStatusScheduled)

	in.RescheduledFromBookingID = &bookingID
	in.HasLockedFunds = lockWindow
	child, err := s.CreateBooking(ctx, actor, in)
	if err != nil {
		return nil, fmt.Errorf("creating rescheduled booking: %w", err)
	}

	if lockWindow {
		now := s.clock.Now()
		original.Status = domain.BookingStatusCancelled
		original.CancelledAt = &now
		original.CancellationReason = "rescheduled"
		original.CancelledByRole = domain.CancelledByStudent
		if actor.HasRole(domain.RoleInstructor) {
			original.CancelledByRole = domain.CancelledByInstructor
		}
		payment.PaymentStatus = domain.PaymentStatusLocked

		err = s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
			if err := s.bookings.Update(ctx, tx, original); err != nil {
				return err
			}
			if err := s.payments.Update(ctx, tx, payment); err != nil {
				return err
			}
			if err := s.lockRecords.Insert(ctx, tx, &domain.LockRecord{
				BookingID: bookingID, ChildBookingID: child.ID, LockedAmountCents: original.TotalPrice,
			}); err != nil {
				return err
			}
			if err := s.ledger.Append(ctx, tx, domain.PaymentEvent{
				BookingID: bookingID, EventType: domain.EventLockedFundsCreated, ExternalRef: child.ID,
			}); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, actor, domain.AuditActionRescheduleBooking, bookingID, nil); err != nil {
				return err
			}
			return s.outboxPub.Write(ctx, tx, s.outboxEvent(domain.OutboxBookingCancelled, original))
		})
		if err != nil {
			return nil, fmt.Errorf("locking original booking's funds: %w", err)
		}
		return child, nil
	}

	by := domain.CancelledByStudent
	if actor.HasRole(domain.RoleInstructor) {
		by = domain.CancelledByInstructor
	}
	if err := s.settleCancellation(ctx, actor, original, payment, "rescheduled", by); err != nil {
		return nil, fmt.Errorf("settling original booking on reschedule: %w", err)
	}
	return child, nil
}

// CompleteBooking marks a CONFIRMED booking COMPLETED ahead of the
// worker's own auto-complete sweep (SPEC_FULL §4.4.3), for callers that
// want to settle a lesson immediately instead of waiting for the post-
// lesson capture job. The capture itself still happens on the worker's
// next pass against the COMPLETED booking.
func (s *BookingService) CompleteBooking(ctx context.Context, actor domain.Actor, bookingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.complete")
	defer span.End()

	guard, err := s.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		return err
	}
	defer guard.Release(ctx)

	return s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if _, err := statemachine.TransitionBooking(b.Status, statemachine.BookingEventComplete); err != nil {
			return domain.ErrNotCompletable
		}
		now := s.clock.Now()
		b.Status = domain.BookingStatusCompleted
		b.CompletedAt = &now
		if err := s.bookings.Update(ctx, tx, b); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionCompleteBooking, bookingID, nil); err != nil {
			return err
		}
		if err := s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventAutoCompleted,
		}); err != nil {
			return err
		}
		return s.outboxPub.Write(ctx, tx, s.outboxEvent(domain.OutboxBookingCompleted, b))
	})
}

// ResolveNoShow lets an admin resolve a disputed no-show report directly,
// outside the worker's undisputed-only auto-resolution sweep. Settlement
// follows the same student/instructor outcome split the worker applies.
func (s *BookingService) ResolveNoShow(ctx context.Context, actor domain.Actor, bookingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.resolve_no_show")
	defer span.End()

	guard, err := s.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		return err
	}
	defer guard.Release(ctx)

	var booking *domain.Booking
	var payment *domain.BookingPayment
	var report *domain.NoShowReport
	if err := s.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		p, err := s.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		r, err := s.noShows.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if r == nil {
			return domain.ErrBookingNotFound
		}
		if r.NoShowResolvedAt != nil {
			return domain.ErrAlreadyResolved
		}
		booking, payment, report = b, p, r
		return nil
	}); err != nil {
		return err
	}

	outcome := domain.OutcomeInstructorNoShow
	if report.NoShowType == domain.NoShowStudent {
		outcome = domain.OutcomeStudentNoShow
	}
	var pspRef string
	if report.NoShowType == domain.NoShowStudent && payment.PaymentStatus == domain.PaymentStatusAuthorized {
		res, err := s.psp.CaptureAuth(ctx, idempotency.CaptureKey(bookingID), payment.PaymentIntentID, booking.TotalPrice)
		if err != nil {
			return domain.NewPSPError(s.psp.Classify(err), err)
		}
		pspRef = res.PSPChargeID
	}

	now := s.clock.Now()
	report.NoShowResolvedAt = &now
	booking.Status = domain.BookingStatusNoShow
	payment.PaymentStatus = domain.PaymentStatusSettled
	payment.SettlementOutcome = outcome

	err = s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		if err := s.noShows.Update(ctx, tx, report); err != nil {
			return err
		}
		if err := s.bookings.Update(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionResolveNoShow, bookingID, nil); err != nil {
			return err
		}
		if err := s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventNoShowResolved, ExternalRef: pspRef,
		}); err != nil {
			return err
		}
		return s.outboxPub.Write(ctx, tx, s.outboxEvent(domain.OutboxBookingNoShow, booking))
	})
	if err != nil {
		return fmt.Errorf("resolving no-show: %w", err)
	}
	return nil
}

// RetryAuthorization lets a caller (support tooling, the student retrying
// after updating their card) force an immediate authorization attempt
// instead of waiting for the worker's own backoff schedule.
func (s *BookingService) RetryAuthorization(ctx context.Context, actor domain.Actor, bookingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.retry_authorization")
	defer span.End()

	guard, err := s.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		return err
	}
	defer guard.Release(ctx)

	var booking *domain.Booking
	var payment *domain.BookingPayment
	if err := s.tx.RunRead(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		p, err := s.payments.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if p.PaymentStatus != domain.PaymentStatusMethodRequired {
			return domain.ErrInvalidTransition
		}
		booking, payment = b, p
		return nil
	}); err != nil {
		return err
	}

	attempt := payment.AuthFailureCount + 1
	idemKey := idempotency.AuthKey(bookingID, attempt)
	result, authErr := s.psp.CreateOrRetryAuth(ctx, idemKey, payment.PaymentMethodID, booking.TotalPrice)

	commitErr := s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		p, gerr := s.payments.GetForUpdate(ctx, tx, bookingID)
		if gerr != nil {
			return gerr
		}
		if authErr != nil {
			p.AuthFailureCount++
			if uerr := s.payments.Update(ctx, tx, p); uerr != nil {
				return uerr
			}
			return s.ledger.Append(ctx, tx, domain.PaymentEvent{
				BookingID: bookingID, EventType: domain.EventAuthRetryFailed,
			})
		}
		p.PaymentStatus = domain.PaymentStatusAuthorized
		p.PaymentIntentID = result.PSPIntentID
		if uerr := s.payments.Update(ctx, tx, p); uerr != nil {
			return uerr
		}
		if aerr := s.audit.Record(ctx, tx, actor, domain.AuditActionRetryAuthorization, bookingID, nil); aerr != nil {
			return aerr
		}
		return s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventAuthRetrySucceeded, ExternalRef: result.PSPIntentID,
		})
	})
	if commitErr != nil {
		return fmt.Errorf("retrying authorization: %w", commitErr)
	}
	if authErr != nil {
		return domain.NewPSPError(s.psp.Classify(authErr), authErr)
	}
	return nil
}

// ReportNoShow records a no-show allegation against an active booking,
// opening the dispute window enforced by resolveUndisputedNoShows.
func (s *BookingService) ReportNoShow(ctx context.Context, actor domain.Actor, bookingID string, noShowType domain.NoShowType) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.report_no_show")
	defer span.End()

	return s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		report := &domain.NoShowReport{
			BookingID: bookingID, NoShowReportedAt: s.clock.Now(), NoShowType: noShowType,
		}
		if err := s.noShows.Insert(ctx, tx, report); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionMarkNoShow, bookingID, nil); err != nil {
			return err
		}
		return s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventNoShowReported,
		})
	})
}

// DisputeNoShow marks an open no-show report as disputed, pulling it out
// of the auto-resolution candidate set.
func (s *BookingService) DisputeNoShow(ctx context.Context, actor domain.Actor, bookingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.dispute_no_show")
	defer span.End()

	return s.tx.CommitWithOutbox(ctx, func(tx pgx.Tx) error {
		report, err := s.noShows.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if report == nil {
			return domain.ErrBookingNotFound
		}
		if report.NoShowResolvedAt != nil {
			return domain.ErrAlreadyResolved
		}
		report.NoShowDisputed = true
		if err := s.noShows.Update(ctx, tx, report); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, actor, domain.AuditActionDisputeNoShow, bookingID, nil); err != nil {
			return err
		}
		return s.ledger.Append(ctx, tx, domain.PaymentEvent{
			BookingID: bookingID, EventType: domain.EventNoShowDisputed,
		})
	})
}

func (s *BookingService) outboxEvent(t domain.OutboxEventType, b *domain.Booking) domain.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{
		"booking_id":    b.ID,
		"student_id":    b.StudentID,
		"instructor_id": b.InstructorID,
		"status":        b.Status,
	})
	return domain.OutboxEvent{
		EventID: uuid.NewString(), EventType: t, BookingID: b.ID,
		StudentID: b.StudentID, InstructorID: b.InstructorID,
		OccurredAt: s.clock.Now(), Payload: payload,
	}
}
