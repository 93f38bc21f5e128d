package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

const paymentColumns = `
	booking_id, payment_status, payment_intent_id, payment_method_id,
	auth_scheduled_for, auth_attempted_at, auth_failure_count, auth_last_error,
	last_auth_attempt_reason, auth_failure_first_email_sent_at,
	auth_failure_t13_warning_sent_at, capture_first_failed_at, capture_failed_at,
	capture_retry_count, capture_error, capture_escalated_at, credits_reserved_cents,
	settlement_outcome, instructor_payout_amount, manual_transfer_id
`

type BookingPaymentRepository struct {
	pool *pgxpool.Pool
}

func NewBookingPaymentRepository(pool *pgxpool.Pool) *BookingPaymentRepository {
	return &BookingPaymentRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.BookingPayment, error) {
	var p domain.BookingPayment
	if err := row.Scan(
		&p.BookingID, &p.PaymentStatus, &p.PaymentIntentID, &p.PaymentMethodID,
		&p.AuthScheduledFor, &p.AuthAttemptedAt, &p.AuthFailureCount, &p.AuthLastError,
		&p.LastAuthAttemptReason, &p.AuthFailureFirstEmailSentAt,
		&p.AuthFailureT13WarningSentAt, &p.CaptureFirstFailedAt, &p.CaptureFailedAt,
		&p.CaptureRetryCount, &p.CaptureError, &p.CaptureEscalatedAt, &p.CreditsReservedCents,
		&p.SettlementOutcome, &p.InstructorPayoutAmount, &p.ManualTransferID,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BookingPaymentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (*domain.BookingPayment, error) {
	row := tx.QueryRow(ctx, "SELECT "+paymentColumns+" FROM booking_payments WHERE booking_id = $1 FOR UPDATE", bookingID)
	p, err := scanPayment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("fetching payment for update: %w", err)
	}
	return p, nil
}

func (r *BookingPaymentRepository) Get(ctx context.Context, bookingID string) (*domain.BookingPayment, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+paymentColumns+" FROM booking_payments WHERE booking_id = $1", bookingID)
	p, err := scanPayment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("fetching payment: %w", err)
	}
	return p, nil
}

func (r *BookingPaymentRepository) Insert(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_payments (booking_id, payment_status, auth_scheduled_for)
		VALUES ($1, $2, $3)
	`, p.BookingID, p.PaymentStatus, p.AuthScheduledFor)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func (r *BookingPaymentRepository) Update(ctx context.Context, tx pgx.Tx, p *domain.BookingPayment) error {
	cmd, err := tx.Exec(ctx, `
		UPDATE booking_payments SET
			payment_status = $2, payment_intent_id = $3, payment_method_id = $4,
			auth_attempted_at = $5, auth_failure_count = $6, auth_last_error = $7,
			last_auth_attempt_reason = $8, auth_failure_first_email_sent_at = $9,
			auth_failure_t13_warning_sent_at = $10, capture_first_failed_at = $11,
			capture_failed_at = $12, capture_retry_count = $13, capture_error = $14,
			capture_escalated_at = $15, credits_reserved_cents = $16,
			settlement_outcome = $17, instructor_payout_amount = $18, manual_transfer_id = $19
		WHERE booking_id = $1
	`,
		p.BookingID, p.PaymentStatus, p.PaymentIntentID, p.PaymentMethodID,
		p.AuthAttemptedAt, p.AuthFailureCount, p.AuthLastError,
		p.LastAuthAttemptReason, p.AuthFailureFirstEmailSentAt,
		p.AuthFailureT13WarningSentAt, p.CaptureFirstFailedAt, p.CaptureFailedAt,
		p.CaptureRetryCount, p.CaptureError, p.CaptureEscalatedAt, p.CreditsReservedCents,
		p.SettlementOutcome, p.InstructorPayoutAmount, p.ManualTransferID,
	)
	if err != nil {
		return fmt.Errorf("updating payment: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// DueForAuthorization returns payments scheduled for authorization at or
// before now, the candidate set for the processScheduledAuthorizations
// job.
func (r *BookingPaymentRepository) DueForAuthorization(ctx context.Context, before interface{}, limit int) ([]domain.BookingPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE payment_status = $1 AND auth_scheduled_for <= $2
		ORDER BY auth_scheduled_for ASC LIMIT $3
	`, domain.PaymentStatusScheduled, before, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due authorizations: %w", err)
	}
	defer rows.Close()

	var out []domain.BookingPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DueForCapture returns AUTHORIZED payments whose booking has already
// reached COMPLETED (either by an instructor's manual complete or the
// auto-complete path), the candidate set for captureCompletedLessons'
// candidate set 1 (SPEC_FULL §4.4.3).
func (r *BookingPaymentRepository) DueForCapture(ctx context.Context, now interface{}, limit int) ([]domain.BookingPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE payment_status = $1 AND booking_id IN (
			SELECT id FROM bookings WHERE status = $2
		)
		ORDER BY auth_scheduled_for ASC LIMIT $3
	`, domain.PaymentStatusAuthorized, domain.BookingStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due captures: %w", err)
	}
	defer rows.Close()

	var out []domain.BookingPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due-capture payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MethodRequired returns every payment stuck in PAYMENT_METHOD_REQUIRED,
// the shared candidate set for retryFailedAuthorizations and
// checkImmediateAuthTimeout, each of which further classifies rows by
// hoursUntilStart / AuthAttemptedAt in Go rather than in SQL.
func (r *BookingPaymentRepository) MethodRequired(ctx context.Context, limit int) ([]domain.BookingPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE payment_status = $1
		ORDER BY auth_attempted_at ASC NULLS FIRST LIMIT $2
	`, domain.PaymentStatusMethodRequired, limit)
	if err != nil {
		return nil, fmt.Errorf("querying method-required payments: %w", err)
	}
	defer rows.Close()

	var out []domain.BookingPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning method-required payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FailedCaptures returns payments whose last capture attempt failed and
// have not yet been escalated, the candidate set for
// retryFailedCaptures.
func (r *BookingPaymentRepository) FailedCaptures(ctx context.Context, limit int) ([]domain.BookingPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM booking_payments
		WHERE capture_failed_at IS NOT NULL AND capture_escalated_at IS NULL
		ORDER BY capture_failed_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying failed captures: %w", err)
	}
	defer rows.Close()

	var out []domain.BookingPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning failed-capture payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
