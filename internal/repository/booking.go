// Package repository holds the Postgres-backed persistence layer,
// grounded on postgres_payment_repository.go's column-list/scan/
// nullString/unique-violation conventions, generalized across every
// entity in the data model instead of payments alone.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

const bookingColumns = `
	id, student_id, instructor_id, booking_date, start_time, end_time,
	duration_minutes, lesson_timezone, booking_start_utc, booking_end_utc,
	service_name, hourly_rate, total_price, location_type, address,
	latitude, longitude, status, created_at, confirmed_at, completed_at,
	cancelled_at, rescheduled_from_booking_id, has_locked_funds,
	cancellation_reason, cancelled_by_role, student_credit_amount,
	refunded_to_card_amount
`

// BookingRepository persists Booking rows and exposes the
// SELECT...FOR UPDATE read every Phase 1 step needs.
type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(
		&b.ID, &b.StudentID, &b.InstructorID, &b.BookingDate, &b.StartTime, &b.EndTime,
		&b.DurationMinutes, &b.LessonTimezone, &b.BookingStartUTC, &b.BookingEndUTC,
		&b.ServiceName, &b.HourlyRate, &b.TotalPrice, &b.LocationType, &b.Address,
		&b.Latitude, &b.Longitude, &b.Status, &b.CreatedAt, &b.ConfirmedAt, &b.CompletedAt,
		&b.CancelledAt, &b.RescheduledFromBookingID, &b.HasLockedFunds,
		&b.CancellationReason, &b.CancelledByRole, &b.StudentCreditAmount,
		&b.RefundedToCardAmount,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// Get fetches a booking by id outside any transaction, used for
// read-only lookups (availability checks, API responses).
func (r *BookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1", id)
	b, err := scanBooking(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("fetching booking: %w", err)
	}
	return b, nil
}

// GetForUpdate locks the booking row for the duration of tx, the read
// half of every three-phase operation's Phase 1.
func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Booking, error) {
	row := tx.QueryRow(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1 FOR UPDATE", id)
	b, err := scanBooking(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("fetching booking for update: %w", err)
	}
	return b, nil
}

// Insert creates a new booking row as part of tx.
func (r *BookingRepository) Insert(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (
			id, student_id, instructor_id, booking_date, start_time, end_time,
			duration_minutes, lesson_timezone, booking_start_utc, booking_end_utc,
			service_name, hourly_rate, total_price, location_type, address,
			latitude, longitude, status, created_at, rescheduled_from_booking_id,
			has_locked_funds
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		b.ID, b.StudentID, b.InstructorID, b.BookingDate, b.StartTime, b.EndTime,
		b.DurationMinutes, b.LessonTimezone, b.BookingStartUTC, b.BookingEndUTC,
		b.ServiceName, b.HourlyRate, b.TotalPrice, b.LocationType, b.Address,
		b.Latitude, b.Longitude, b.Status, b.CreatedAt, b.RescheduledFromBookingID,
		b.HasLockedFunds,
	)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	return nil
}

// Update writes back the mutable fields of b as part of tx, used by
// Phase 3 to apply the booking's terminal state transition.
func (r *BookingRepository) Update(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	cmd, err := tx.Exec(ctx, `
		UPDATE bookings SET
			status = $2, confirmed_at = $3, completed_at = $4, cancelled_at = $5,
			has_locked_funds = $6, cancellation_reason = $7, cancelled_by_role = $8,
			student_credit_amount = $9, refunded_to_card_amount = $10
		WHERE id = $1
	`,
		b.ID, b.Status, b.ConfirmedAt, b.CompletedAt, b.CancelledAt,
		b.HasLockedFunds, b.CancellationReason, b.CancelledByRole,
		b.StudentCreditAmount, b.RefundedToCardAmount,
	)
	if err != nil {
		return fmt.Errorf("updating booking: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// OverlappingForInstructor returns active bookings for instructorID that
// intersect [startUTC, endUTC), used by the booking-creation conflict
// check (scope: instructor).
func (r *BookingRepository) OverlappingForInstructor(ctx context.Context, instructorID string, startUTC, endUTC interface{}) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE instructor_id = $1
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		  AND booking_start_utc < $3 AND booking_end_utc > $2
	`, instructorID, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("querying overlapping bookings: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning overlapping booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// OverlappingForStudent is OverlappingForInstructor's mirror for the
// student side of invariant 3 (§8): a student may not hold two active
// bookings with intersecting lesson windows either.
func (r *BookingRepository) OverlappingForStudent(ctx context.Context, studentID string, startUTC, endUTC interface{}) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE student_id = $1
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		  AND booking_start_utc < $3 AND booking_end_utc > $2
	`, studentID, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("querying overlapping bookings: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning overlapping booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// DueForAutoComplete returns CONFIRMED bookings whose lesson ended at or
// before cutoff, the candidate set for captureCompletedLessons' auto-
// complete path (SPEC_FULL §4.4.3, candidate set 2).
func (r *BookingRepository) DueForAutoComplete(ctx context.Context, cutoff interface{}, limit int) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = $1 AND booking_end_utc <= $2
		ORDER BY booking_end_utc ASC LIMIT $3
	`, domain.BookingStatusConfirmed, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying auto-complete candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning auto-complete candidate: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
