// Package credit manages student platform-credit reservations applied
// against a booking's price (SPEC_FULL Open Question 2 resolution): a
// reserved credit is either released back to the student's spendable
// balance, with the releasing call site recording the amount in
// Booking.StudentCreditAmount, or forfeited to the platform, which
// records nothing on the booking.
package credit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Service struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Reserve holds amountCents of student credit against bookingID,
// created by BookingService.CreateBooking when the caller applies
// credit to a new booking.
func (s *Service) Reserve(ctx context.Context, tx pgx.Tx, studentID, bookingID string, amountCents int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_reservations (booking_id, student_id, amount_cents, status, created_at)
		VALUES ($1, $2, $3, 'reserved', now())
		ON CONFLICT (booking_id) DO NOTHING
	`, bookingID, studentID, amountCents)
	if err != nil {
		return fmt.Errorf("reserving student credit: %w", err)
	}
	return nil
}

// Release returns a reservation to the student's spendable balance,
// with the caller setting Booking.StudentCreditAmount to the released
// amount.
func (s *Service) Release(ctx context.Context, tx pgx.Tx, bookingID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE credit_reservations SET status = 'released', resolved_at = now()
		WHERE booking_id = $1 AND status = 'reserved'
	`, bookingID)
	if err != nil {
		return fmt.Errorf("releasing student credit reservation: %w", err)
	}
	return nil
}

// Forfeit marks a reservation as lost to the platform instead of
// returned, used by the worker's capture paths once the lesson's
// payment is settled as completed.
func (s *Service) Forfeit(ctx context.Context, tx pgx.Tx, bookingID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE credit_reservations SET status = 'forfeited', resolved_at = now()
		WHERE booking_id = $1 AND status = 'reserved'
	`, bookingID)
	if err != nil {
		return fmt.Errorf("forfeiting student credit reservation: %w", err)
	}
	return nil
}
