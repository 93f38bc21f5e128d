// Package ledger implements the append-only payment event log, grounded
// on the unique-violation-as-idempotent-success pattern observed in
// postgres_payment_repository.go (pgUniqueViolationCode detection), here
// enforcing idempotency on (booking_id, event_type, external_ref).
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

const pgUniqueViolationCode = "23505"

// EventLedger appends payment lifecycle events within the caller's
// Phase 3 transaction.
type EventLedger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *EventLedger {
	return &EventLedger{pool: pool}
}

// Append writes ev as part of tx. A duplicate (bookingID, eventType,
// externalRef) is treated as success, since it means a previous attempt
// at this same Phase 3 step already recorded it — the caller should
// proceed rather than error.
func (l *EventLedger) Append(ctx context.Context, tx pgx.Tx, ev domain.PaymentEvent) error {
	externalRef := ev.ExternalRef
	if externalRef == "" {
		externalRef = "none"
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO payment_events (id, booking_id, event_type, external_ref, event_data, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, now())
		ON CONFLICT (booking_id, event_type, external_ref) DO NOTHING
	`, ev.BookingID, ev.EventType, externalRef, ev.EventData)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return nil
		}
		return fmt.Errorf("appending ledger event: %w", err)
	}
	return nil
}

// ExistsForBooking reports whether an event of eventType was already
// recorded for bookingID, used by workers to avoid re-sending a warning
// email twice within the same retry window.
func (l *EventLedger) ExistsForBooking(ctx context.Context, bookingID string, eventType domain.EventType) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM payment_events WHERE booking_id = $1 AND event_type = $2)
	`, bookingID, eventType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking ledger event existence: %w", err)
	}
	return exists, nil
}

// Latest returns the most recent event recorded for bookingID, or
// pgx.ErrNoRows if none exist.
func (l *EventLedger) Latest(ctx context.Context, bookingID string) (*domain.PaymentEvent, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT id, booking_id, event_type, external_ref, event_data, created_at
		FROM payment_events WHERE booking_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, bookingID)

	var ev domain.PaymentEvent
	var raw []byte
	if err := row.Scan(&ev.ID, &ev.BookingID, &ev.EventType, &ev.ExternalRef, &raw, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("fetching latest ledger event: %w", err)
	}
	ev.EventData = json.RawMessage(raw)
	return &ev, nil
}
