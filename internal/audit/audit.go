// Package audit records actor-initiated mutations for after-the-fact
// investigation, separate from the EventLedger (which records
// system/PSP outcomes). Grounded on the same Postgres-write-inside-tx
// discipline as internal/ledger.
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

type Log struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Log {
	return &Log{pool: pool}
}

// Record writes an audit entry as part of tx, keyed by actor and action.
func (l *Log) Record(ctx context.Context, tx pgx.Tx, actor domain.Actor, action domain.AuditAction, bookingID string, detail []byte) error {
	actorID := actor.UserID()
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_is_system, action, booking_id, detail, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now())
	`, actorID, actor.IsSystem(), action, bookingID, detail)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// ForBooking returns the audit trail for bookingID, most recent first.
func (l *Log) ForBooking(ctx context.Context, bookingID string) ([]domain.AuditEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, actor_id, actor_is_system, action, booking_id, detail, created_at
		FROM audit_log WHERE booking_id = $1
		ORDER BY created_at DESC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorIsSystem, &e.Action, &e.BookingID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
