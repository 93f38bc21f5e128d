package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolationCode = "23505"

// Record is one row in the idempotency_keys table: a claim on a PSP
// idempotency key plus whatever response was last recorded against it.
type Record struct {
	Key          string
	BookingID    string
	Operation    string
	ResponseBody []byte
	CreatedAt    time.Time
}

// ErrAlreadyClaimed is returned by Claim when another Phase 2 attempt
// already owns the key; the caller should look the existing record up
// via Get instead of calling the PSP again.
var ErrAlreadyClaimed = errors.New("idempotency: key already claimed")

// Store persists idempotency claims in Postgres so Phase 3 can write the
// claim's resolution in the same transaction as the booking/payment row
// update it guards.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Claim inserts a new, unresolved record for key. Call this immediately
// before the Phase 2 PSP call. A duplicate call (crash-and-retry before
// Phase 3 ran) returns ErrAlreadyClaimed.
func (s *Store) Claim(ctx context.Context, key, bookingID, operation string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, booking_id, operation, created_at)
		VALUES ($1, $2, $3, now())
	`, key, bookingID, operation)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("claiming idempotency key: %w", err)
	}
	return nil
}

// Resolve records the PSP response body for key as part of the caller's
// Phase 3 transaction (tx is the same transaction used to update the
// booking/payment row).
func (s *Store) Resolve(ctx context.Context, tx pgx.Tx, key string, responseBody []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE idempotency_keys SET response_body = $2 WHERE key = $1
	`, key, responseBody)
	if err != nil {
		return fmt.Errorf("resolving idempotency key: %w", err)
	}
	return nil
}

// Get fetches the existing record for key, used when Claim returns
// ErrAlreadyClaimed to recover whatever the earlier attempt already
// learned from the PSP.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT key, booking_id, operation, response_body, created_at
		FROM idempotency_keys WHERE key = $1
	`, key)

	var r Record
	if err := row.Scan(&r.Key, &r.BookingID, &r.Operation, &r.ResponseBody, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("fetching idempotency record: %w", err)
	}
	return &r, nil
}
