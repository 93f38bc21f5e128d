package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

const noShowColumns = `
	booking_id, no_show_reported_at, no_show_type, no_show_disputed,
	no_show_resolved_at, no_show_resolution
`

type NoShowRepository struct {
	pool *pgxpool.Pool
}

func NewNoShowRepository(pool *pgxpool.Pool) *NoShowRepository {
	return &NoShowRepository{pool: pool}
}

func scanNoShow(row pgx.Row) (*domain.NoShowReport, error) {
	var n domain.NoShowReport
	if err := row.Scan(
		&n.BookingID, &n.NoShowReportedAt, &n.NoShowType, &n.NoShowDisputed,
		&n.NoShowResolvedAt, &n.NoShowResolution,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NoShowRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (*domain.NoShowReport, error) {
	row := tx.QueryRow(ctx, "SELECT "+noShowColumns+" FROM no_show_reports WHERE booking_id = $1 FOR UPDATE", bookingID)
	n, err := scanNoShow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching no-show report for update: %w", err)
	}
	return n, nil
}

func (r *NoShowRepository) Insert(ctx context.Context, tx pgx.Tx, n *domain.NoShowReport) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO no_show_reports (booking_id, no_show_reported_at, no_show_type, no_show_disputed)
		VALUES ($1, $2, $3, $4)
	`, n.BookingID, n.NoShowReportedAt, n.NoShowType, n.NoShowDisputed)
	if err != nil {
		return fmt.Errorf("inserting no-show report: %w", err)
	}
	return nil
}

func (r *NoShowRepository) Update(ctx context.Context, tx pgx.Tx, n *domain.NoShowReport) error {
	_, err := tx.Exec(ctx, `
		UPDATE no_show_reports SET
			no_show_disputed = $2, no_show_resolved_at = $3, no_show_resolution = $4
		WHERE booking_id = $1
	`, n.BookingID, n.NoShowDisputed, n.NoShowResolvedAt, n.NoShowResolution)
	if err != nil {
		return fmt.Errorf("updating no-show report: %w", err)
	}
	return nil
}

// UndisputedOlderThan returns no-show reports still undisputed after
// the dispute window closed, the candidate set for
// resolveUndisputedNoShows.
func (r *NoShowRepository) UndisputedOlderThan(ctx context.Context, cutoff interface{}, limit int) ([]domain.NoShowReport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+noShowColumns+` FROM no_show_reports
		WHERE no_show_disputed = false AND no_show_resolved_at IS NULL AND no_show_reported_at <= $1
		ORDER BY no_show_reported_at ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying undisputed no-shows: %w", err)
	}
	defer rows.Close()

	var out []domain.NoShowReport
	for rows.Next() {
		n, err := scanNoShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning no-show report: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

const lockColumns = `
	booking_id, child_booking_id, locked_amount_cents, lock_resolved_at, lock_resolution
`

type LockRecordRepository struct {
	pool *pgxpool.Pool
}

func NewLockRecordRepository(pool *pgxpool.Pool) *LockRecordRepository {
	return &LockRecordRepository{pool: pool}
}

func scanLockRecord(row pgx.Row) (*domain.LockRecord, error) {
	var l domain.LockRecord
	if err := row.Scan(
		&l.BookingID, &l.ChildBookingID, &l.LockedAmountCents, &l.LockResolvedAt, &l.LockResolution,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LockRecordRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (*domain.LockRecord, error) {
	row := tx.QueryRow(ctx, "SELECT "+lockColumns+" FROM lock_records WHERE booking_id = $1 FOR UPDATE", bookingID)
	l, err := scanLockRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotLocked
		}
		return nil, fmt.Errorf("fetching lock record for update: %w", err)
	}
	return l, nil
}

func (r *LockRecordRepository) Insert(ctx context.Context, tx pgx.Tx, l *domain.LockRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lock_records (booking_id, child_booking_id, locked_amount_cents)
		VALUES ($1, $2, $3)
	`, l.BookingID, l.ChildBookingID, l.LockedAmountCents)
	if err != nil {
		return fmt.Errorf("inserting lock record: %w", err)
	}
	return nil
}

func (r *LockRecordRepository) Resolve(ctx context.Context, tx pgx.Tx, bookingID string, resolution domain.LockResolution) error {
	_, err := tx.Exec(ctx, `
		UPDATE lock_records SET lock_resolved_at = now(), lock_resolution = $2 WHERE booking_id = $1
	`, bookingID, resolution)
	if err != nil {
		return fmt.Errorf("resolving lock record: %w", err)
	}
	return nil
}

// Unresolved returns lock records that are still open, whatever their
// child booking's state, the candidate set for LockedFundsResolver,
// which checks the child's status itself.
func (r *LockRecordRepository) Unresolved(ctx context.Context, limit int) ([]domain.LockRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+lockColumns+` FROM lock_records
		WHERE lock_resolved_at IS NULL
		ORDER BY booking_id ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unresolved lock records: %w", err)
	}
	defer rows.Close()

	var out []domain.LockRecord
	for rows.Next() {
		l, err := scanLockRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lock record: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
