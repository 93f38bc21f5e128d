package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

const transferColumns = `
	booking_id, stripe_transfer_id, payout_transfer_id, payout_transfer_failed_at,
	payout_transfer_error, payout_transfer_retry_count, refund_id, refund_retry_count,
	payout_schedule_checked_at
`

type TransferRepository struct {
	pool *pgxpool.Pool
}

func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	if err := row.Scan(
		&t.BookingID, &t.StripeTransferID, &t.PayoutTransferID, &t.PayoutTransferFailedAt,
		&t.PayoutTransferError, &t.PayoutTransferRetryCount, &t.RefundID, &t.RefundRetryCount,
		&t.PayoutScheduleCheckedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransferRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (*domain.Transfer, error) {
	row := tx.QueryRow(ctx, "SELECT "+transferColumns+" FROM transfers WHERE booking_id = $1 FOR UPDATE", bookingID)
	t, err := scanTransfer(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &domain.Transfer{BookingID: bookingID}, nil
		}
		return nil, fmt.Errorf("fetching transfer for update: %w", err)
	}
	return t, nil
}

func (r *TransferRepository) Upsert(ctx context.Context, tx pgx.Tx, t *domain.Transfer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transfers (
			booking_id, stripe_transfer_id, payout_transfer_id, payout_transfer_failed_at,
			payout_transfer_error, payout_transfer_retry_count, refund_id, refund_retry_count,
			payout_schedule_checked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (booking_id) DO UPDATE SET
			stripe_transfer_id = EXCLUDED.stripe_transfer_id,
			payout_transfer_id = EXCLUDED.payout_transfer_id,
			payout_transfer_failed_at = EXCLUDED.payout_transfer_failed_at,
			payout_transfer_error = EXCLUDED.payout_transfer_error,
			payout_transfer_retry_count = EXCLUDED.payout_transfer_retry_count,
			refund_id = EXCLUDED.refund_id,
			refund_retry_count = EXCLUDED.refund_retry_count,
			payout_schedule_checked_at = EXCLUDED.payout_schedule_checked_at
	`,
		t.BookingID, t.StripeTransferID, t.PayoutTransferID, t.PayoutTransferFailedAt,
		t.PayoutTransferError, t.PayoutTransferRetryCount, t.RefundID, t.RefundRetryCount,
		t.PayoutScheduleCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting transfer: %w", err)
	}
	return nil
}

// DueForPayoutAudit returns transfers whose schedule hasn't been
// checked against the PSP since cutoff, the candidate set for
// auditPayoutSchedules.
func (r *TransferRepository) DueForPayoutAudit(ctx context.Context, cutoff interface{}, limit int) ([]domain.Transfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE payout_transfer_id != '' AND (payout_schedule_checked_at IS NULL OR payout_schedule_checked_at <= $1)
		ORDER BY booking_id ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transfers due for payout audit: %w", err)
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
