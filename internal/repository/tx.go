package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepository generalizes the source's
// TransactionalBookingRepository.MarkAsExpiredWithOutbox into the one
// seam every Phase 3 write goes through: open a short transaction, let
// the caller mutate whatever rows it needs (booking, payment, ledger,
// audit, outbox) inside it, then commit once.
type TxRepository struct {
	pool *pgxpool.Pool
}

func NewTxRepository(pool *pgxpool.Pool) *TxRepository {
	return &TxRepository{pool: pool}
}

// CommitWithOutbox runs fn inside a single transaction and commits it.
// fn is expected to write the booking/payment state change, append a
// ledger event, write an audit entry, and write an outbox event, in
// that order, all against the tx handle it's given.
func (r *TxRepository) CommitWithOutbox(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning phase-3 transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing phase-3 transaction: %w", err)
	}
	return nil
}

// RunRead runs fn inside a read/write transaction used for Phase 1's
// SELECT...FOR UPDATE plus validation, rolling back (never committing a
// state change) since Phase 1 never mutates.
func (r *TxRepository) RunRead(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning phase-1 transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(tx)
}
