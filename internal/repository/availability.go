package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

type AvailabilityRepository struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// Get implements availability.Reader.
func (r *AvailabilityRepository) Get(ctx context.Context, instructorID string, day time.Time) (*domain.Availability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT instructor_id, day, bitmap FROM instructor_availability
		WHERE instructor_id = $1 AND day = $2
	`, instructorID, day)

	var a domain.Availability
	var bitmap []byte
	if err := row.Scan(&a.InstructorID, &a.Day, &bitmap); err != nil {
		if err == pgx.ErrNoRows {
			return &domain.Availability{InstructorID: instructorID, Day: day}, nil
		}
		return nil, fmt.Errorf("fetching availability: %w", err)
	}
	copy(a.Bitmap[:], bitmap)
	return &a, nil
}

func (r *AvailabilityRepository) Upsert(ctx context.Context, a *domain.Availability) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO instructor_availability (instructor_id, day, bitmap)
		VALUES ($1, $2, $3)
		ON CONFLICT (instructor_id, day) DO UPDATE SET bitmap = EXCLUDED.bitmap
	`, a.InstructorID, a.Day, a.Bitmap[:])
	if err != nil {
		return fmt.Errorf("upserting availability: %w", err)
	}
	return nil
}
