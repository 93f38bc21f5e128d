// Package availability validates that a requested booking window is
// fully covered by an instructor's published bitmap, adapted from the
// bitmap types in internal/domain/availability.go.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
)

// Reader fetches the bitmap for an instructor's local calendar day.
type Reader interface {
	Get(ctx context.Context, instructorID string, day time.Time) (*domain.Availability, error)
}

type Validator struct {
	reader Reader
}

func NewValidator(reader Reader) *Validator {
	return &Validator{reader: reader}
}

// Covers reports whether every 30-minute slot in [startLocal, endLocal)
// is set in the instructor's published bitmap for that local day.
// Bookings that wrap past midnight are rejected by the caller before
// reaching this check (domain.ErrDurationWrapsDay).
func (v *Validator) Covers(ctx context.Context, instructorID string, day time.Time, startLocal, endLocal time.Time) (bool, error) {
	avail, err := v.reader.Get(ctx, instructorID, day)
	if err != nil {
		return false, fmt.Errorf("fetching availability: %w", err)
	}

	startSlot := slotIndex(startLocal)
	endSlot := slotIndex(endLocal)
	if endSlot <= startSlot {
		return false, nil
	}

	for s := startSlot; s < endSlot; s++ {
		if !avail.Bitmap.IsSet(s) {
			return false, nil
		}
	}
	return true, nil
}

func slotIndex(t time.Time) int {
	return t.Hour()*2 + t.Minute()/30
}
