// Package clock centralizes time math for booking windows: UTC "now",
// hours-until math for retry/warning schedules, and IANA-aware
// local-to-UTC conversion with a fallback for legacy zone names, the way
// the teacher's booking_service.go inlines time.LoadLocation calls but
// generalized into one seam so workers and the booking service share it.
package clock

import (
	"fmt"
	"time"
)

// Service provides the clock operations every booking/payment component
// needs instead of calling time.Now()/time.LoadLocation() directly, so
// tests can substitute a fixed clock.
type Service interface {
	Now() time.Time
	HoursUntil(t time.Time) float64
	ToUTC(localDate, localTime string, tz string) (time.Time, error)
}

type realClock struct {
	legacyZoneFallback map[string]string
}

// New returns the production Service. legacyZoneFallback maps deprecated
// or non-IANA zone names (as sometimes stored by older client records)
// to a current IANA identifier; an unresolvable name still errors.
func New(legacyZoneFallback map[string]string) Service {
	if legacyZoneFallback == nil {
		legacyZoneFallback = map[string]string{
			"US/Pacific":  "America/Los_Angeles",
			"US/Eastern":  "America/New_York",
			"US/Central":  "America/Chicago",
			"US/Mountain": "America/Denver",
		}
	}
	return &realClock{legacyZoneFallback: legacyZoneFallback}
}

func (c *realClock) Now() time.Time {
	return time.Now().UTC()
}

func (c *realClock) HoursUntil(t time.Time) float64 {
	return t.UTC().Sub(c.Now()).Hours()
}

// ToUTC converts a booking's local date+time+timezone into an absolute
// UTC instant. localDate is "2006-01-02", localTime is "15:04".
func (c *realClock) ToUTC(localDate, localTime, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		if fallback, ok := c.legacyZoneFallback[tz]; ok {
			loc, err = time.LoadLocation(fallback)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("loading location %q: %w", tz, err)
		}
	}

	t, err := time.ParseInLocation("2006-01-02 15:04", localDate+" "+localTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing local booking time: %w", err)
	}
	return t.UTC(), nil
}
