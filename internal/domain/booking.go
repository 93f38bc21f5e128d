package domain

import "time"

// BookingStatus is the authoritative lifecycle state of a Booking.
// Transitions are enforced centrally by statemachine.BookingStateMachine;
// nothing outside that package should mutate Status directly.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusNoShow
}

// LocationType enumerates where a lesson takes place.
type LocationType string

const (
	LocationStudentPlace    LocationType = "student_location"
	LocationInstructorPlace LocationType = "instructor_location"
	LocationOnline          LocationType = "online"
	LocationNeutral         LocationType = "neutral_location"
)

// CancelledByRole records which side of the marketplace cancelled.
type CancelledByRole string

const (
	CancelledByStudent    CancelledByRole = "student"
	CancelledByInstructor CancelledByRole = "instructor"
	CancelledBySystem     CancelledByRole = "system"
)

// Booking represents one scheduled lesson between a student and an
// instructor. All timestamps are UTC; local wall times are carried
// alongside for display and recomputation under LessonTimezone.
type Booking struct {
	ID           string
	StudentID    string
	InstructorID string

	BookingDate     time.Time // local calendar date, time-of-day truncated
	StartTime       string    // "HH:MM" local wall time
	EndTime         string    // "HH:MM" local wall time
	DurationMinutes int
	LessonTimezone  string // IANA zone name
	BookingStartUTC time.Time
	BookingEndUTC   time.Time

	ServiceName string
	HourlyRate  int64 // cents
	TotalPrice  int64 // cents

	LocationType LocationType
	Address      string
	Latitude     *float64
	Longitude    *float64

	Status BookingStatus

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	RescheduledFromBookingID *string
	HasLockedFunds           bool

	CancellationReason string
	CancelledByRole    CancelledByRole

	StudentCreditAmount  int64 // cents
	RefundedToCardAmount int64 // cents
}

func (b *Booking) BelongsToStudent(userID string) bool {
	return b.StudentID == userID
}

func (b *Booking) BelongsToInstructor(userID string) bool {
	return b.InstructorID == userID
}

func (b *Booking) IsActive() bool {
	return !b.Status.Terminal()
}

// Overlaps reports whether [b.BookingStartUTC, b.BookingEndUTC) intersects
// [startUTC, endUTC) as half-open intervals.
func (b *Booking) Overlaps(startUTC, endUTC time.Time) bool {
	return b.BookingStartUTC.Before(endUTC) && startUTC.Before(b.BookingEndUTC)
}
