package domain

import "time"

// NoShowType identifies which party a no-show report alleges was absent.
type NoShowType string

const (
	NoShowStudent    NoShowType = "student"
	NoShowInstructor NoShowType = "instructor"
	NoShowMutual     NoShowType = "mutual"
)

// NoShowReport is an optional 0..1-per-Booking record of a reported
// absence, possibly disputed before resolution.
type NoShowReport struct {
	BookingID string

	NoShowReportedAt time.Time
	NoShowType       NoShowType
	NoShowDisputed   bool

	NoShowResolvedAt   *time.Time
	NoShowResolution   string
}

// LockResolution enumerates why a LockRecord was resolved.
type LockResolution string

const (
	LockResolutionNewLessonCompleted  LockResolution = "new_lesson_completed"
	LockResolutionInstructorCancelled LockResolution = "instructor_cancelled"
	LockResolutionStudentNoShow       LockResolution = "student_no_show"
	LockResolutionMutualNoShow        LockResolution = "mutual_no_show"
)

// LockRecord tracks funds locked on an original booking whose settlement
// depends on a rescheduled successor's outcome (SPEC_FULL §4.7).
type LockRecord struct {
	BookingID        string
	ChildBookingID   string
	LockedAmountCents int64
	LockResolvedAt   *time.Time
	LockResolution   LockResolution
}
