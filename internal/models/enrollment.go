package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. CANCELLED is terminal; rows are never
// deleted so the audit trail stays intact.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWaiting   EnrollmentStatus = "WAITING"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment captures a student's claim against one activity. Position is
// meaningful only while the enrollment is WAITING; it orders promotion
// and is 0 otherwise.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	ActivityID string           `db:"activity_id" json:"activity_id"`
	Student    string           `db:"student" json:"student"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Position   int              `db:"position" json:"position"`
}

// EnrollmentDetail enriches Enrollment with activity info for display.
type EnrollmentDetail struct {
	Enrollment
	ActivityTitle string    `db:"activity_title" json:"activity_title"`
	StartTime     time.Time `db:"start_time" json:"start_time"`
	EndTime       time.Time `db:"end_time" json:"end_time"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ActivityID string
	Student    string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// EnrollOutcome reports which branch an enrollment request took.
type EnrollOutcome string

// Enrollment request outcomes.
const (
	OutcomeEnrolled   EnrollOutcome = "ENROLLED"
	OutcomeWaitlisted EnrollOutcome = "WAITLISTED"
)

// EnrollResult is returned to callers of the enrollment engine so the UI
// can distinguish "enrolled" from "waitlisted at position N".
type EnrollResult struct {
	Outcome    EnrollOutcome `json:"outcome"`
	Enrollment Enrollment    `json:"enrollment"`
}

// ScheduleItem is one active commitment used for overlap checks: the
// activity title plus its window.
type ScheduleItem struct {
	ActivityID string    `db:"activity_id"`
	Title      string    `db:"title"`
	StartTime  time.Time `db:"start_time"`
	EndTime    time.Time `db:"end_time"`
}

// Window returns the item's time interval.
func (s ScheduleItem) Window() TimeWindow {
	return TimeWindow{Start: s.StartTime, End: s.EndTime}
}

// StudentScheduleItem extends ScheduleItem with the owning student,
// used by the global conflict sweep.
type StudentScheduleItem struct {
	Student string `db:"student"`
	ScheduleItem
}
