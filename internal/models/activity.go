package models

import "time"

// ActivityStatus represents the approval lifecycle of an activity.
type ActivityStatus string

// Possible activity statuses.
const (
	ActivityStatusPending   ActivityStatus = "PENDING"
	ActivityStatusApproved  ActivityStatus = "APPROVED"
	ActivityStatusRejected  ActivityStatus = "REJECTED"
	ActivityStatusCancelled ActivityStatus = "CANCELLED"
)

// Activity is a scheduled campus event with a fixed time window and seat capacity.
type Activity struct {
	ID        string         `db:"id" json:"id"`
	Title     string         `db:"title" json:"title"`
	Category  string         `db:"category" json:"category"`
	Location  string         `db:"location" json:"location"`
	StartTime time.Time      `db:"start_time" json:"start_time"`
	EndTime   time.Time      `db:"end_time" json:"end_time"`
	Capacity  int            `db:"capacity" json:"capacity"`
	Status    ActivityStatus `db:"status" json:"status"`
	Creator   string         `db:"creator" json:"creator"`
	Approver  *string        `db:"approver" json:"approver,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Window returns the activity's time interval.
func (a *Activity) Window() TimeWindow {
	return TimeWindow{Start: a.StartTime, End: a.EndTime}
}

// ActivityDetail enriches Activity with the current active enrollment count.
type ActivityDetail struct {
	Activity
	EnrolledCount int `db:"enrolled_count" json:"enrolled_count"`
}

// ActivityFilter provides filters for listing activities.
type ActivityFilter struct {
	Category    string
	Status      ActivityStatus
	Keyword     string
	Creator     string
	StartsAfter time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// EnrollableActivity carries the fields the enrollment engine needs:
// the time window and capacity of an approved activity.
type EnrollableActivity struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	StartTime time.Time `db:"start_time"`
	EndTime   time.Time `db:"end_time"`
	Capacity  int       `db:"capacity"`
}

// Window returns the enrollable activity's time interval.
func (a *EnrollableActivity) Window() TimeWindow {
	return TimeWindow{Start: a.StartTime, End: a.EndTime}
}

// TimeWindow is a half-open [Start, End) interval taken from an activity.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two windows intersect. Touching endpoints do
// not overlap: an activity ending at 11:00 is compatible with one
// starting at 11:00.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return !(w.End.Compare(other.Start) <= 0 || w.Start.Compare(other.End) >= 0)
}
