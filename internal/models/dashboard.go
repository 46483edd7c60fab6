package models

import "time"

// DashboardStats aggregates headline numbers for the admin dashboard.
type DashboardStats struct {
	TotalActivities    int            `db:"total_activities" json:"total_activities"`
	PendingActivities  int            `db:"pending_activities" json:"pending_activities"`
	ApprovedActivities int            `db:"approved_activities" json:"approved_activities"`
	ActiveEnrollments  int            `db:"active_enrollments" json:"active_enrollments"`
	WaitingEnrollments int            `db:"waiting_enrollments" json:"waiting_enrollments"`
	UpcomingActivities int            `db:"upcoming_activities" json:"upcoming_activities"`
	TopActivities      []TopActivity  `json:"top_activities"`
	Categories         []CategoryStat `json:"categories"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// TopActivity ranks an activity by how full it is.
type TopActivity struct {
	ID            string `db:"id" json:"id"`
	Title         string `db:"title" json:"title"`
	Capacity      int    `db:"capacity" json:"capacity"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}

// CategoryStat counts approved activities per category.
type CategoryStat struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}
