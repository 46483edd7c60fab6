package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-activity-api/internal/models"
)

// StatsRepository aggregates dashboard numbers straight from Postgres.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Headline returns the global counters.
func (r *StatsRepository) Headline(ctx context.Context) (*models.DashboardStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM activities) AS total_activities,
        (SELECT COUNT(*) FROM activities WHERE status = 'PENDING') AS pending_activities,
        (SELECT COUNT(*) FROM activities WHERE status = 'APPROVED') AS approved_activities,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'ACTIVE') AS active_enrollments,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'WAITING') AS waiting_enrollments,
        (SELECT COUNT(*) FROM activities WHERE status = 'APPROVED' AND start_time > $1) AS upcoming_activities`
	var stats models.DashboardStats
	if err := r.db.GetContext(ctx, &stats, query, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("dashboard headline: %w", err)
	}
	return &stats, nil
}

// TopActivities ranks approved activities by active enrollment count.
func (r *StatsRepository) TopActivities(ctx context.Context, limit int) ([]models.TopActivity, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT a.id, a.title, a.capacity,
        (SELECT COUNT(*) FROM enrollments e WHERE e.activity_id = a.id AND e.status = 'ACTIVE') AS enrolled_count
        FROM activities a WHERE a.status = 'APPROVED'
        ORDER BY enrolled_count DESC, a.title ASC LIMIT %d`, limit)
	var top []models.TopActivity
	if err := r.db.SelectContext(ctx, &top, query); err != nil {
		return nil, fmt.Errorf("top activities: %w", err)
	}
	return top, nil
}

// Categories counts approved activities per category.
func (r *StatsRepository) Categories(ctx context.Context) ([]models.CategoryStat, error) {
	const query = `SELECT category, COUNT(*) AS count FROM activities
        WHERE status = 'APPROVED' GROUP BY category ORDER BY count DESC, category ASC`
	var categories []models.CategoryStat
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	return categories, nil
}
