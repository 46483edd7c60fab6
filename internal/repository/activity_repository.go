package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-activity-api/internal/models"
)

// ActivityRepository handles persistence of activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// List returns activities with their active enrollment counts.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error) {
	base := `FROM activities a`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("a.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Creator != "" {
		conditions = append(conditions, fmt.Sprintf("a.creator = $%d", len(args)+1))
		args = append(args, filter.Creator)
	}
	if filter.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf("(a.title ILIKE $%d OR a.location ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Keyword+"%")
	}
	if !filter.StartsAfter.IsZero() {
		conditions = append(conditions, fmt.Sprintf("a.start_time > $%d", len(args)+1))
		args = append(args, filter.StartsAfter)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_time": "a.start_time",
		"title":      "a.title",
		"created_at": "a.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_time"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.start_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.title, a.category, a.location, a.start_time, a.end_time,
        a.capacity, a.status, a.creator, a.approver, a.created_at, a.updated_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.activity_id = a.id AND e.status = 'ACTIVE') AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var activities []models.ActivityDetail
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// FindByID returns an activity by its ID, or nil when absent.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	const query = `SELECT id, title, category, location, start_time, end_time, capacity, status, creator, approver, created_at, updated_at
        FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &activity, nil
}

// FindDetailByID returns an activity with its active enrollment count.
func (r *ActivityRepository) FindDetailByID(ctx context.Context, id string) (*models.ActivityDetail, error) {
	const query = `SELECT a.id, a.title, a.category, a.location, a.start_time, a.end_time,
        a.capacity, a.status, a.creator, a.approver, a.created_at, a.updated_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.activity_id = a.id AND e.status = 'ACTIVE') AS enrolled_count
        FROM activities a WHERE a.id = $1`
	var detail models.ActivityDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get activity detail: %w", err)
	}
	return &detail, nil
}

// Create persists a new activity record.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now
	if activity.Status == "" {
		activity.Status = models.ActivityStatusPending
	}
	const query = `INSERT INTO activities (id, title, category, location, start_time, end_time, capacity, status, creator, approver, created_at, updated_at)
        VALUES (:id, :title, :category, :location, :start_time, :end_time, :capacity, :status, :creator, :approver, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an activity.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET title = :title, category = :category, location = :location,
        start_time = :start_time, end_time = :end_time, capacity = :capacity, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// UpdateStatus moves the activity through its approval lifecycle.
func (r *ActivityRepository) UpdateStatus(ctx context.Context, id string, status models.ActivityStatus, approver *string) error {
	const query = `UPDATE activities SET status = $2, approver = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, approver, time.Now().UTC()); err != nil {
		return fmt.Errorf("update activity status: %w", err)
	}
	return nil
}

// ListCategories returns the distinct categories in use.
func (r *ActivityRepository) ListCategories(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT category FROM activities WHERE category <> '' ORDER BY category ASC`
	var categories []string
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListForExport returns every activity with its active enrollment count,
// optionally narrowed by category. Used by the report worker.
func (r *ActivityRepository) ListForExport(ctx context.Context, category string) ([]models.ActivityDetail, error) {
	query := `SELECT a.id, a.title, a.category, a.location, a.start_time, a.end_time,
        a.capacity, a.status, a.creator, a.approver, a.created_at, a.updated_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.activity_id = a.id AND e.status = 'ACTIVE') AS enrolled_count
        FROM activities a`
	var args []interface{}
	if category != "" {
		query += " WHERE a.category = $1"
		args = append(args, category)
	}
	query += " ORDER BY a.start_time ASC"

	var activities []models.ActivityDetail
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, fmt.Errorf("export activities: %w", err)
	}
	return activities, nil
}
