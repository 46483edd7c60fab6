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

// EnrollmentRepository handles persistence of enrollments. The tx-scoped
// methods serialize on the activity row lock taken by LockEnrollable or
// LockActivity, so capacity counts and waitlist positions stay consistent
// under concurrent requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// RunInTx executes fn inside a transaction, rolling back on error.
func (r *EnrollmentRepository) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

// LockEnrollable locks the activity row and returns its window and capacity,
// or nil when the activity does not exist or is not approved.
func (r *EnrollmentRepository) LockEnrollable(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.EnrollableActivity, error) {
	const query = `SELECT id, title, start_time, end_time, capacity FROM activities WHERE id = $1 AND status = 'APPROVED' FOR UPDATE`
	var activity models.EnrollableActivity
	if err := tx.GetContext(ctx, &activity, query, activityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock activity: %w", err)
	}
	return &activity, nil
}

// LockExisting locks the activity row regardless of status and returns its
// window and capacity, or nil when the activity does not exist. Waitlist
// joins take this lock: the queue accepts members whether or not the
// activity is currently approved.
func (r *EnrollmentRepository) LockExisting(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.EnrollableActivity, error) {
	const query = `SELECT id, title, start_time, end_time, capacity FROM activities WHERE id = $1 FOR UPDATE`
	var activity models.EnrollableActivity
	if err := tx.GetContext(ctx, &activity, query, activityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock activity: %w", err)
	}
	return &activity, nil
}

// LockActivity locks the activity row regardless of status. Cancellation
// takes this lock so promotions serialize with concurrent enrollments.
func (r *EnrollmentRepository) LockActivity(ctx context.Context, tx *sqlx.Tx, activityID string) error {
	const query = `SELECT id FROM activities WHERE id = $1 FOR UPDATE`
	var id string
	if err := tx.GetContext(ctx, &id, query, activityID); err != nil {
		return fmt.Errorf("lock activity: %w", err)
	}
	return nil
}

// HasClaim reports whether the student already holds an active or waiting
// enrollment for the activity.
func (r *EnrollmentRepository) HasClaim(ctx context.Context, tx *sqlx.Tx, activityID, student string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE activity_id = $1 AND student = $2 AND status IN ('ACTIVE', 'WAITING') LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, activityID, student); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment claim: %w", err)
	}
	return true, nil
}

// CountActive returns the number of active enrollments for the activity.
func (r *EnrollmentRepository) CountActive(ctx context.Context, tx *sqlx.Tx, activityID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE activity_id = $1 AND status = 'ACTIVE'`
	var count int
	if err := tx.GetContext(ctx, &count, query, activityID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// NextPosition returns the next waitlist position for the activity.
// Positions only count rows still WAITING, so a number can recur after
// the queue drains past it; ordering among waiting rows is what matters.
func (r *EnrollmentRepository) NextPosition(ctx context.Context, tx *sqlx.Tx, activityID string) (int, error) {
	const query = `SELECT COALESCE(MAX(position), 0) + 1 FROM enrollments WHERE activity_id = $1 AND status = 'WAITING'`
	var position int
	if err := tx.GetContext(ctx, &position, query, activityID); err != nil {
		return 0, fmt.Errorf("next waitlist position: %w", err)
	}
	return position, nil
}

// HeadWaiting returns the waiting enrollment with the smallest position,
// or nil when the waitlist is empty.
func (r *EnrollmentRepository) HeadWaiting(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.Enrollment, error) {
	const query = `SELECT id, activity_id, student, created_at, status, position
        FROM enrollments WHERE activity_id = $1 AND status = 'WAITING'
        ORDER BY position ASC LIMIT 1`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, activityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("head of waitlist: %w", err)
	}
	return &enrollment, nil
}

// Promote flips a waiting enrollment to active and clears its position.
func (r *EnrollmentRepository) Promote(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE enrollments SET status = 'ACTIVE', position = 0 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("promote enrollment: %w", err)
	}
	return nil
}

// Insert persists a new enrollment record inside the transaction.
func (r *EnrollmentRepository) Insert(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, activity_id, student, created_at, status, position)
        VALUES (:id, :activity_id, :student, :created_at, :status, :position)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// MarkCancelled flips an enrollment to the terminal cancelled state.
func (r *EnrollmentRepository) MarkCancelled(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE enrollments SET status = 'CANCELLED', position = 0 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	return nil
}

// GetInTx re-reads an enrollment inside the transaction, or nil when absent.
func (r *EnrollmentRepository) GetInTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	const query = `SELECT id, activity_id, student, created_at, status, position FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

// ActiveSchedule returns the student's active commitments joined to their
// activity windows, excluding cancelled activities. Runs inside the
// enrollment transaction so the conflict check sees a consistent snapshot.
func (r *EnrollmentRepository) ActiveSchedule(ctx context.Context, tx *sqlx.Tx, student string) ([]models.ScheduleItem, error) {
	const query = `SELECT e.activity_id, a.title, a.start_time, a.end_time
        FROM enrollments e
        JOIN activities a ON a.id = e.activity_id
        WHERE e.student = $1 AND e.status = 'ACTIVE' AND a.status <> 'CANCELLED'
        ORDER BY a.start_time ASC`
	var items []models.ScheduleItem
	if err := tx.SelectContext(ctx, &items, query, student); err != nil {
		return nil, fmt.Errorf("student schedule: %w", err)
	}
	return items, nil
}

// FindByID returns an enrollment by its ID, or nil when absent.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, activity_id, student, created_at, status, position FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN activities a ON a.id = e.activity_id`
	var conditions []string
	var args []interface{}

	if filter.ActivityID != "" {
		conditions = append(conditions, fmt.Sprintf("e.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.Student != "" {
		conditions = append(conditions, fmt.Sprintf("e.student = $%d", len(args)+1))
		args = append(args, filter.Student)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "e.created_at",
		"position":   "e.position",
		"start_time": "a.start_time",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.activity_id, e.student, e.created_at, e.status, e.position,
        a.title AS activity_title, a.start_time, a.end_time
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListAllActiveSchedule returns every active commitment with its owning
// student, feeding the conflict sweep.
func (r *EnrollmentRepository) ListAllActiveSchedule(ctx context.Context) ([]models.StudentScheduleItem, error) {
	const query = `SELECT e.student, e.activity_id, a.title, a.start_time, a.end_time
        FROM enrollments e
        JOIN activities a ON a.id = e.activity_id
        WHERE e.status = 'ACTIVE' AND a.status <> 'CANCELLED'
        ORDER BY e.student ASC, a.start_time ASC`
	var items []models.StudentScheduleItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("active schedules: %w", err)
	}
	return items, nil
}

// ListForExport returns enrollment rows joined to activity info for CSV
// export, optionally narrowed to a single activity.
func (r *EnrollmentRepository) ListForExport(ctx context.Context, activityID string) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.activity_id, e.student, e.created_at, e.status, e.position,
        a.title AS activity_title, a.start_time, a.end_time
        FROM enrollments e
        JOIN activities a ON a.id = e.activity_id`
	var args []interface{}
	if activityID != "" {
		query += " WHERE e.activity_id = $1"
		args = append(args, activityID)
	}
	query += " ORDER BY a.start_time ASC, e.created_at ASC"

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("export enrollments: %w", err)
	}
	return enrollments, nil
}
