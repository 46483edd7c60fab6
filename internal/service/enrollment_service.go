package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
)

type enrollmentRepository interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	LockEnrollable(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.EnrollableActivity, error)
	LockExisting(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.EnrollableActivity, error)
	LockActivity(ctx context.Context, tx *sqlx.Tx, activityID string) error
	HasClaim(ctx context.Context, tx *sqlx.Tx, activityID, student string) (bool, error)
	CountActive(ctx context.Context, tx *sqlx.Tx, activityID string) (int, error)
	NextPosition(ctx context.Context, tx *sqlx.Tx, activityID string) (int, error)
	HeadWaiting(ctx context.Context, tx *sqlx.Tx, activityID string) (*models.Enrollment, error)
	Promote(ctx context.Context, tx *sqlx.Tx, id string) error
	Insert(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	MarkCancelled(ctx context.Context, tx *sqlx.Tx, id string) error
	GetInTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error)
	ActiveSchedule(ctx context.Context, tx *sqlx.Tx, student string) ([]models.ScheduleItem, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type enrollmentMetrics interface {
	RecordEnrollment(outcome string)
	RecordCancellation()
	RecordPromotion()
}

// EnrollRequest describes an enrollment or waitlist attempt.
type EnrollRequest struct {
	ActivityID string `json:"activity_id" validate:"required"`
	Student    string `json:"-"`
}

// CancelResult reports a cancellation together with the enrollment
// promoted into the freed seat, when any.
type CancelResult struct {
	Enrollment models.Enrollment  `json:"enrollment"`
	Promoted   *models.Enrollment `json:"promoted,omitempty"`
}

const enrollMaxAttempts = 3

// EnrollmentService is the enrollment engine: capacity, waitlist and
// conflict rules all live here, each operation a single transaction
// serialized on the activity row lock.
type EnrollmentService struct {
	repo        enrollmentRepository
	cache       cacheInvalidator
	metrics     enrollmentMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	maxAttempts int
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, cache cacheInvalidator, metrics enrollmentMetrics, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, maxAttempts: enrollMaxAttempts}
}

// SetMaxRetries overrides how many times a contended transaction is retried
// before the failure is surfaced to the caller.
func (s *EnrollmentService) SetMaxRetries(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// Enroll claims a seat for the student, falling back to the waitlist when
// the activity is full.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var result *models.EnrollResult
	err := s.withRetry(ctx, func() error {
		return s.repo.RunInTx(ctx, func(tx *sqlx.Tx) error {
			activity, err := s.repo.LockEnrollable(ctx, tx, req.ActivityID)
			if err != nil {
				return err
			}

			// A claim the student already holds outranks enrollability, so
			// re-enrolling in an activity that has since left APPROVED still
			// reports the existing claim.
			held, err := s.repo.HasClaim(ctx, tx, req.ActivityID, req.Student)
			if err != nil {
				return err
			}
			if held {
				return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
			}

			if activity == nil {
				return appErrors.Clone(appErrors.ErrNotEnrollable, "")
			}

			schedule, err := s.repo.ActiveSchedule(ctx, tx, req.Student)
			if err != nil {
				return err
			}
			candidate := models.ScheduleItem{
				ActivityID: activity.ID,
				Title:      activity.Title,
				StartTime:  activity.StartTime,
				EndTime:    activity.EndTime,
			}
			if conflicts := FindConflicts(candidate, schedule); len(conflicts) > 0 {
				details := make([]string, len(conflicts))
				for i, conflict := range conflicts {
					details[i] = conflict.Description()
				}
				return appErrors.WithDetails(appErrors.ErrScheduleConflict, details)
			}

			active, err := s.repo.CountActive(ctx, tx, req.ActivityID)
			if err != nil {
				return err
			}

			enrollment := models.Enrollment{
				ActivityID: req.ActivityID,
				Student:    req.Student,
			}
			if active < activity.Capacity {
				enrollment.Status = models.EnrollmentStatusActive
				if err := s.repo.Insert(ctx, tx, &enrollment); err != nil {
					return err
				}
				result = &models.EnrollResult{Outcome: models.OutcomeEnrolled, Enrollment: enrollment}
				return nil
			}

			position, err := s.repo.NextPosition(ctx, tx, req.ActivityID)
			if err != nil {
				return err
			}
			enrollment.Status = models.EnrollmentStatusWaiting
			enrollment.Position = position
			if err := s.repo.Insert(ctx, tx, &enrollment); err != nil {
				return err
			}
			result = &models.EnrollResult{Outcome: models.OutcomeWaitlisted, Enrollment: enrollment}
			return nil
		})
	})
	if err != nil {
		return nil, s.classify(err, "enroll failed")
	}

	s.invalidateDashboard(ctx)
	if s.metrics != nil {
		s.metrics.RecordEnrollment(string(result.Outcome))
	}
	s.logger.Sugar().Infow("enrollment recorded",
		"activity_id", req.ActivityID, "student", req.Student,
		"outcome", result.Outcome, "position", result.Enrollment.Position)
	return result, nil
}

// JoinWaitlist appends the student to the activity's waitlist. Beyond the
// duplicate-claim check it only requires that the activity exists: approval
// status, capacity and schedule conflicts are not re-checked. Callers
// opting into the queue have chosen to wait no matter what.
func (s *EnrollmentService) JoinWaitlist(ctx context.Context, req EnrollRequest) (*models.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}

	var result *models.EnrollResult
	err := s.withRetry(ctx, func() error {
		return s.repo.RunInTx(ctx, func(tx *sqlx.Tx) error {
			activity, err := s.repo.LockExisting(ctx, tx, req.ActivityID)
			if err != nil {
				return err
			}
			if activity == nil {
				return appErrors.Clone(appErrors.ErrNotEnrollable, "")
			}

			held, err := s.repo.HasClaim(ctx, tx, req.ActivityID, req.Student)
			if err != nil {
				return err
			}
			if held {
				return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
			}

			position, err := s.repo.NextPosition(ctx, tx, req.ActivityID)
			if err != nil {
				return err
			}
			enrollment := models.Enrollment{
				ActivityID: req.ActivityID,
				Student:    req.Student,
				Status:     models.EnrollmentStatusWaiting,
				Position:   position,
			}
			if err := s.repo.Insert(ctx, tx, &enrollment); err != nil {
				return err
			}
			result = &models.EnrollResult{Outcome: models.OutcomeWaitlisted, Enrollment: enrollment}
			return nil
		})
	})
	if err != nil {
		return nil, s.classify(err, "waitlist join failed")
	}

	s.invalidateDashboard(ctx)
	if s.metrics != nil {
		s.metrics.RecordEnrollment(string(models.OutcomeWaitlisted))
	}
	s.logger.Sugar().Infow("waitlist join recorded",
		"activity_id", req.ActivityID, "student", req.Student, "position", result.Enrollment.Position)
	return result, nil
}

// Cancel releases an enrollment. Cancelling an active seat promotes the
// head of the waitlist in the same transaction; cancelling a waiting row
// never promotes. Cancelling twice is a no-op.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID string) (*CancelResult, error) {
	existing, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, s.classify(err, "cancel lookup failed")
	}
	if existing == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if existing.Status == models.EnrollmentStatusCancelled {
		return &CancelResult{Enrollment: *existing}, nil
	}

	var result *CancelResult
	err = s.withRetry(ctx, func() error {
		return s.repo.RunInTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.repo.LockActivity(ctx, tx, existing.ActivityID); err != nil {
				return err
			}
			current, err := s.repo.GetInTx(ctx, tx, enrollmentID)
			if err != nil {
				return err
			}
			if current == nil {
				return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			if current.Status == models.EnrollmentStatusCancelled {
				result = &CancelResult{Enrollment: *current}
				return nil
			}

			wasActive := current.Status == models.EnrollmentStatusActive
			if err := s.repo.MarkCancelled(ctx, tx, enrollmentID); err != nil {
				return err
			}
			cancelled := *current
			cancelled.Status = models.EnrollmentStatusCancelled
			cancelled.Position = 0
			result = &CancelResult{Enrollment: cancelled}

			if !wasActive {
				return nil
			}
			head, err := s.repo.HeadWaiting(ctx, tx, existing.ActivityID)
			if err != nil {
				return err
			}
			if head == nil {
				return nil
			}
			if err := s.repo.Promote(ctx, tx, head.ID); err != nil {
				return err
			}
			promoted := *head
			promoted.Status = models.EnrollmentStatusActive
			promoted.Position = 0
			result.Promoted = &promoted
			return nil
		})
	})
	if err != nil {
		return nil, s.classify(err, "cancel failed")
	}

	s.invalidateDashboard(ctx)
	if s.metrics != nil {
		s.metrics.RecordCancellation()
		if result.Promoted != nil {
			s.metrics.RecordPromotion()
		}
	}
	s.logger.Sugar().Infow("enrollment cancelled",
		"enrollment_id", enrollmentID, "activity_id", existing.ActivityID,
		"promoted", result.Promoted != nil)
	return result, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment by ID.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return enrollment, nil
}

// withRetry re-runs fn on serialization or deadlock failures, up to
// maxAttempts, then surfaces the contention as a retryable error.
func (s *EnrollmentService) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		s.logger.Sugar().Warnw("enrollment transaction contention, retrying", "attempt", attempt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func (s *EnrollmentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Sugar().Warnw("dashboard cache invalidation failed", "error", err)
	}
}

// classify passes through typed domain errors and wraps everything else
// as internal.
func (s *EnrollmentService) classify(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
