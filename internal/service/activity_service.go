package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
)

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	FindDetailByID(ctx context.Context, id string) (*models.ActivityDetail, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	UpdateStatus(ctx context.Context, id string, status models.ActivityStatus, approver *string) error
	ListCategories(ctx context.Context) ([]string, error)
}

// CreateActivityRequest describes a new activity submission.
type CreateActivityRequest struct {
	Title     string    `json:"title" validate:"required"`
	Category  string    `json:"category" validate:"required"`
	Location  string    `json:"location"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Capacity  int       `json:"capacity" validate:"required,min=1"`
	Creator   string    `json:"-"`
}

// UpdateActivityRequest describes mutable activity fields.
type UpdateActivityRequest struct {
	Title     string    `json:"title" validate:"required"`
	Category  string    `json:"category" validate:"required"`
	Location  string    `json:"location"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Capacity  int       `json:"capacity" validate:"required,min=1"`
}

// ActivityService orchestrates the activity approval lifecycle.
type ActivityService struct {
	repo      activityRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewActivityService constructs ActivityService.
func NewActivityService(repo activityRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns activities with pagination metadata.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, *models.Pagination, error) {
	activities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return activities, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one activity with its enrollment count.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.ActivityDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if detail == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}
	return detail, nil
}

// Create submits a new activity in the PENDING state.
func (s *ActivityService) Create(ctx context.Context, req CreateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if err := s.checkWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	activity := &models.Activity{
		Title:     req.Title,
		Category:  req.Category,
		Location:  req.Location,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		Capacity:  req.Capacity,
		Status:    models.ActivityStatusPending,
		Creator:   req.Creator,
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}
	s.logger.Sugar().Infow("activity submitted", "activity_id", activity.ID, "title", activity.Title, "creator", activity.Creator)
	return activity, nil
}

// Update rewrites a pending activity. Only the creator may edit, and only
// before approval; an approved schedule must not shift under enrolled
// students.
func (s *ActivityService) Update(ctx context.Context, id, editor string, req UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if err := s.checkWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if activity == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}
	if activity.Creator != editor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator may edit an activity")
	}
	if activity.Status != models.ActivityStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending activities can be edited")
	}

	activity.Title = req.Title
	activity.Category = req.Category
	activity.Location = req.Location
	activity.StartTime = req.StartTime.UTC()
	activity.EndTime = req.EndTime.UTC()
	activity.Capacity = req.Capacity
	if err := s.repo.Update(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}
	return activity, nil
}

// Approve moves a pending activity to APPROVED, recording the approver.
func (s *ActivityService) Approve(ctx context.Context, id, approver string) (*models.Activity, error) {
	return s.transition(ctx, id, models.ActivityStatusApproved, &approver, models.ActivityStatusPending)
}

// Reject moves a pending activity to REJECTED.
func (s *ActivityService) Reject(ctx context.Context, id, approver string) (*models.Activity, error) {
	return s.transition(ctx, id, models.ActivityStatusRejected, &approver, models.ActivityStatusPending)
}

// Cancel marks an activity CANCELLED. Cancelled activities drop out of
// enrollment and conflict consideration but their enrollment rows stay.
func (s *ActivityService) Cancel(ctx context.Context, id, actor string) (*models.Activity, error) {
	return s.transition(ctx, id, models.ActivityStatusCancelled, &actor,
		models.ActivityStatusPending, models.ActivityStatusApproved)
}

// Categories returns the distinct categories in use.
func (s *ActivityService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

func (s *ActivityService) transition(ctx context.Context, id string, to models.ActivityStatus, actor *string, from ...models.ActivityStatus) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if activity == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}

	allowed := false
	for _, status := range from {
		if activity.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity status does not permit this transition")
	}

	if err := s.repo.UpdateStatus(ctx, id, to, actor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity status")
	}
	activity.Status = to
	activity.Approver = actor

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
			s.logger.Sugar().Warnw("dashboard cache invalidation failed", "error", err)
		}
	}
	s.logger.Sugar().Infow("activity transitioned", "activity_id", id, "status", to)
	return activity, nil
}

func (s *ActivityService) checkWindow(start, end time.Time) error {
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if start.Before(s.now().UTC()) {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be in the future")
	}
	return nil
}
