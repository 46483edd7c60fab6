package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
)

type statsRepository interface {
	Headline(ctx context.Context) (*models.DashboardStats, error)
	TopActivities(ctx context.Context, limit int) ([]models.TopActivity, error)
	Categories(ctx context.Context) ([]models.CategoryStat, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const dashboardStatsKey = "dashboard:stats"

// DashboardService assembles headline numbers with a Redis cache in front.
type DashboardService struct {
	stats  statsRepository
	cache  statsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(stats statsRepository, cache statsCache, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{stats: stats, cache: cache, ttl: ttl, logger: logger}
}

// Stats returns dashboard aggregates, served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		if err := s.cache.Get(ctx, dashboardStatsKey, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("dashboard cache read failed", "error", err)
		}
	}

	stats, err := s.stats.Headline(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard stats")
	}
	top, err := s.stats.TopActivities(ctx, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top activities")
	}
	categories, err := s.stats.Categories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category stats")
	}
	stats.TopActivities = top
	stats.Categories = categories
	stats.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardStatsKey, stats, s.ttl); err != nil {
			s.logger.Sugar().Warnw("dashboard cache write failed", "error", err)
		}
	}
	return stats, nil
}
