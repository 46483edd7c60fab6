package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
)

type scheduleReader interface {
	ListAllActiveSchedule(ctx context.Context) ([]models.StudentScheduleItem, error)
}

// FindConflicts checks a candidate commitment against a student's existing
// schedule and returns one conflict per overlapping pair. An empty slice
// means the candidate is compatible with everything.
func FindConflicts(candidate models.ScheduleItem, existing []models.ScheduleItem) []models.Conflict {
	var conflicts []models.Conflict
	for _, item := range existing {
		if item.ActivityID == candidate.ActivityID {
			continue
		}
		if candidate.Window().Overlaps(item.Window()) {
			conflicts = append(conflicts, models.Conflict{
				FirstTitle: candidate.Title,
				First:      candidate.Window(),
				OtherTitle: item.Title,
				Other:      item.Window(),
			})
		}
	}
	return conflicts
}

// ConflictService runs the read-only overlap audit across every student.
type ConflictService struct {
	schedules scheduleReader
	logger    *zap.Logger
}

// NewConflictService constructs ConflictService.
func NewConflictService(schedules scheduleReader, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{schedules: schedules, logger: logger}
}

// SweepAll scans every active enrollment and reports each overlapping pair
// within a student's schedule. The sweep reads a snapshot and never
// mutates, so it is safe to run while enrollments are changing.
func (s *ConflictService) SweepAll(ctx context.Context) ([]models.Conflict, error) {
	items, err := s.schedules.ListAllActiveSchedule(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active schedules")
	}

	var conflicts []models.Conflict
	start := 0
	for end := 0; end <= len(items); end++ {
		if end < len(items) && items[end].Student == items[start].Student {
			continue
		}
		group := items[start:end]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].Window().Overlaps(group[j].Window()) {
					conflicts = append(conflicts, models.Conflict{
						Student:    group[i].Student,
						FirstTitle: group[i].Title,
						First:      group[i].Window(),
						OtherTitle: group[j].Title,
						Other:      group[j].Window(),
					})
				}
			}
		}
		start = end
	}

	s.logger.Sugar().Infow("conflict sweep finished", "students_scanned", countStudents(items), "conflicts", len(conflicts))
	return conflicts, nil
}

func countStudents(items []models.StudentScheduleItem) int {
	count := 0
	for i, item := range items {
		if i == 0 || item.Student != items[i-1].Student {
			count++
		}
	}
	return count
}
