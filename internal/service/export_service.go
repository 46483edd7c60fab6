package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
	"github.com/noah-isme/campus-activity-api/pkg/export"
)

type exportActivityReader interface {
	ListForExport(ctx context.Context, category string) ([]models.ActivityDetail, error)
}

type exportEnrollmentReader interface {
	ListForExport(ctx context.Context, activityID string) ([]models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type conflictSweeper interface {
	SweepAll(ctx context.Context) ([]models.Conflict, error)
}

const exportTimeLayout = "2006-01-02 15:04"

// ExportService turns store rows into tabular datasets and rendered files.
type ExportService struct {
	activities  exportActivityReader
	enrollments exportEnrollmentReader
	conflicts   conflictSweeper
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(activities exportActivityReader, enrollments exportEnrollmentReader, conflicts conflictSweeper, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		activities:  activities,
		enrollments: enrollments,
		conflicts:   conflicts,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// ActivitiesDataset lists every activity with its active enrollment count.
func (s *ExportService) ActivitiesDataset(ctx context.Context, category string) (export.Dataset, error) {
	activities, err := s.activities.ListForExport(ctx, category)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export activities")
	}
	data := export.Dataset{Headers: []string{"ID", "Title", "Category", "Location", "Start", "End", "Capacity", "Enrolled", "Status"}}
	for _, activity := range activities {
		data.AddRow(
			activity.ID,
			activity.Title,
			activity.Category,
			activity.Location,
			activity.StartTime.Format(exportTimeLayout),
			activity.EndTime.Format(exportTimeLayout),
			strconv.Itoa(activity.Capacity),
			strconv.Itoa(activity.EnrolledCount),
			string(activity.Status),
		)
	}
	return data, nil
}

// ConflictsDataset lists every overlapping enrollment pair found by the sweep.
func (s *ExportService) ConflictsDataset(ctx context.Context) (export.Dataset, error) {
	conflicts, err := s.conflicts.SweepAll(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	data := export.Dataset{Headers: []string{"Student", "Activity", "Window", "Overlapping Activity", "Overlapping Window"}}
	for _, conflict := range conflicts {
		data.AddRow(
			conflict.Student,
			conflict.FirstTitle,
			formatWindow(conflict.First),
			conflict.OtherTitle,
			formatWindow(conflict.Other),
		)
	}
	return data, nil
}

// EnrollmentsCSV renders enrollment rows for download, optionally scoped
// to one activity or one student.
func (s *ExportService) EnrollmentsCSV(ctx context.Context, activityID, student string) ([]byte, error) {
	var rows []models.EnrollmentDetail
	var err error
	if student != "" {
		rows, _, err = s.enrollments.List(ctx, models.EnrollmentFilter{Student: student, PageSize: 100})
	} else {
		rows, err = s.enrollments.ListForExport(ctx, activityID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export enrollments")
	}

	data := export.Dataset{Headers: []string{"ID", "Activity", "Student", "Status", "Position", "Start", "End", "Created"}}
	for _, row := range rows {
		data.AddRow(
			row.ID,
			row.ActivityTitle,
			row.Student,
			string(row.Status),
			strconv.Itoa(row.Position),
			row.StartTime.Format(exportTimeLayout),
			row.EndTime.Format(exportTimeLayout),
			row.CreatedAt.Format(time.RFC3339),
		)
	}
	return s.csv.Render(data)
}

// Render produces the requested format for a dataset.
func (s *ExportService) Render(data export.Dataset, format models.ReportFormat, title string) ([]byte, error) {
	switch format {
	case models.ReportFormatPDF:
		return s.pdf.Render(data, title)
	default:
		return s.csv.Render(data)
	}
}

func formatWindow(w models.TimeWindow) string {
	return w.Start.Format(exportTimeLayout) + " - " + w.End.Format(exportTimeLayout)
}
