package service

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-activity-api/internal/models"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
	"github.com/noah-isme/campus-activity-api/pkg/export"
	"github.com/noah-isme/campus-activity-api/pkg/jobs"
	"github.com/noah-isme/campus-activity-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultPath string) error
	MarkFailed(ctx context.Context, id, message string) error
	ListByCreator(ctx context.Context, createdBy string, page, pageSize int) ([]models.ReportJob, int, error)
}

type reportQueue interface {
	Enqueue(job jobs.Job) error
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

// CreateReportRequest describes a report job submission.
type CreateReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=activities conflicts"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Category string              `json:"category"`
}

const reportDownloadBase = "/api/v1/reports"

// ReportService owns asynchronous report generation: a queued job renders
// a dataset to disk and hands back an expiring signed download link.
type ReportService struct {
	repo      reportRepository
	queue     reportQueue
	store     reportStorage
	signer    *storage.URLSigner
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs ReportService. Call BindQueue before Start
// so the worker handler can reach back into the service.
func NewReportService(repo reportRepository, store reportStorage, signer *storage.URLSigner, exporter *ExportService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		store:     store,
		signer:    signer,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
	}
}

// BindQueue attaches the worker queue used to dispatch jobs.
func (s *ReportService) BindQueue(queue reportQueue) {
	s.queue = queue
}

// Create persists a queued job and dispatches it to the workers.
func (s *ReportService) Create(ctx context.Context, createdBy string, req CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report queue not running")
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{Format: req.Format, Category: req.Category},
		Status:    models.ReportStatusQueued,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job.ID}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable"); markErr != nil {
			s.logger.Sugar().Errorw("failed to mark report job failed", "job_id", job.ID, "error", markErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	s.logger.Sugar().Infow("report job queued", "job_id", job.ID, "type", job.Type, "format", job.Params.Format)
	return job, nil
}

// Get returns a job's status, minting a signed download URL once finished.
func (s *ReportService) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	s.attachURL(job)
	return job, nil
}

// List returns the creator's jobs with pagination metadata.
func (s *ReportService) List(ctx context.Context, createdBy string, page, pageSize int) ([]models.ReportJob, *models.Pagination, error) {
	jobsList, total, err := s.repo.ListByCreator(ctx, createdBy, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	for i := range jobsList {
		s.attachURL(&jobsList[i])
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return jobsList, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// OpenDownload verifies the signature and returns the produced file.
func (s *ReportService) OpenDownload(ctx context.Context, id, expires, signature string) (*os.File, *models.ReportJob, error) {
	if err := s.signer.Verify(id, expires, signature); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link rejected")
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job == nil || job.Status != models.ReportStatusFinished || job.ResultPath == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report not available")
	}
	file, err := s.store.Open(*job.ResultPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return file, job, nil
}

// Handle is the queue worker entry point: it renders the dataset, writes
// the file and finishes the job. Returning an error lets the queue retry.
func (s *ReportService) Handle(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		s.logger.Sugar().Errorw("report job carries no id", "queue_job", job.ID)
		return nil
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		s.logger.Sugar().Warnw("report job vanished", "job_id", jobID)
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	data, err := s.buildDataset(ctx, record)
	if err != nil {
		return s.fail(ctx, jobID, err)
	}
	payload, err := s.exporter.Render(data, record.Params.Format, string(record.Type))
	if err != nil {
		return s.fail(ctx, jobID, err)
	}

	filename := fmt.Sprintf("%s-%s.%s", record.Type, record.ID, record.Params.Format)
	path, err := s.store.Save(filename, payload)
	if err != nil {
		return s.fail(ctx, jobID, err)
	}
	if err := s.repo.MarkFinished(ctx, jobID, path); err != nil {
		return err
	}
	s.logger.Sugar().Infow("report job finished", "job_id", jobID, "file", path)
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, record *models.ReportJob) (export.Dataset, error) {
	switch record.Type {
	case models.ReportTypeConflicts:
		return s.exporter.ConflictsDataset(ctx)
	default:
		return s.exporter.ActivitiesDataset(ctx, record.Params.Category)
	}
}

// fail records the failure but returns nil so the queue does not retry
// what the report row already captured.
func (s *ReportService) fail(ctx context.Context, jobID string, cause error) error {
	s.logger.Sugar().Errorw("report job failed", "job_id", jobID, "error", cause)
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		return err
	}
	return nil
}

func (s *ReportService) attachURL(job *models.ReportJob) {
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || s.signer == nil {
		return
	}
	url := s.signer.Sign(reportDownloadBase, job.ID)
	job.ResultURL = &url
}
