package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/models"
	"github.com/campuskit/reportcard-api/internal/repository"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
	"github.com/campuskit/reportcard-api/pkg/jobs"
)

type generationJobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateGenerationJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.GenerationJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.GenerationJob, error)
}

type bulkGenerator interface {
	GenerateReports(ctx context.Context, examGroupID string, sectionID *string) (*models.BatchResult, error)
}

type artifactExporter interface {
	Generate(ctx context.Context, job *models.GenerationJob) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Delete(relPath string) error
}

const jobTypeBulkGenerate = "bulk_generate"

// GenerationServiceConfig tunes queue behaviour.
type GenerationServiceConfig struct {
	Workers    int
	MaxRetries int
}

// GenerationService runs bulk report card jobs asynchronously through an
// in-memory worker queue, tracking per-job state in the database.
type GenerationService struct {
	jobs       generationJobStore
	aggregator bulkGenerator
	exporter   artifactExporter
	metrics    *MetricsService
	logger     *zap.Logger
	queue      *jobs.Queue
}

// NewGenerationService constructs the service and its backing queue.
func NewGenerationService(store generationJobStore, aggregator bulkGenerator, exporter artifactExporter, metrics *MetricsService, cfg GenerationServiceConfig, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GenerationService{
		jobs:       store,
		aggregator: aggregator,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
	}
	s.queue = jobs.NewQueue("report-generation", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches queue workers and re-enqueues jobs left QUEUED by a
// previous process.
func (s *GenerationService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	queued, err := s.jobs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("generation job recovery failed", zap.Error(err))
		return
	}
	for _, job := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeBulkGenerate}); err != nil {
			s.logger.Warn("failed to requeue generation job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(queued) > 0 {
		s.logger.Info("recovered queued generation jobs", zap.Int("count", len(queued)))
	}
}

// Stop drains the worker pool.
func (s *GenerationService) Stop() {
	s.queue.Stop()
}

// Enqueue records a new bulk run and schedules it for processing.
func (s *GenerationService) Enqueue(ctx context.Context, params models.GenerationJobParams, createdBy string) (*models.GenerationJob, error) {
	if params.ExamGroupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "examGroupId is required")
	}
	if params.Format == "" {
		params.Format = models.ExportFormatCSV
	}
	job := &models.GenerationJob{
		Params:    params,
		Status:    models.JobStatusQueued,
		CreatedBy: createdBy,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeBulkGenerate}); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("enqueue failed: %v", err))
		return nil, appErrors.Wrap(err, "INTERNAL_ERROR", 500, "failed to schedule generation job")
	}
	return job, nil
}

// GetJob returns job state for status polling.
func (s *GenerationService) GetJob(ctx context.Context, id string) (*models.GenerationJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// ExpireResults clears download links of jobs that finished before
// cutoff and removes their artifacts. Signed URLs stop working once the
// TTL passes; this keeps job rows from advertising dead links.
func (s *GenerationService) ExpireResults(ctx context.Context, cutoff time.Time) int {
	if s.exporter == nil {
		return 0
	}
	expired, err := s.jobs.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("failed to list expired generation jobs", zap.Error(err))
		return 0
	}
	cleared := 0
	for _, job := range expired {
		if job.ResultURL == nil {
			continue
		}
		token := path.Base(*job.ResultURL)
		if _, relPath, _, err := s.exporter.ParseToken(token, true); err == nil {
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Warn("failed to delete expired artifact",
					zap.String("job_id", job.ID),
					zap.Error(err))
			}
		}
		if err := s.jobs.Update(ctx, job.ID, repository.UpdateGenerationJobParams{ClearResultURL: true}); err != nil {
			s.logger.Warn("failed to clear expired result url", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		cleared++
	}
	return cleared
}

func (s *GenerationService) handle(ctx context.Context, qj jobs.Job) error {
	job, err := s.jobs.GetByID(ctx, qj.ID)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusFinished || job.Status == models.JobStatusFailed {
		return nil
	}

	processing := models.JobStatusProcessing
	if err := s.jobs.Update(ctx, job.ID, repository.UpdateGenerationJobParams{Status: &processing}); err != nil {
		return err
	}

	result, err := s.aggregator.GenerateReports(ctx, job.Params.ExamGroupID, job.Params.SectionID)
	if err != nil {
		s.failJob(ctx, job.ID, err.Error())
		s.recordFinished(models.JobStatusFailed)
		// Terminal: a deterministic failure does not benefit from queue retries.
		return nil
	}

	var resultURL *string
	if s.exporter != nil {
		artifact, exportErr := s.exporter.Generate(ctx, job)
		if exportErr != nil {
			s.logger.Warn("export artifact generation failed",
				zap.String("job_id", job.ID),
				zap.Error(exportErr))
		} else {
			resultURL = &artifact.URL
		}
	}

	finished := models.JobStatusFinished
	now := time.Now().UTC()
	progress := 100
	succeeded := result.Succeeded
	failed := len(result.Failed)
	update := repository.UpdateGenerationJobParams{
		Status:     &finished,
		Progress:   &progress,
		Succeeded:  &succeeded,
		Failed:     &failed,
		ResultURL:  resultURL,
		FinishedAt: &now,
	}
	if failed > 0 {
		msg := fmt.Sprintf("%d of %d students failed", failed, succeeded+failed)
		update.ErrorMessage = &msg
	}
	if err := s.jobs.Update(ctx, job.ID, update); err != nil {
		return err
	}
	s.recordFinished(models.JobStatusFinished)
	s.logger.Info("generation job finished",
		zap.String("job_id", job.ID),
		zap.String("exam_group_id", job.Params.ExamGroupID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))
	return nil
}

func (s *GenerationService) failJob(ctx context.Context, id, reason string) {
	failedStatus := models.JobStatusFailed
	now := time.Now().UTC()
	update := repository.UpdateGenerationJobParams{
		Status:       &failedStatus,
		ErrorMessage: &reason,
		FinishedAt:   &now,
	}
	if err := s.jobs.Update(ctx, id, update); err != nil {
		s.logger.Error("failed to mark generation job failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *GenerationService) recordFinished(status models.JobStatus) {
	if s.metrics != nil {
		s.metrics.GenerationJobFinished(string(status))
	}
}
