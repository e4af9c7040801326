package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/reportcard-api/internal/models"
	"github.com/campuskit/reportcard-api/internal/repository"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
	"github.com/campuskit/reportcard-api/pkg/jobs"
)

type mockJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.GenerationJob
}

func (m *mockJobStore) Create(ctx context.Context, job *models.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = make(map[string]models.GenerationJob)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", len(m.jobs)+1)
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		clone := job
		return &clone, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
}

func (m *mockJobStore) Update(ctx context.Context, id string, params repository.UpdateGenerationJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.Succeeded != nil {
		job.Succeeded = *params.Succeeded
	}
	if params.Failed != nil {
		job.Failed = *params.Failed
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	} else if params.ClearResultURL {
		job.ResultURL = nil
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	m.jobs[id] = job
	return nil
}

func (m *mockJobStore) ListQueued(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var queued []models.GenerationJob
	for _, job := range m.jobs {
		if job.Status == models.JobStatusQueued {
			queued = append(queued, job)
		}
	}
	return queued, nil
}

func (m *mockJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var finished []models.GenerationJob
	for _, job := range m.jobs {
		if job.Status == models.JobStatusFinished && job.ResultURL != nil &&
			job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, job)
		}
	}
	return finished, nil
}

type mockBulkGenerator struct {
	mu     sync.Mutex
	called int
	result *models.BatchResult
	err    error
}

func (m *mockBulkGenerator) GenerateReports(ctx context.Context, examGroupID string, sectionID *string) (*models.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called++
	if m.err != nil {
		return nil, m.err
	}
	result := *m.result
	return &result, nil
}

type mockArtifactExporter struct {
	result  *ExportResult
	err     error
	deleted []string
}

func (m *mockArtifactExporter) Generate(ctx context.Context, job *models.GenerationJob) (*ExportResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockArtifactExporter) ParseToken(token string, allowExpired bool) (string, string, time.Time, error) {
	return "job-1", "job-1/register.csv", time.Now(), nil
}

func (m *mockArtifactExporter) Delete(relPath string) error {
	m.deleted = append(m.deleted, relPath)
	return nil
}

func seedJob(t *testing.T, store *mockJobStore) *models.GenerationJob {
	t.Helper()
	job := &models.GenerationJob{
		Params:    models.GenerationJobParams{ExamGroupID: "eg-1", Format: models.ExportFormatCSV},
		Status:    models.JobStatusQueued,
		CreatedBy: "admin",
	}
	require.NoError(t, store.Create(context.Background(), job))
	return job
}

func TestGenerationEnqueueRequiresExamGroup(t *testing.T) {
	svc := NewGenerationService(&mockJobStore{}, &mockBulkGenerator{}, nil, nil, GenerationServiceConfig{}, nil)

	_, err := svc.Enqueue(context.Background(), models.GenerationJobParams{}, "admin")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestGenerationHandleFinishesJob(t *testing.T) {
	store := &mockJobStore{}
	job := seedJob(t, store)
	generator := &mockBulkGenerator{result: &models.BatchResult{
		ExamGroupID: "eg-1",
		Succeeded:   28,
		Failed:      []models.BatchFailure{{StudentID: "s9", Reason: "no marks"}},
	}}
	exporter := &mockArtifactExporter{result: &ExportResult{URL: "/api/v1/export/tok-1"}}
	svc := NewGenerationService(store, generator, exporter, nil, GenerationServiceConfig{}, nil)

	require.NoError(t, svc.handle(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, 28, stored.Succeeded)
	assert.Equal(t, 1, stored.Failed)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/export/tok-1", *stored.ResultURL)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "1 of 29 students failed")
	require.NotNil(t, stored.FinishedAt)
}

func TestGenerationHandleMarksFailureTerminal(t *testing.T) {
	store := &mockJobStore{}
	job := seedJob(t, store)
	generator := &mockBulkGenerator{err: fmt.Errorf("exam group not found")}
	svc := NewGenerationService(store, generator, nil, nil, GenerationServiceConfig{}, nil)

	// A deterministic aggregation failure must not bounce through queue
	// retries, so handle reports success to the queue.
	require.NoError(t, svc.handle(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "exam group not found")
}

func TestGenerationHandleSkipsSettledJob(t *testing.T) {
	store := &mockJobStore{}
	job := seedJob(t, store)
	finished := models.JobStatusFinished
	require.NoError(t, store.Update(context.Background(), job.ID, repository.UpdateGenerationJobParams{Status: &finished}))
	generator := &mockBulkGenerator{result: &models.BatchResult{}}
	svc := NewGenerationService(store, generator, nil, nil, GenerationServiceConfig{}, nil)

	require.NoError(t, svc.handle(context.Background(), jobs.Job{ID: job.ID}))
	assert.Equal(t, 0, generator.called)
}

func TestGenerationHandleExportFailureIsNonFatal(t *testing.T) {
	store := &mockJobStore{}
	job := seedJob(t, store)
	generator := &mockBulkGenerator{result: &models.BatchResult{ExamGroupID: "eg-1", Succeeded: 5}}
	exporter := &mockArtifactExporter{err: fmt.Errorf("disk full")}
	svc := NewGenerationService(store, generator, exporter, nil, GenerationServiceConfig{}, nil)

	require.NoError(t, svc.handle(context.Background(), jobs.Job{ID: job.ID}))

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFinished, stored.Status)
	assert.Nil(t, stored.ResultURL)
}

func TestGenerationEnqueueAndProcess(t *testing.T) {
	store := &mockJobStore{}
	generator := &mockBulkGenerator{result: &models.BatchResult{ExamGroupID: "eg-1", Succeeded: 3}}
	svc := NewGenerationService(store, generator, nil, nil, GenerationServiceConfig{Workers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(ctx, models.GenerationJobParams{ExamGroupID: "eg-1"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, job.Params.Format)

	require.Eventually(t, func() bool {
		stored, err := store.GetByID(context.Background(), job.ID)
		return err == nil && stored.Status == models.JobStatusFinished
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGenerationStartRecoversQueuedJobs(t *testing.T) {
	store := &mockJobStore{}
	job := seedJob(t, store)
	generator := &mockBulkGenerator{result: &models.BatchResult{ExamGroupID: "eg-1", Succeeded: 1}}
	svc := NewGenerationService(store, generator, nil, nil, GenerationServiceConfig{Workers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.Eventually(t, func() bool {
		stored, err := store.GetByID(context.Background(), job.ID)
		return err == nil && stored.Status == models.JobStatusFinished
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGenerationExpireResultsClearsLinks(t *testing.T) {
	store := &mockJobStore{}
	job := seedJob(t, store)
	finished := models.JobStatusFinished
	url := "/api/v1/export/tok-1"
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Update(context.Background(), job.ID, repository.UpdateGenerationJobParams{
		Status:     &finished,
		ResultURL:  &url,
		FinishedAt: &past,
	}))

	exporter := &mockArtifactExporter{}
	svc := NewGenerationService(store, &mockBulkGenerator{}, exporter, nil, GenerationServiceConfig{}, nil)

	cleared := svc.ExpireResults(context.Background(), time.Now().Add(-24*time.Hour))
	require.Equal(t, 1, cleared)
	assert.Equal(t, []string{"job-1/register.csv"}, exporter.deleted)

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResultURL)

	// A second sweep finds nothing left to clear.
	require.Zero(t, svc.ExpireResults(context.Background(), time.Now()))
}
