package tui

import (
	"context"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// mockProjectService is a mock implementation of driving.ProjectService.
type mockProjectService struct {
	project *domain.Project
	status  *driving.ProjectStatus
	err     error
}

func (m *mockProjectService) Project() *domain.Project { return m.project }

func (m *mockProjectService) Status(_ context.Context) (*driving.ProjectStatus, error) {
	return m.status, m.err
}

func (m *mockProjectService) Check(_ context.Context) ([]driving.CheckResult, error) {
	return nil, m.err
}

func (m *mockProjectService) Cleanup(_ context.Context, _ time.Duration) ([]domain.DeadInstance, error) {
	return nil, m.err
}

func (m *mockProjectService) Log(_ context.Context, _ domain.LogLevel, _ int) ([]domain.LogRecord, error) {
	return nil, m.err
}

func (m *mockProjectService) ClearLogs(_ context.Context) (int, error) { return 0, m.err }

func (m *mockProjectService) Migrate(_ context.Context) (int, error) { return 0, m.err }

// mockJobService is a mock implementation of driving.JobService.
type mockJobService struct {
	jobs []domain.Job
	err  error
}

func (m *mockJobService) Job(_ domain.Parameters) (*domain.Job, error) { return nil, m.err }

func (m *mockJobService) Create(_ context.Context, _ domain.Parameters) (*domain.Job, error) {
	return nil, m.err
}

func (m *mockJobService) Open(_ context.Context, _ domain.Parameters) (driving.OpenJob, error) {
	return nil, m.err
}

func (m *mockJobService) Get(_ context.Context, _ string) (*domain.Job, error) {
	return nil, m.err
}

func (m *mockJobService) List(_ context.Context) ([]domain.Job, error) {
	return m.jobs, m.err
}

func (m *mockJobService) Find(_ context.Context, _ domain.Filter) ([]domain.Job, error) {
	return m.jobs, m.err
}

func (m *mockJobService) Status(_ context.Context, _ string) (*domain.JobStatus, error) {
	return nil, m.err
}

func (m *mockJobService) ScanParameters(_ *domain.Job, _ any) error { return m.err }

func (m *mockJobService) Remove(_ context.Context, _ string, _ bool) error { return m.err }

func (m *mockJobService) RemoveAll(_ context.Context, _ bool) (int, error) { return 0, m.err }

func (m *mockJobService) GetDocument(_ context.Context, _ string) (map[string]any, error) {
	return nil, m.err
}

func (m *mockJobService) GetValue(_ context.Context, _, _ string) (any, error) {
	return nil, m.err
}

func (m *mockJobService) SetValue(_ context.Context, _, _ string, _ any) error { return m.err }

func (m *mockJobService) UnsetValue(_ context.Context, _, _ string) error { return m.err }

// mockQueueService is a mock implementation of driving.QueueService.
type mockQueueService struct {
	counts  domain.QueueCounts
	entries []domain.QueueEntry
	err     error
}

func (m *mockQueueService) Enqueue(_ context.Context, _, _ string) (*domain.QueueEntry, error) {
	return nil, m.err
}

func (m *mockQueueService) Work(_ context.Context, _ int, _ bool) error { return m.err }

func (m *mockQueueService) Counts(_ context.Context) (domain.QueueCounts, error) {
	return m.counts, m.err
}

func (m *mockQueueService) List(_ context.Context, _ domain.QueueState) ([]domain.QueueEntry, error) {
	return m.entries, m.err
}

func (m *mockQueueService) ClearResults(_ context.Context) (int, error) { return 0, m.err }

func (m *mockQueueService) ClearQueued(_ context.Context) (int, error) { return 0, m.err }

func (m *mockQueueService) WorkerStatuses() []driving.WorkerStatus { return nil }
