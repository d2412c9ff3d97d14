package driven

import (
	"context"

	"github.com/stratalabs/strata/internal/core/domain"
)

// JobRegistry persists registered jobs and their open instances.
// Backed by SQLite for metadata storage.
type JobRegistry interface {
	// SaveJob stores or updates a job registration.
	SaveJob(ctx context.Context, job *domain.Job) error

	// GetJob retrieves a job by its full ID.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// FindJobByPrefix resolves a unique job ID prefix.
	// Returns domain.ErrNotFound when nothing matches and
	// domain.ErrInvalidInput when the prefix is ambiguous.
	FindJobByPrefix(ctx context.Context, prefix string) (*domain.Job, error)

	// ListJobs returns all registered jobs.
	ListJobs(ctx context.Context) ([]domain.Job, error)

	// DeleteJob removes a job registration.
	DeleteJob(ctx context.Context, id string) error

	// AddInstance registers an open instance of a job.
	AddInstance(ctx context.Context, inst *domain.OpenInstance) error

	// RemoveInstance removes one open instance.
	RemoveInstance(ctx context.Context, instanceID string) error

	// ListInstances returns the open instances of one job.
	ListInstances(ctx context.Context, jobID string) ([]domain.OpenInstance, error)

	// ListAllInstances returns every open instance in the project.
	ListAllInstances(ctx context.Context) ([]domain.OpenInstance, error)
}
