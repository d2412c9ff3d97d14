package driving

import (
	"context"

	"github.com/stratalabs/strata/internal/core/domain"
)

// JobService manages jobs: handles, lifecycle, documents and removal.
type JobService interface {
	// Job returns the handle for the given parameters without touching
	// the store or the filesystem. Works offline.
	Job(params domain.Parameters) (*domain.Job, error)

	// Create seeds the job's workspace and storage directories with
	// manifests and registers the job. Idempotent for existing jobs
	// with intact manifests.
	Create(ctx context.Context, params domain.Parameters) (*domain.Job, error)

	// Open creates the job if needed, registers an open instance and
	// starts its pulse. The returned handle must be closed.
	Open(ctx context.Context, params domain.Parameters) (OpenJob, error)

	// Get resolves a job by full ID or unique prefix.
	Get(ctx context.Context, idOrPrefix string) (*domain.Job, error)

	// List returns all registered jobs.
	List(ctx context.Context) ([]domain.Job, error)

	// Find returns jobs whose parameters and document satisfy the
	// filter. Keys starting with "doc." match document values, all
	// other keys match parameters.
	Find(ctx context.Context, filter domain.Filter) ([]domain.Job, error)

	// Status returns the aggregate status of one job.
	Status(ctx context.Context, idOrPrefix string) (*domain.JobStatus, error)

	// ScanParameters decodes a job's parameters into a caller struct.
	ScanParameters(job *domain.Job, out any) error

	// Remove deletes a job: directories, document, instances, pulses,
	// queue entries. Jobs with open instances require force.
	Remove(ctx context.Context, idOrPrefix string, force bool) error

	// RemoveAll removes every registered job and returns the count.
	RemoveAll(ctx context.Context, force bool) (int, error)

	// Document operations.

	// GetDocument returns a job's whole key/value document.
	GetDocument(ctx context.Context, idOrPrefix string) (map[string]any, error)

	// GetValue returns one document key.
	GetValue(ctx context.Context, idOrPrefix, key string) (any, error)

	// SetValue stores one document key.
	SetValue(ctx context.Context, idOrPrefix, key string, value any) error

	// UnsetValue removes one document key.
	UnsetValue(ctx context.Context, idOrPrefix, key string) error
}

// OpenJob is a live opening of a job: an instance registration plus a
// beating pulse. Close exactly once.
type OpenJob interface {
	// Job returns the underlying job handle.
	Job() *domain.Job

	// InstanceID returns the unique ID of this opening.
	InstanceID() string

	// Close deregisters the instance and stops the pulse.
	Close(ctx context.Context) error

	// CloseWithError is Close plus an error appended to the job's
	// error list, for recording a failed managed run.
	CloseWithError(ctx context.Context, runErr error) error
}

// LockService manages advisory per-job locks.
type LockService interface {
	// Acquire claims a lock per the request, blocking with backoff when
	// requested. Returns domain.ErrLockHeld, domain.ErrLockTimeout or
	// ctx.Err() on failure.
	Acquire(ctx context.Context, req domain.LockRequest) error

	// Release releases a hold taken by Acquire.
	Release(ctx context.Context, name, lockID string) error

	// ForceRelease frees a lock regardless of holder.
	ForceRelease(ctx context.Context, name string) error

	// WithJobLock runs fn while holding the job's lock, blocking until
	// acquired, and releases it afterwards.
	WithJobLock(ctx context.Context, jobID string, fn func(ctx context.Context) error) error

	// List returns all currently held locks.
	List(ctx context.Context) ([]domain.LockState, error)
}
