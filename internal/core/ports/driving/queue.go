package driving

import (
	"context"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
)

// QueueService manages the task queue and its workers.
type QueueService interface {
	// Enqueue adds a task execution for a job.
	Enqueue(ctx context.Context, jobIDOrPrefix, task string) (*domain.QueueEntry, error)

	// Work runs the given number of workers until the context is
	// cancelled, or until the queue drains when drain is set. Each
	// worker claims entries, takes the job lock, runs the task in the
	// job workspace and records the outcome.
	Work(ctx context.Context, workers int, drain bool) error

	// Counts returns per-state entry counts.
	Counts(ctx context.Context) (domain.QueueCounts, error)

	// List returns entries in a state, oldest first. Empty state lists
	// everything.
	List(ctx context.Context, state domain.QueueState) ([]domain.QueueEntry, error)

	// ClearResults removes completed and aborted entries.
	ClearResults(ctx context.Context) (int, error)

	// ClearQueued removes entries still waiting for a worker.
	ClearQueued(ctx context.Context) (int, error)

	// WorkerStatuses reports the live state of the worker pool.
	WorkerStatuses() []WorkerStatus
}

// WorkerStatus is the live state of one queue worker.
type WorkerStatus struct {
	// WorkerID identifies the worker within the pool.
	WorkerID string

	// EntryID is the claimed entry, zero when idle.
	EntryID int64

	// JobID is the job of the claimed entry, empty when idle.
	JobID string

	// StartedAt is when the current entry was claimed.
	StartedAt time.Time
}
