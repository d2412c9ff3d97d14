package driven

import (
	"context"

	"github.com/stratalabs/strata/internal/core/domain"
)

// QueueStore persists the task queue.
type QueueStore interface {
	// Enqueue stores a new entry in the queued state and assigns its ID.
	Enqueue(ctx context.Context, entry *domain.QueueEntry) error

	// Put stores an entry verbatim, keeping its ID, state and
	// timestamps. Snapshot restore uses it to carry queue history over.
	Put(ctx context.Context, entry *domain.QueueEntry) error

	// Claim atomically moves the oldest queued entry to active for the
	// given worker. Returns domain.ErrNotFound when the queue is empty.
	Claim(ctx context.Context, workerID string) (*domain.QueueEntry, error)

	// Finish moves an active entry to completed or aborted.
	Finish(ctx context.Context, entryID int64, state domain.QueueState, errMsg string) error

	// Get retrieves an entry by ID.
	Get(ctx context.Context, entryID int64) (*domain.QueueEntry, error)

	// List returns entries in the given state, oldest first.
	// An empty state lists everything.
	List(ctx context.Context, state domain.QueueState) ([]domain.QueueEntry, error)

	// Counts returns per-state entry counts.
	Counts(ctx context.Context) (domain.QueueCounts, error)

	// ClearState removes all entries in the given state.
	ClearState(ctx context.Context, state domain.QueueState) (int, error)

	// DeleteByJob removes all entries of one job, any state.
	DeleteByJob(ctx context.Context, jobID string) (int, error)
}
