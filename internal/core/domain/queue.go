package domain

import "time"

const unknownDescription = "Unknown"

// QueueState is the lifecycle state of a queue entry.
type QueueState string

// Queue entry states.
const (
	// QueueStateQueued means the entry waits for a worker.
	QueueStateQueued QueueState = "queued"

	// QueueStateActive means a worker has claimed the entry.
	QueueStateActive QueueState = "active"

	// QueueStateCompleted means the task finished without error.
	QueueStateCompleted QueueState = "completed"

	// QueueStateAborted means the task failed or was cancelled.
	QueueStateAborted QueueState = "aborted"
)

// IsValid returns true if the state is recognised.
func (s QueueState) IsValid() bool {
	switch s {
	case QueueStateQueued, QueueStateActive, QueueStateCompleted, QueueStateAborted:
		return true
	default:
		return false
	}
}

// Terminal returns true for states no worker will touch again.
func (s QueueState) Terminal() bool {
	return s == QueueStateCompleted || s == QueueStateAborted
}

// String returns the string representation.
func (s QueueState) String() string {
	return string(s)
}

// Description returns a human-readable description of the state.
func (s QueueState) Description() string {
	switch s {
	case QueueStateQueued:
		return "Queued (waiting for a worker)"
	case QueueStateActive:
		return "Active (claimed by a worker)"
	case QueueStateCompleted:
		return "Completed"
	case QueueStateAborted:
		return "Aborted (failed or cancelled)"
	default:
		return unknownDescription
	}
}

// QueueEntry is one queued task execution against a job.
type QueueEntry struct {
	// ID is assigned by the store on enqueue.
	ID int64

	// JobID is the job the task runs against.
	JobID string

	// Task is the command line executed in the job workspace.
	Task string

	// State is the lifecycle state.
	State QueueState

	// WorkerID identifies the claiming worker while active.
	WorkerID string

	// Error holds the failure detail for aborted entries.
	Error string

	// EnqueuedAt, StartedAt and EndedAt trace the lifecycle.
	EnqueuedAt time.Time
	StartedAt  time.Time
	EndedAt    time.Time
}

// QueueCounts summarises the queue for info displays.
type QueueCounts struct {
	Queued    int
	Active    int
	Completed int
	Aborted   int
}

// Total returns the number of entries across all states.
func (c QueueCounts) Total() int {
	return c.Queued + c.Active + c.Completed + c.Aborted
}
