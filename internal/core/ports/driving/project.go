package driving

import (
	"context"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
)

// ProjectService manages the project as a whole.
type ProjectService interface {
	// Project returns the descriptor of the configured project.
	Project() *domain.Project

	// Status aggregates the numbers the info and status commands show.
	Status(ctx context.Context) (*ProjectStatus, error)

	// Check runs the project self-checks in order and returns one
	// result per check. A failing check is a result, not an error;
	// the error return covers inability to run at all.
	Check(ctx context.Context) ([]CheckResult, error)

	// Cleanup kills instances whose pulse is older than the tolerance:
	// their registrations are removed, their locks force-released and
	// an error is appended to their jobs. Refuses tolerances at or
	// below the pulse period.
	Cleanup(ctx context.Context, tolerance time.Duration) ([]domain.DeadInstance, error)

	// Log returns recent project log records at or above minLevel.
	Log(ctx context.Context, minLevel domain.LogLevel, limit int) ([]domain.LogRecord, error)

	// ClearLogs removes all project log records.
	ClearLogs(ctx context.Context) (int, error)

	// Migrate upgrades the project to the current schema version,
	// re-keying jobs whose IDs change under the new hashing rule and
	// moving their directories. Returns the number of re-keyed jobs.
	// Refuses to run while any job is open.
	Migrate(ctx context.Context) (int, error)
}

// ProjectStatus is the aggregate view of a project.
type ProjectStatus struct {
	// Project is the descriptor.
	Project domain.Project

	// JobCount is the number of registered jobs.
	JobCount int

	// OpenInstances lists all live openings across jobs.
	OpenInstances []domain.OpenInstance

	// Pulses lists the recorded heartbeats.
	Pulses []domain.Pulse

	// Queue summarises the task queue.
	Queue domain.QueueCounts

	// HeldLocks lists currently held job locks.
	HeldLocks []domain.LockState
}

// CheckResult is the outcome of one named self-check.
type CheckResult struct {
	// Name identifies the check, e.g. "workspace directory".
	Name string

	// Err is nil when the check passed.
	Err error
}

// OK reports whether the check passed.
func (r CheckResult) OK() bool {
	return r.Err == nil
}
