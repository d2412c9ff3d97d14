package driven

import "context"

// TaskRunner executes queued task commands. Implementations run the
// command in the job's workspace with the job environment applied.
type TaskRunner interface {
	// Run executes command in workdir and returns its combined output.
	// env entries are KEY=VALUE pairs appended to the process
	// environment. Cancelling the context kills the process.
	Run(ctx context.Context, workdir, command string, env []string) (string, error)
}
