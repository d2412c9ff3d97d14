// Package shell runs queued task commands through the system shell.
package shell

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure Runner implements the interface.
var _ driven.TaskRunner = (*Runner)(nil)

// Runner executes commands with `sh -c` in a given working directory.
type Runner struct {
	shell string
}

// NewRunner creates a shell task runner. The SHELL environment variable
// overrides the default /bin/sh.
func NewRunner() *Runner {
	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = "/bin/sh"
	}
	return &Runner{shell: sh}
}

// Run executes command in workdir and returns its combined output.
// Cancelling the context kills the process group.
func (r *Runner) Run(ctx context.Context, workdir, command string, env []string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", nil
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", command) // #nosec G204 -- task commands are user-authored by design
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = nil

	out, err := cmd.CombinedOutput()
	return string(out), err
}
