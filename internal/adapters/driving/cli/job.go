package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	jobCreate bool
	jobShell  bool
)

var jobCmd = &cobra.Command{
	Use:   "job [parameters]",
	Short: "Resolve a job from its parameters",
	Long: `Resolves the job for a parameter set and prints its ID and paths.
Parameters are a JSON object, given inline or as @file.

With --create the job's workspace and storage directories are seeded
and the job is registered. With --shell an interactive shell starts in
the job workspace; the job counts as open for as long as it runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	jobCmd.Flags().BoolVarP(&jobCreate, "create", "c", false, "create and register the job")
	jobCmd.Flags().BoolVarP(&jobShell, "shell", "s", false, "open an interactive shell in the job workspace")
	rootCmd.AddCommand(jobCmd)
}

// parseParameters reads a JSON parameter object from an inline argument
// or, with a leading @, from a file.
func parseParameters(arg string) (domain.Parameters, error) {
	raw := []byte(arg)
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading parameter file: %w", err)
		}
		raw = data
	}

	var params domain.Parameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("%w: parameters must be a JSON object: %v", domain.ErrInvalidInput, err)
	}
	return params, nil
}

func runJob(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}

	params, err := parseParameters(args[0])
	if err != nil {
		return err
	}

	if jobShell {
		return runJobShell(cmd, params)
	}

	var job *domain.Job
	if jobCreate {
		job, err = jobService.Create(cmd.Context(), params)
	} else {
		job, err = jobService.Job(params)
	}
	if err != nil {
		return err
	}

	cmd.Printf("Job ID:    %s\n", job.ID)
	cmd.Printf("Workspace: %s\n", job.Workspace)
	cmd.Printf("Storage:   %s\n", job.Storage)
	if jobCreate {
		cmd.Println("Created.")
	}
	return nil
}

// runJobShell opens the job and starts an interactive shell in its
// workspace. The instance is registered and pulses until the shell
// exits, so the job shows up as active everywhere.
func runJobShell(cmd *cobra.Command, params domain.Parameters) error {
	ctx := cmd.Context()

	open, err := jobService.Open(ctx, params)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck // the shell has already ended; nothing to recover
		_ = open.Close(ctx)
	}()

	job := open.Job()
	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	cmd.Printf("Opening shell in workspace of job %s. Exit to close the job.\n", job.ID)

	proc := exec.CommandContext(ctx, shellPath)
	proc.Dir = job.Workspace
	proc.Env = append(os.Environ(),
		"STRATA_JOB_ID="+job.ID,
		"STRATA_WORKSPACE="+job.Workspace,
		"STRATA_STORAGE="+job.Storage,
	)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr

	if err := proc.Run(); err != nil {
		var exit *exec.ExitError
		if !errors.As(err, &exit) {
			return fmt.Errorf("starting shell: %w", err)
		}
		// A non-zero shell exit is not a job failure.
	}
	return nil
}
