package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stratalabs/strata/internal/adapters/driving/tui"
)

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a live dashboard of the project",
	Long: `Show a live terminal dashboard of the project.

The dashboard refreshes continuously and has three tabs: an overview
with open instances, pulses and locks, the job list with a parameter
filter, and the task queue.

Controls:
  tab/shift+tab - Switch tabs
  ↑/k, ↓/j      - Navigate lists
  /             - Filter jobs
  r             - Refresh now
  ?             - Help
  q             - Quit`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errNotConfigured
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the status dashboard needs an interactive terminal")
	}

	// Keep panics readable after the alt screen is torn down.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in dashboard: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(tui.NewPorts(projectService, jobService, queueService))
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	if err := app.WithContext(cmd.Context()).Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	return nil
}
