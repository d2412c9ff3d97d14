package cli

import (
	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driving/watch"
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and keep the registry consistent",
	Long: `Watch the workspace directory for job directories added or removed
outside strata.

A directory that appears with a valid manifest is registered as a job.
A registered job whose directory disappears is reported but never
removed from the registry; use 'strata remove' for that.

Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if projectService == nil || jobService == nil {
		return errNotConfigured
	}
	project := projectService.Project()

	watcher := watch.New(project, jobService, func(e watch.Event) {
		switch e.Type {
		case watch.EventRegistered:
			cmd.Printf("Registered job %.8s from %s.\n", e.JobID, e.Path)
		case watch.EventMissing:
			cmd.Printf("Job %.8s has no workspace directory (%s).\n", e.JobID, e.Path)
		case watch.EventUnknown:
			cmd.Printf("Ignoring directory without manifest: %s.\n", e.Path)
		case watch.EventForeign:
			cmd.Printf("Ignoring directory of another project: %s.\n", e.Path)
		case watch.EventCorrupt:
			cmd.Printf("Corrupt manifest in %s: %v.\n", e.Path, e.Err)
		case watch.EventError:
			cmd.Printf("Error reconciling %s: %v.\n", e.Path, e.Err)
		}
	})

	cmd.Printf("Watching %s. Interrupt to stop.\n", project.WorkspaceDir)
	return watcher.Run(cmd.Context())
}
