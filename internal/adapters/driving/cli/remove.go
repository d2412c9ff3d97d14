package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	removeJobs    []string
	removeProject bool
	removeLogs    bool
	removeQueue   bool
	removeQueued  bool
	removeRelease bool
	removeForce   bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove jobs, logs or queue entries",
	Long: `Removes selected parts of the project. Jobs are selected by ID or
prefix with --job; 'all' selects every job. Removal cascades to the
job document, queue entries, pulses, locks and both directories.

Jobs with open instances are only removed with --force.`,
	Args: cobra.NoArgs,
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringSliceVarP(&removeJobs, "job", "j", nil,
		"remove jobs matching these IDs or prefixes; 'all' selects every job")
	removeCmd.Flags().BoolVarP(&removeProject, "project", "p", false, "remove the whole project state")
	removeCmd.Flags().BoolVarP(&removeLogs, "logs", "l", false, "remove all project logs")
	removeCmd.Flags().BoolVarP(&removeQueue, "queue", "q", false, "clear the queue results")
	removeCmd.Flags().BoolVar(&removeQueued, "queued", false, "clear entries still waiting for a worker")
	removeCmd.Flags().BoolVarP(&removeRelease, "release", "r", false, "release the locks of selected jobs instead of removing them")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "ignore open instances, may lose data")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, _ []string) error {
	if projectService == nil || jobService == nil || queueService == nil {
		return errNotConfigured
	}

	if !removeProject && len(removeJobs) == 0 && !removeLogs && !removeQueue && !removeQueued {
		cmd.Println("Nothing selected for removal.")
		return nil
	}

	if removeProject {
		if err := removeWholeProject(cmd); err != nil {
			return err
		}
	}
	if len(removeJobs) > 0 {
		if err := removeSelectedJobs(cmd); err != nil {
			return err
		}
	}
	if removeLogs {
		if err := clearProjectLogs(cmd); err != nil {
			return err
		}
	}
	if removeQueue {
		if err := clearQueueResults(cmd); err != nil {
			return err
		}
	}
	if removeQueued {
		if err := clearQueuedEntries(cmd); err != nil {
			return err
		}
	}
	return nil
}

func removeWholeProject(cmd *cobra.Command) error {
	ctx := cmd.Context()
	project := projectService.Project()

	if !confirm(cmd, fmt.Sprintf("Are you sure you want to remove project '%s'?", project.ID)) {
		return nil
	}

	count, err := jobService.RemoveAll(ctx, removeForce)
	if errors.Is(err, domain.ErrJobOpen) && !removeForce {
		cmd.Println("Error during project removal.")
		cmd.Println("This can be caused by currently executed jobs.")
		cmd.Println("Try 'strata cleanup'.")
		if !confirm(cmd, "Ignore this warning and remove anyway?") {
			return nil
		}
		count, err = jobService.RemoveAll(ctx, true)
	}
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d job(s). Project removed from store.\n", count)
	return nil
}

func removeSelectedJobs(cmd *cobra.Command) error {
	ctx := cmd.Context()

	match, err := expandJobSelection(cmd, ctx, removeJobs)
	if err != nil {
		return err
	}

	if removeRelease {
		cmd.Printf("%d job(s) selected for release.\n", len(match))
		if lockService == nil {
			return errNotConfigured
		}
		for _, id := range match {
			if err := lockService.ForceRelease(ctx, id); err != nil {
				return fmt.Errorf("releasing lock of job %s: %w", shortJobID(id), err)
			}
		}
		cmd.Println("Released selected jobs.")
		return nil
	}

	cmd.Printf("%d job(s) selected for removal.\n", len(match))
	if len(match) == 0 {
		return nil
	}
	if !confirm(cmd, "Are you sure you want to delete the selected jobs?") {
		return nil
	}
	for _, id := range match {
		if err := jobService.Remove(ctx, id, removeForce); err != nil {
			return fmt.Errorf("removing job %s: %w", shortJobID(id), err)
		}
	}
	cmd.Println("Removed selected jobs.")
	return nil
}

// expandJobSelection resolves a list of IDs or prefixes against the
// registered jobs. The special value 'all' selects everything. Unknown
// selectors are reported, not fatal.
func expandJobSelection(cmd *cobra.Command, ctx context.Context, selectors []string) ([]string, error) {
	jobs, err := jobService.List(ctx)
	if err != nil {
		return nil, err
	}

	if len(selectors) == 1 && selectors[0] == "all" {
		ids := make([]string, 0, len(jobs))
		for i := range jobs {
			ids = append(ids, jobs[i].ID)
		}
		return ids, nil
	}

	seen := make(map[string]struct{})
	var match []string
	var unknown []string
	for _, sel := range selectors {
		found := false
		for i := range jobs {
			if strings.HasPrefix(jobs[i].ID, sel) {
				if _, dup := seen[jobs[i].ID]; !dup {
					seen[jobs[i].ID] = struct{}{}
					match = append(match, jobs[i].ID)
				}
				found = true
			}
		}
		if !found {
			unknown = append(unknown, sel)
		}
	}
	if len(unknown) > 0 {
		cmd.Printf("Unknown ids: %s\n", strings.Join(unknown, ","))
	}
	return match, nil
}

func clearProjectLogs(cmd *cobra.Command) error {
	project := projectService.Project()
	if !confirm(cmd, fmt.Sprintf("Are you sure you want to clear all logs from project '%s'?", project.ID)) {
		return nil
	}
	count, err := projectService.ClearLogs(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d log record(s).\n", count)
	return nil
}

func clearQueueResults(cmd *cobra.Command) error {
	project := projectService.Project()
	if !confirm(cmd, fmt.Sprintf("Are you sure you want to clear the queue results of project '%s'?", project.ID)) {
		return nil
	}
	count, err := queueService.ClearResults(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Cleared %d queue result(s).\n", count)
	return nil
}

func clearQueuedEntries(cmd *cobra.Command) error {
	ctx := cmd.Context()
	project := projectService.Project()

	if status, err := projectService.Status(ctx); err == nil && len(status.OpenInstances) > 0 {
		cmd.Println("Project has indication of active jobs!")
	}
	if !confirm(cmd, fmt.Sprintf("Are you sure you want to clear the queue of project '%s'?", project.ID)) {
		return nil
	}
	count, err := queueService.ClearQueued(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Cleared %d queued entries.\n", count)
	return nil
}
