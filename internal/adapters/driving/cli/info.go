package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	infoJobs   string
	infoStatus bool
	infoPulse  bool
	infoQueue  bool
	infoMore   bool
	infoAll    bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show project information",
	Long: `Shows information about the project: registered and active job
counts, the job list, pulse ages and queue counts. Without flags only
the project identity is printed.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().StringVarP(&infoJobs, "jobs", "j", "", "list jobs; give a comma-separated list of IDs or prefixes for a subset")
	infoCmd.Flags().Lookup("jobs").NoOptDefVal = "all"
	infoCmd.Flags().BoolVarP(&infoStatus, "status", "s", false, "print status information")
	infoCmd.Flags().BoolVarP(&infoPulse, "pulse", "p", false, "print job pulse status")
	infoCmd.Flags().BoolVarP(&infoQueue, "queue", "q", false, "print job queue status")
	infoCmd.Flags().BoolVarP(&infoMore, "more", "m", false, "show more details")
	infoCmd.Flags().BoolVarP(&infoAll, "all", "a", false, "show everything")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	if projectService == nil || jobService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	if infoAll {
		infoStatus = true
		infoPulse = true
		infoQueue = true
		if infoJobs == "" {
			infoJobs = "all"
		}
	}

	status, err := projectService.Status(ctx)
	if err != nil {
		return err
	}

	cmd.Println(status.Project.ID)
	if infoMore {
		cmd.Println(status.Project.Root)
	}

	if infoStatus {
		cmd.Printf("%d registered job(s)\n", status.JobCount)
		cmd.Printf("%d active job(s)\n", activeJobCount(status.OpenInstances))
	}

	if infoJobs != "" {
		if err := printJobList(cmd, status.OpenInstances); err != nil {
			return err
		}
	}

	if infoPulse {
		printPulses(cmd, status.Pulses)
	}

	if infoQueue {
		if err := printQueueInfo(cmd, status.Queue); err != nil {
			return err
		}
	}
	return nil
}

// activeJobCount counts distinct jobs with at least one open instance.
func activeJobCount(instances []domain.OpenInstance) int {
	seen := make(map[string]struct{})
	for _, inst := range instances {
		seen[inst.JobID] = struct{}{}
	}
	return len(seen)
}

func printJobList(cmd *cobra.Command, instances []domain.OpenInstance) error {
	ctx := cmd.Context()

	jobs, err := jobService.List(ctx)
	if err != nil {
		return err
	}

	selected := jobs
	if infoJobs != "all" {
		wanted := strings.Split(infoJobs, ",")
		selected = selected[:0]
		var unknown []string
		for _, w := range wanted {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			found := false
			for i := range jobs {
				if strings.HasPrefix(jobs[i].ID, w) {
					selected = append(selected, jobs[i])
					found = true
				}
			}
			if !found {
				unknown = append(unknown, w)
			}
		}
		if len(unknown) > 0 {
			cmd.Printf("Unknown ids: %s\n", strings.Join(unknown, ","))
		}
	}

	open := make(map[string]int)
	for _, inst := range instances {
		open[inst.JobID]++
	}

	if infoStatus {
		cmd.Printf("Job ID%s Open Instances\n", strings.Repeat(" ", 58))
	}
	for i := range selected {
		if infoStatus {
			cmd.Printf("%s %d\n", selected[i].ID, open[selected[i].ID])
		} else {
			cmd.Println(selected[i].ID)
		}
		if infoMore {
			canonical, err := selected[i].Parameters.Canonical()
			if err != nil {
				return err
			}
			cmd.Printf("  %s\n", canonical)
		}
	}
	return nil
}

func printPulses(cmd *cobra.Command, pulses []domain.Pulse) {
	if len(pulses) == 0 {
		cmd.Println("No active jobs found.")
		return
	}
	cmd.Printf("Pulse period (expected): %s.\n", domain.PulsePeriod)
	now := time.Now().UTC()
	for i := range pulses {
		cmd.Printf("UID: %s, last signal: %.2f seconds\n",
			pulses[i].InstanceID, pulses[i].Age(now).Seconds())
	}
}

func printQueueInfo(cmd *cobra.Command, counts domain.QueueCounts) error {
	cmd.Printf("Queued/Active/Aborted/Completed: %d/%d/%d/%d\n",
		counts.Queued, counts.Active, counts.Aborted, counts.Completed)
	if !infoMore || queueService == nil {
		return nil
	}

	for _, state := range []domain.QueueState{
		domain.QueueStateQueued, domain.QueueStateActive,
		domain.QueueStateCompleted, domain.QueueStateAborted,
	} {
		entries, err := queueService.List(cmd.Context(), state)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			continue
		}
		cmd.Printf("%s:\n", state.Description())
		for i := range entries {
			printQueueEntry(cmd, &entries[i])
		}
	}
	return nil
}

func printQueueEntry(cmd *cobra.Command, e *domain.QueueEntry) {
	cmd.Printf("  #%d job %s: %s\n", e.ID, shortJobID(e.JobID), e.Task)
	if e.Error != "" {
		cmd.Printf("    error: %s\n", e.Error)
	}
}

// shortJobID abbreviates a job ID for display.
func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
