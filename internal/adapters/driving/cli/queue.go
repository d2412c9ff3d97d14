package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	queueWorkers   int
	queueDrain     bool
	queueListState string
	queueClrQueued bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the task queue",
	Long: `The task queue runs shell commands against jobs. Each claimed task
opens its job, takes the job lock and runs in the job workspace with
STRATA_JOB_ID, STRATA_WORKSPACE and STRATA_STORAGE set.`,
}

var queueAddCmd = &cobra.Command{
	Use:   "add [job] [task...]",
	Short: "Enqueue a task for a job",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQueueAdd,
}

var queueWorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Run queue workers",
	Long: `Runs workers that claim queued entries and execute them. Without
--drain the workers keep polling for new tasks until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runQueueWork,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue entries",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear finished queue entries",
	Long:  `Removes completed and aborted entries. With --queued the entries still waiting for a worker are removed instead.`,
	Args:  cobra.NoArgs,
	RunE:  runQueueClear,
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkers, "workers", "n", 1, "number of workers")
	queueWorkCmd.Flags().BoolVar(&queueDrain, "drain", false, "exit when the queue is empty")
	queueListCmd.Flags().StringVarP(&queueListState, "state", "s", "", "only list entries in this state")
	queueClearCmd.Flags().BoolVar(&queueClrQueued, "queued", false, "clear pending entries instead of results")
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueWorkCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	if queueService == nil {
		return errNotConfigured
	}

	task := strings.Join(args[1:], " ")
	entry, err := queueService.Enqueue(cmd.Context(), args[0], task)
	if err != nil {
		return err
	}
	cmd.Printf("Enqueued #%d for job %s.\n", entry.ID, shortJobID(entry.JobID))
	return nil
}

func runQueueWork(cmd *cobra.Command, _ []string) error {
	if queueService == nil {
		return errNotConfigured
	}
	if queueWorkers < 1 {
		return fmt.Errorf("%w: at least one worker is required", domain.ErrInvalidInput)
	}

	if queueDrain {
		cmd.Printf("Draining the queue with %d worker(s).\n", queueWorkers)
	} else {
		cmd.Printf("Working the queue with %d worker(s). Interrupt to stop.\n", queueWorkers)
	}

	if err := queueService.Work(cmd.Context(), queueWorkers, queueDrain); err != nil {
		return err
	}

	counts, err := queueService.Counts(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Done. Completed/Aborted: %d/%d.\n", counts.Completed, counts.Aborted)
	return nil
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	if queueService == nil {
		return errNotConfigured
	}

	state := domain.QueueState(queueListState)
	if queueListState != "" && !state.IsValid() {
		return fmt.Errorf("%w: unknown queue state %q", domain.ErrInvalidInput, queueListState)
	}

	entries, err := queueService.List(cmd.Context(), state)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("Queue is empty.")
		return nil
	}
	for i := range entries {
		e := &entries[i]
		cmd.Printf("#%d [%s] job %s: %s\n", e.ID, e.State, shortJobID(e.JobID), e.Task)
		if e.Error != "" {
			cmd.Printf("  error: %s\n", e.Error)
		}
	}
	return nil
}

func runQueueClear(cmd *cobra.Command, _ []string) error {
	if queueService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	if queueClrQueued {
		count, err := queueService.ClearQueued(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Cleared %d queued entries.\n", count)
		return nil
	}

	count, err := queueService.ClearResults(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Cleared %d result(s).\n", count)
	return nil
}
