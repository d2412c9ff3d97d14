package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var cleanupTolerance int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Kill jobs without sign of life",
	Long: `Removes instance registrations whose pulse is older than the
tolerance, force-releases their locks and appends an error to their
jobs. Tolerances at or below the pulse period are refused because they
would kill live jobs.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVarP(&cleanupTolerance, "tolerance-time", "t",
		int(domain.DefaultPulseTolerance/time.Second),
		"tolerated seconds since the last pulse before an instance counts as dead")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errNotConfigured
	}

	tolerance := time.Duration(cleanupTolerance) * time.Second
	cmd.Printf("Killing all jobs without sign of life for more than %d seconds.\n", cleanupTolerance)

	dead, err := projectService.Cleanup(cmd.Context(), tolerance)
	if err != nil {
		return err
	}

	if len(dead) == 0 {
		cmd.Println("No dead jobs found.")
		return nil
	}
	for _, d := range dead {
		cmd.Printf("Killed instance %s of job %s (last signal %s ago).\n",
			d.Instance.InstanceID, shortJobID(d.Instance.JobID),
			time.Since(d.LastBeat).Round(time.Second))
	}
	cmd.Printf("Killed %d instance(s).\n", len(dead))
	return nil
}
