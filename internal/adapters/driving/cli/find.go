package cli

import (
	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var findMore bool

var findCmd = &cobra.Command{
	Use:   "find [filter]",
	Short: "List jobs matching a filter",
	Long: `Lists the IDs of jobs whose parameters match the filter, a JSON
object given inline or as @file. Keys with the 'doc.' prefix match the
job document instead of the parameters. Without a filter every
registered job is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFind,
}

func init() {
	findCmd.Flags().BoolVarP(&findMore, "more", "m", false, "print parameters next to each job ID")
	rootCmd.AddCommand(findCmd)
}

// parseFilter reads a JSON filter object from an inline argument or,
// with a leading @, from a file.
func parseFilter(arg string) (domain.Filter, error) {
	params, err := parseParameters(arg)
	if err != nil {
		return nil, err
	}
	return domain.Filter(params), nil
}

func runFind(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}

	var filter domain.Filter
	if len(args) > 0 {
		f, err := parseFilter(args[0])
		if err != nil {
			return err
		}
		filter = f
	}

	jobs, err := jobService.Find(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}
	for i := range jobs {
		if findMore {
			canonical, err := jobs[i].Parameters.Canonical()
			if err != nil {
				return err
			}
			cmd.Printf("%s %s\n", jobs[i].ID, canonical)
		} else {
			cmd.Println(jobs[i].ID)
		}
	}
	return nil
}
