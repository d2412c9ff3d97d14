package cli

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the project self-checks",
	Long: `Runs the project self-checks: configuration, workspace and storage
directories, the project store and the coordination backend. A failing
check is reported and the command exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errNotConfigured
	}

	results, err := projectService.Check(cmd.Context())
	if err != nil {
		return err
	}

	lines := make([]checkLine, 0, len(results))
	for _, r := range results {
		lines = append(lines, checkLine{name: r.Name, err: r.Err})
	}
	return printCheckResults(cmd, lines)
}
