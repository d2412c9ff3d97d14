package cli

import (
	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("strata version %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
