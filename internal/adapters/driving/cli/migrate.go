package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade the project to the current schema version",
	Long: `Upgrades the project schema. Jobs whose IDs change under the new
hashing rule are re-keyed and their directories moved. The migration
refuses to run while any job is open.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errNotConfigured
	}

	project := projectService.Project()
	current := domain.MustSchemaVersion(domain.SchemaVersionCurrent)
	if project.SchemaVersion.Compare(current) == 0 {
		cmd.Printf("Project is already at schema version %s.\n", current)
		return nil
	}

	question := fmt.Sprintf("Migrate project '%s' from schema %s to %s? Make a snapshot first.",
		project.ID, project.SchemaVersion, current)
	if !confirm(cmd, question) {
		return nil
	}

	moved, err := projectService.Migrate(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Migrated to schema version %s, re-keyed %d job(s).\n", current, moved)
	return nil
}
