package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driven/config/file"
	"github.com/stratalabs/strata/internal/adapters/driven/storage/sqlite"
	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	initWorkspaceDir string
	initStorageDir   string
)

var initCmd = &cobra.Command{
	Use:   "init [project-id]",
	Short: "Initialise a project in the current directory",
	Long: `Creates the project configuration, the workspace and storage
directories and the project store. The project ID names the project and
is hashed into job IDs, so it cannot be changed later without a schema
migration.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initWorkspaceDir, "workspace", "w", "workspace", "workspace directory, relative to the project root")
	initCmd.Flags().StringVar(&initStorageDir, "storage", "storage", "storage directory, relative to the project root")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	configDir := filepath.Join(root, domain.ConfigDirName)
	if _, err := os.Stat(filepath.Join(configDir, "config.toml")); err == nil {
		return fmt.Errorf("%w: this directory is already a project", domain.ErrAlreadyExists)
	}

	project := &domain.Project{
		ID:            projectID,
		Root:          root,
		WorkspaceDir:  filepath.Join(root, initWorkspaceDir),
		StorageDir:    filepath.Join(root, initStorageDir),
		SchemaVersion: domain.MustSchemaVersion(domain.SchemaVersionCurrent),
	}
	if err := project.Validate(); err != nil {
		return err
	}

	cfg, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	settings := map[string]any{
		"project.id":             projectID,
		"project.schema_version": domain.SchemaVersionCurrent,
		"project.workspace_dir":  initWorkspaceDir,
		"project.storage_dir":    initStorageDir,
	}
	for key, value := range settings {
		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("writing project config: %w", err)
		}
	}

	for _, dir := range []string{project.WorkspaceDir, project.StorageDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	// Create the store up front so the first job does not pay for it.
	store, err := sqlite.NewStore(configDir)
	if err != nil {
		return fmt.Errorf("creating project store: %w", err)
	}
	defer store.Close()

	cmd.Printf("Initialised project '%s' in %s.\n", projectID, root)
	return nil
}
