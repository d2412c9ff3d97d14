package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
)

var (
	snapshotDatabaseOnly bool
	snapshotOverwrite    bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [file]",
	Short: "Create a project snapshot",
	Long: `Writes the whole project state to a snapshot archive: the store, the
job documents, records, blobs and, unless --database-only is given, the
workspace and storage trees.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Restore a project snapshot",
	Long: `Replaces the current project state with the snapshot. The prior state
is kept as a rollback backup until the restore completes; a leftover
backup from a failed restore must be recovered or discarded first.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotDatabaseOnly, "database-only", false, "snapshot the store only, without the workspace and storage trees")
	snapshotCmd.Flags().BoolVar(&snapshotOverwrite, "overwrite", false, "overwrite an existing snapshot without asking")
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if snapshotService == nil {
		return errNotConfigured
	}
	path := args[0]

	overwrite := snapshotOverwrite
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			if !confirm(cmd, fmt.Sprintf("File with name '%s' already exists. Overwrite?", path)) {
				return nil
			}
			overwrite = true
		}
	}

	if snapshotDatabaseOnly {
		cmd.Println("Creating project database snapshot.")
	} else {
		cmd.Println("Creating project snapshot.")
	}

	if _, err := snapshotService.Create(cmd.Context(), path, snapshotDatabaseOnly, overwrite); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	cmd.Println("Success.")
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	if snapshotService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()
	path := args[0]

	cmd.Printf("Trying to restore from: %s\n", path)

	err := snapshotService.Restore(ctx, path)
	if err == nil {
		cmd.Println("Success.")
		return nil
	}
	if !errors.Is(err, domain.ErrRollbackExists) {
		return err
	}

	// A failed earlier restore left a backup behind.
	if confirm(cmd, "A backup from a previous restore attempt exists. Do you want to recover from it?") {
		if err := snapshotService.RecoverRollback(ctx); err != nil {
			cmd.Println("The recovery failed. The backup is kept for inspection.")
			return err
		}
		cmd.Println("Successfully recovered.")
		return nil
	}
	if confirm(cmd, "Do you want to delete it?") {
		if err := snapshotService.DiscardRollback(ctx); err != nil {
			return err
		}
		cmd.Println("Removed.")
	}
	return nil
}
