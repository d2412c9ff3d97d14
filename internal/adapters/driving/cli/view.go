package cli

import (
	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

var (
	viewPrefix    string
	viewURL       string
	viewCopy      bool
	viewWorkspace bool
	viewScript    string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Materialise a navigable view of the parameter space",
	Long: `Creates a directory tree with one entry per job, laid out along a
path template like 'alpha/{alpha}/steps/{steps}'. Without --url the
template covers all parameter keys in sorted order. Entries are
symlinks to the job storage directories; --copy materialises copies and
--workspace links the workspaces instead.

With --script no tree is created; the commands that would build it are
printed instead, one block per job.`,
	Args: cobra.NoArgs,
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewPrefix, "prefix", "view/", "directory to create the view under")
	viewCmd.Flags().StringVarP(&viewURL, "url", "u", "", "path template, e.g. 'a/{a}/b/{b}'")
	viewCmd.Flags().BoolVarP(&viewCopy, "copy", "c", false, "copy the data instead of linking it")
	viewCmd.Flags().BoolVarP(&viewWorkspace, "workspace", "w", false, "view the workspaces instead of the storage directories")
	viewCmd.Flags().StringVarP(&viewScript, "script", "s", "", "print view commands instead of creating the tree")
	viewCmd.Flags().Lookup("script").NoOptDefVal = domain.DefaultViewCommand
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, _ []string) error {
	if viewService == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()

	opts := driving.ViewOptions{
		URL:       viewURL,
		Copy:      viewCopy,
		Workspace: viewWorkspace,
	}

	if cmd.Flags().Changed("script") {
		return viewService.Script(ctx, opts, viewScript, cmd.OutOrStdout())
	}

	if viewCopy {
		question := "Are you sure you want to create a copy of the whole dataset? This may be very large."
		if !confirm(cmd, question) {
			return nil
		}
	}

	count, err := viewService.Create(ctx, viewPrefix, opts)
	if err != nil {
		return err
	}
	cmd.Printf("Created view of %d job(s) under %s.\n", count, viewPrefix)
	return nil
}
