package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driven/forge/github"
	"github.com/stratalabs/strata/internal/adapters/driven/shell"
	gitvcs "github.com/stratalabs/strata/internal/adapters/driven/vcs/git"
	"github.com/stratalabs/strata/internal/maint"
)

// githubTokenEnv authenticates hook revision lookups against the
// GitHub API. Unauthenticated requests work but are rate-limited hard.
const githubTokenEnv = "STRATA_GITHUB_TOKEN"

var bumpAllowDirty bool

var maintCmd = &cobra.Command{
	Use:   "maint",
	Short: "Repository maintenance commands",
	Long: `Maintenance commands for the repository this tool is developed in:
release version bumps, the hook pipeline and configuration consistency
checks. Configuration lives in ` + maint.ConfigName + ` and ` + maint.HooksConfigName + `
at the repository root.`,
}

var maintBumpCmd = &cobra.Command{
	Use:   "bump [major|minor|patch|version]",
	Short: "Bump the release version",
	Long: `Rewrites the release version in every configured target file. All
targets are verified before any file is touched; a target without the
expected text aborts the bump. With a clean worktree the change is
committed, and tagged when configured.`,
	Args: cobra.ExactArgs(1),
	RunE: runMaintBump,
}

var maintHooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage the hook pipeline",
}

var maintHooksRunCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Run the hook pipeline",
	Long: `Runs every configured hook over the repository files, or over the
given files only. Hooks keep running after one fails; the command exits
non-zero when any hook failed.`,
	RunE: runMaintHooksRun,
}

var maintHooksValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the hook configuration",
	Args:  cobra.NoArgs,
	RunE:  runMaintHooksValidate,
}

var maintHooksUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update hook revisions to the latest releases",
	Args:  cobra.NoArgs,
	RunE:  runMaintHooksUpdate,
}

var maintHooksVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that pinned hook revisions exist",
	Args:  cobra.NoArgs,
	RunE:  runMaintHooksVerify,
}

var maintCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the maintenance consistency checks",
	Long: `Checks that the version is in sync across all bump targets, that
referenced paths exist, that warning filters are well formed and that
the hook configuration is valid.`,
	Args: cobra.NoArgs,
	RunE: runMaintCheck,
}

func init() {
	maintBumpCmd.Flags().BoolVar(&bumpAllowDirty, "allow-dirty", false, "bump even with uncommitted changes")
	maintHooksCmd.AddCommand(maintHooksRunCmd)
	maintHooksCmd.AddCommand(maintHooksValidateCmd)
	maintHooksCmd.AddCommand(maintHooksUpdateCmd)
	maintHooksCmd.AddCommand(maintHooksVerifyCmd)
	maintCmd.AddCommand(maintBumpCmd)
	maintCmd.AddCommand(maintHooksCmd)
	maintCmd.AddCommand(maintCheckCmd)
	rootCmd.AddCommand(maintCmd)
}

// findMaintRoot walks from the working directory upwards until it finds
// the maintenance configuration.
func findMaintRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, maint.ConfigName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in this directory or any parent", maint.ConfigName)
		}
		dir = parent
	}
}

func runMaintBump(cmd *cobra.Command, args []string) error {
	root, err := findMaintRoot()
	if err != nil {
		return err
	}
	cfg, err := maint.LoadConfig(root)
	if err != nil {
		return err
	}

	vcs := gitvcs.New(root, "", "")
	bumper := maint.NewBumper(root, cfg, vcs)

	result, err := bumper.Bump(cmd.Context(), args[0], bumpAllowDirty)
	if err != nil {
		return err
	}

	cmd.Printf("Bump version: %s -> %s\n", result.OldVersion, result.NewVersion)
	for _, f := range result.Files {
		cmd.Printf("  patched %s\n", f)
	}
	if result.Committed {
		cmd.Println("Committed.")
	} else {
		cmd.Println("Not committed; commit the changes yourself.")
	}
	return nil
}

// loadHookSetup loads both maintenance configs for the hook commands.
// The maintenance config is optional here; hooks run without policy
// flags when it is missing.
func loadHookSetup() (string, *maint.Config, *maint.HooksConfig, error) {
	root, err := findMaintRoot()
	if err != nil {
		return "", nil, nil, err
	}
	hooks, err := maint.LoadHooksConfig(root)
	if err != nil {
		return "", nil, nil, err
	}
	cfg, err := maint.LoadConfig(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", nil, nil, err
		}
		cfg = nil
	}
	return root, cfg, hooks, nil
}

func runMaintHooksRun(cmd *cobra.Command, args []string) error {
	root, cfg, hooks, err := loadHookSetup()
	if err != nil {
		return err
	}
	if errs := hooks.Validate(); len(errs) > 0 {
		return fmt.Errorf("hook configuration invalid: %v", errs[0])
	}

	pipeline := maint.NewPipeline(root, cfg, hooks, shell.NewRunner())
	results, err := pipeline.Run(cmd.Context(), args)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Skipped:
			cmd.Printf("%s: skipped (no files)\n", r.ID)
		case r.Err != nil:
			failed++
			cmd.Printf("%s: failed\n", r.ID)
			if out := strings.TrimSpace(r.Output); out != "" {
				cmd.Println(indentLines(out, "  "))
			}
		default:
			cmd.Printf("%s: passed (%d files)\n", r.ID, r.Files)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d hook(s) failed", failed)
	}
	return nil
}

func runMaintHooksValidate(cmd *cobra.Command, _ []string) error {
	_, _, hooks, err := loadHookSetup()
	if err != nil {
		return err
	}

	if errs := hooks.Validate(); len(errs) > 0 {
		for _, e := range errs {
			cmd.Printf("Error: %v\n", e)
		}
		return fmt.Errorf("%d configuration error(s)", len(errs))
	}
	cmd.Println("Hook configuration is valid.")
	return nil
}

func runMaintHooksUpdate(cmd *cobra.Command, _ []string) error {
	root, err := findMaintRoot()
	if err != nil {
		return err
	}

	resolver := github.NewResolver(os.Getenv(githubTokenEnv))
	statuses, err := maint.UpdateHookRevisions(cmd.Context(), root, resolver)
	if err != nil {
		return err
	}

	var failures []error
	for _, s := range statuses {
		switch {
		case s.Skipped:
			cmd.Printf("%s: skipped (not a GitHub repository)\n", s.Repo)
		case s.Err != nil:
			failures = append(failures, s.Err)
			cmd.Printf("%s: %v\n", s.Repo, s.Err)
		case s.Changed:
			cmd.Printf("%s: updated to %s\n", s.Repo, s.Rev)
		default:
			cmd.Printf("%s: already at %s\n", s.Repo, s.Rev)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d repositories failed to resolve", len(failures))
	}
	return nil
}

func runMaintHooksVerify(cmd *cobra.Command, _ []string) error {
	root, err := findMaintRoot()
	if err != nil {
		return err
	}
	hooks, err := maint.LoadHooksConfig(root)
	if err != nil {
		return err
	}

	resolver := github.NewResolver(os.Getenv(githubTokenEnv))
	statuses := maint.VerifyHookRevisions(cmd.Context(), hooks, resolver)

	bad := 0
	for _, s := range statuses {
		switch {
		case s.Skipped:
			cmd.Printf("%s: skipped (not a GitHub repository)\n", s.Repo)
		case s.Err != nil:
			bad++
			cmd.Printf("%s@%s: %v\n", s.Repo, s.Rev, s.Err)
		case s.Missing:
			bad++
			cmd.Printf("%s@%s: revision does not exist\n", s.Repo, s.Rev)
		default:
			cmd.Printf("%s@%s: ok\n", s.Repo, s.Rev)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d pinned revision(s) could not be verified", bad)
	}
	return nil
}

func runMaintCheck(cmd *cobra.Command, _ []string) error {
	root, err := findMaintRoot()
	if err != nil {
		return err
	}
	cfg, err := maint.LoadConfig(root)
	if err != nil {
		return err
	}
	hooks, err := maint.LoadHooksConfig(root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	results := maint.Check(root, cfg, hooks)
	lines := make([]checkLine, 0, len(results))
	for _, r := range results {
		lines = append(lines, checkLine{name: r.Name, err: r.Err})
	}
	return printCheckResults(cmd, lines)
}

// indentLines prefixes every line of s.
func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
