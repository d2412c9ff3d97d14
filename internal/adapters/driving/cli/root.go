// Package cli implements the strata command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratalabs/strata/internal/adapters/driven/config/file"
	"github.com/stratalabs/strata/internal/adapters/driven/coordination/redis"
	"github.com/stratalabs/strata/internal/adapters/driven/shell"
	"github.com/stratalabs/strata/internal/adapters/driven/storage/blob"
	"github.com/stratalabs/strata/internal/adapters/driven/storage/sqlite"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
	"github.com/stratalabs/strata/internal/core/services"
	"github.com/stratalabs/strata/internal/formats"
	"github.com/stratalabs/strata/internal/logger"
)

// Service singletons used by the command handlers. They are assigned
// by the project bootstrap in PersistentPreRunE, or injected through
// SetServices by main and by tests.
var (
	projectService  driving.ProjectService
	jobService      driving.JobService
	lockService     driving.LockService
	recordService   driving.RecordService
	queueService    driving.QueueService
	viewService     driving.ViewService
	snapshotService driving.SnapshotService

	projectConfig driven.ConfigStore
)

// Services bundles everything the command handlers need.
type Services struct {
	Project  driving.ProjectService
	Jobs     driving.JobService
	Locks    driving.LockService
	Records  driving.RecordService
	Queue    driving.QueueService
	Views    driving.ViewService
	Snapshot driving.SnapshotService
	Config   driven.ConfigStore
}

// SetServices installs the given services, bypassing the directory
// bootstrap. Passing nil clears all singletons.
func SetServices(s *Services) {
	if s == nil {
		projectService = nil
		jobService = nil
		lockService = nil
		recordService = nil
		queueService = nil
		viewService = nil
		snapshotService = nil
		projectConfig = nil
		return
	}
	projectService = s.Project
	jobService = s.Jobs
	lockService = s.Locks
	recordService = s.Records
	queueService = s.Queue
	viewService = s.Views
	snapshotService = s.Snapshot
	projectConfig = s.Config
}

// Persistent flags.
var (
	assumeYes bool
	verbosity bool
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Manage parameter-space jobs and their data",
	Long: `Strata manages a parameter space of jobs: each job is identified by
its parameters, owns a workspace and a storage directory, and carries
a key/value document. Records, a task queue, views and snapshots are
built on top of the same project store.

Run 'strata init <project-id>' in a directory to start a project.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbosity)
		if jobService != nil {
			// Already bootstrapped or injected.
			return nil
		}
		if !commandNeedsProject(cmd) {
			return nil
		}
		return bootstrapProject()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes to all questions")
	rootCmd.PersistentFlags().BoolVarP(&verbosity, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command. The context cancels long-running
// commands such as serve, watch and queue work on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// commandNeedsProject reports whether a command requires the project
// bootstrap. Commands that create projects, print build information or
// operate on repository files locate what they need themselves.
func commandNeedsProject(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "init", "version", "config", "maint", "help", "completion":
			return false
		}
	}
	return true
}

// bootstrapProject locates the project for the working directory and
// wires the service singletons against its stores.
func bootstrapProject() error {
	root, err := FindProjectRoot()
	if err != nil {
		return err
	}

	cfg, err := file.NewConfigStore(filepath.Join(root, domain.ConfigDirName))
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}

	project, err := projectFromConfig(root, cfg)
	if err != nil {
		return err
	}

	// A newer on-disk schema means a newer tool wrote this project.
	current := domain.MustSchemaVersion(domain.SchemaVersionCurrent)
	if project.SchemaVersion.Compare(current) > 0 {
		return fmt.Errorf("%w: project is %s, this build supports %s",
			domain.ErrSchemaVersion, project.SchemaVersion, current)
	}

	store, err := sqlite.NewStore(filepath.Join(root, domain.ConfigDirName))
	if err != nil {
		return fmt.Errorf("opening project store: %w", err)
	}

	lockStore := store.LockStore()
	pulseStore := store.PulseStore()
	if cfg.GetString("coordination.backend") == "redis" {
		addr := cfg.GetString("coordination.redis_addr")
		if addr == "" {
			addr = "localhost:6379"
		}
		coord, err := redis.NewStore(addr)
		if err != nil {
			return fmt.Errorf("connecting coordination backend: %w", err)
		}
		lockStore = coord.LockStore()
		pulseStore = coord.PulseStore()
	}

	blobStore, err := blob.NewStore(filepath.Join(root, domain.ConfigDirName, "blobs"))
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	templates, err := file.NewTemplateStore(filepath.Join(root, domain.ConfigDirName, "templates"))
	if err != nil {
		return fmt.Errorf("opening template store: %w", err)
	}

	projectLog := services.NewProjectLog(store.LogStore())

	jobs := services.NewJobService(project, store.JobRegistry(), store.JobDocumentStore(),
		lockStore, pulseStore, store.QueueStore(), projectLog)
	jobs.SetPulseDisabled(cfg.GetBool("pulse.disabled"))
	locks := services.NewLockService(lockStore)
	records := services.NewRecordService(store.RecordStore(), blobStore, cfg,
		formats.NewDefaultNetwork(), projectLog)
	queue := services.NewQueueService(store.QueueStore(), jobs, locks, shell.NewRunner(), projectLog)

	SetServices(&Services{
		Project: services.NewProjectService(project, store.JobRegistry(), store.JobDocumentStore(),
			lockStore, pulseStore, store.QueueStore(), store.LogStore(), cfg, projectLog),
		Jobs:     jobs,
		Locks:    locks,
		Records:  records,
		Queue:    queue,
		Views:    services.NewViewService(jobs, templates, projectLog),
		Snapshot: services.NewSnapshotService(project, store.JobRegistry(), store.JobDocumentStore(),
			store.RecordStore(), store.QueueStore(), blobStore, lockStore, pulseStore, cfg, projectLog),
		Config: cfg,
	})
	return nil
}

// FindProjectRoot walks from the working directory upwards until it
// finds a directory containing the project configuration.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for {
		marker := filepath.Join(dir, domain.ConfigDirName, "config.toml")
		if info, err := os.Stat(marker); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: run 'strata init <project-id>' in the project root", domain.ErrNoProject)
		}
		dir = parent
	}
}

// projectFromConfig builds the project descriptor from its config file.
func projectFromConfig(root string, cfg driven.ConfigStore) (*domain.Project, error) {
	id := cfg.GetString("project.id")
	if id == "" {
		return nil, fmt.Errorf("%w: project.id missing from config", domain.ErrInvalidInput)
	}

	schemaRaw := cfg.GetString("project.schema_version")
	if schemaRaw == "" {
		schemaRaw = "1"
	}
	schema, err := domain.ParseSchemaVersion(schemaRaw)
	if err != nil {
		return nil, err
	}

	workspace := cfg.GetString("project.workspace_dir")
	if workspace == "" {
		workspace = "workspace"
	}
	storage := cfg.GetString("project.storage_dir")
	if storage == "" {
		storage = "storage"
	}
	if !filepath.IsAbs(workspace) {
		workspace = filepath.Join(root, workspace)
	}
	if !filepath.IsAbs(storage) {
		storage = filepath.Join(root, storage)
	}

	project := &domain.Project{
		ID:            id,
		Root:          root,
		WorkspaceDir:  workspace,
		StorageDir:    storage,
		SchemaVersion: schema,
	}
	return project, project.Validate()
}

// confirm asks a yes/no question on the command's input stream. The
// global --yes flag answers every question with yes.
func confirm(cmd *cobra.Command, question string) bool {
	if assumeYes {
		return true
	}
	cmd.Printf("%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
		return false
	}
	switch answer {
	case "y", "Y", "yes", "Yes":
		return true
	default:
		return false
	}
}

// checkLine is one named check outcome for printCheckResults. Both the
// project and the maintenance checks render through it.
type checkLine struct {
	name string
	err  error
}

// printCheckResults renders named check results the way the check
// commands report them and returns an error when any check failed.
func printCheckResults(cmd *cobra.Command, lines []checkLine) error {
	failed := 0
	for _, l := range lines {
		cmd.Printf("Checking %s ... ", l.name)
		if l.err != nil {
			cmd.Println("Failed.")
			cmd.Printf("  Error: %v\n", l.err)
			failed++
		} else {
			cmd.Println("OK.")
		}
	}
	cmd.Println()
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(lines))
	}
	cmd.Println("All tests passed. No errors.")
	return nil
}

var errNotConfigured = errors.New("project services not configured")
