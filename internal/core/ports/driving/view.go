package driving

import (
	"context"
	"io"

	"github.com/stratalabs/strata/internal/core/domain"
)

// ViewOptions configure how jobs map into a view tree.
type ViewOptions struct {
	// URL is the path template, empty for the sorted all-keys default.
	URL string

	// Copy materialises file copies instead of symlinks.
	Copy bool

	// Workspace links job workspaces instead of storage directories.
	Workspace bool
}

// ViewService materialises human-navigable views of the parameter space.
type ViewService interface {
	// Create materialises the view under prefix, one link (or copy)
	// per job. The prefix directory must be empty or absent. Returns
	// the number of jobs linked. Two jobs rendering the same view path
	// is a collision error.
	Create(ctx context.Context, prefix string, opts ViewOptions) (int, error)

	// Script writes one command block per job to w, expanding the
	// {src}, {head} and {tail} placeholders of cmdTemplate. An empty
	// cmdTemplate uses domain.DefaultViewCommand.
	Script(ctx context.Context, opts ViewOptions, cmdTemplate string, w io.Writer) error
}

// SnapshotService creates and restores project snapshots.
type SnapshotService interface {
	// Create writes a snapshot archive to path. databaseOnly excludes
	// the workspace and storage trees. Refuses to overwrite an
	// existing file unless overwrite is set.
	Create(ctx context.Context, path string, databaseOnly, overwrite bool) (*domain.SnapshotManifest, error)

	// Restore replaces the current project state with the archive.
	// The prior state is kept as a rollback backup until the restore
	// completes. Returns domain.ErrRollbackExists if a backup from an
	// earlier failed restore is still present.
	Restore(ctx context.Context, path string) error

	// HasRollback reports whether a rollback backup exists.
	HasRollback() (bool, error)

	// RecoverRollback restores the project state from the rollback
	// backup left by a failed restore.
	RecoverRollback(ctx context.Context) error

	// DiscardRollback deletes the rollback backup.
	DiscardRollback(ctx context.Context) error
}
