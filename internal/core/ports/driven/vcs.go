package driven

import "context"

// VCS abstracts the version control operations the bump command needs.
// Optional: without it, bumping patches files but refuses to commit.
type VCS interface {
	// IsClean reports whether the worktree has no uncommitted changes.
	IsClean(ctx context.Context) (bool, error)

	// Commit stages the given paths and creates a commit.
	Commit(ctx context.Context, message string, paths []string) error

	// Tag creates a tag at HEAD. A non-empty message makes it annotated.
	Tag(ctx context.Context, name, message string) error
}

// RevisionResolver looks up hook repository revisions on their hosting
// service. Optional: without it, hook update and verify are disabled.
type RevisionResolver interface {
	// LatestRevision returns the newest release tag of a repository URL.
	LatestRevision(ctx context.Context, repoURL string) (string, error)

	// RevisionExists reports whether the pinned revision exists upstream.
	RevisionExists(ctx context.Context, repoURL, rev string) (bool, error)
}
