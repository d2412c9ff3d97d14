// Package git implements the VCS port on top of go-git, so the bump
// command can check, commit and tag without shelling out to a git
// binary.
package git

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure VCS implements the interface.
var _ driven.VCS = (*VCS)(nil)

// VCS operates on the repository containing path. The repository is
// opened per call; nothing is cached between operations.
type VCS struct {
	path        string
	authorName  string
	authorEmail string
}

// New creates a VCS rooted at path. When authorName or authorEmail is
// empty, commits fall back to the repository's own git configuration.
func New(path, authorName, authorEmail string) *VCS {
	return &VCS{
		path:        path,
		authorName:  authorName,
		authorEmail: authorEmail,
	}
}

// IsClean reports whether the worktree has no uncommitted changes.
func (v *VCS) IsClean(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	wt, err := v.worktree()
	if err != nil {
		return false, err
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status: %w", err)
	}
	return status.IsClean(), nil
}

// Commit stages the given paths (relative to the repository root) and
// creates a commit.
func (v *VCS) Commit(ctx context.Context, message string, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wt, err := v.worktree()
	if err != nil {
		return err
	}

	for _, path := range paths {
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("staging %s: %w", path, err)
		}
	}

	if _, err := wt.Commit(message, &git.CommitOptions{
		Author: v.signature(),
	}); err != nil {
		return fmt.Errorf("creating commit: %w", err)
	}
	return nil
}

// Tag creates a tag at HEAD. A non-empty message makes it annotated.
func (v *VCS) Tag(ctx context.Context, name, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	repo, err := v.open()
	if err != nil {
		return err
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}

	var opts *git.CreateTagOptions
	if message != "" {
		opts = &git.CreateTagOptions{
			Message: message,
			Tagger:  v.signature(),
		}
	}
	if _, err := repo.CreateTag(name, head.Hash(), opts); err != nil {
		return fmt.Errorf("creating tag %s: %w", name, err)
	}
	return nil
}

func (v *VCS) open() (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(v.path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", v.path, err)
	}
	return repo, nil
}

func (v *VCS) worktree() (*git.Worktree, error) {
	repo, err := v.open()
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	return wt, nil
}

// signature builds the commit author, or nil to let go-git read the
// repository configuration.
func (v *VCS) signature() *object.Signature {
	if v.authorName == "" && v.authorEmail == "" {
		return nil
	}
	return &object.Signature{
		Name:  v.authorName,
		Email: v.authorEmail,
		When:  time.Now(),
	}
}
