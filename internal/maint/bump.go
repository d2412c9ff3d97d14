package maint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Errors reported by the bump operation.
var (
	// ErrDirtyWorktree means uncommitted changes block the bump.
	ErrDirtyWorktree = errors.New("maint: worktree has uncommitted changes")

	// ErrSearchNotFound means at least one target does not contain its
	// rendered search string. No file has been modified.
	ErrSearchNotFound = errors.New("maint: version search string not found")

	// ErrBadVersion means the bump argument is neither a part name nor
	// a dotted version.
	ErrBadVersion = errors.New("maint: invalid version or part")
)

// BumpResult reports what a bump changed.
type BumpResult struct {
	OldVersion string
	NewVersion string

	// Files are the repository-relative paths that were patched, the
	// maintenance configuration included.
	Files []string

	// Committed is true when the release commit was created.
	Committed bool
}

// ResolveVersion computes the next version from the current one and a
// bump argument: "major", "minor", "patch", or an explicit "X.Y.Z".
func ResolveVersion(current, arg string) (string, error) {
	major, minor, patch, err := parseVersion(current)
	if err != nil {
		return "", fmt.Errorf("current version: %w", err)
	}

	switch arg {
	case "major":
		return fmt.Sprintf("%d.0.0", major+1), nil
	case "minor":
		return fmt.Sprintf("%d.%d.0", major, minor+1), nil
	case "patch":
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1), nil
	}

	if _, _, _, err := parseVersion(arg); err != nil {
		return "", err
	}
	return arg, nil
}

func parseVersion(v string) (major, minor, patch int, err error) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadVersion, v)
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadVersion, v)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// Bumper patches the version across all configured release targets.
type Bumper struct {
	root string
	cfg  *Config
	vcs  driven.VCS
}

// NewBumper creates a bumper for the repository at root. vcs may be
// nil; bumping then skips the worktree check and never commits or
// tags.
func NewBumper(root string, cfg *Config, vcs driven.VCS) *Bumper {
	return &Bumper{root: root, cfg: cfg, vcs: vcs}
}

// Bump moves every configured target from the current version to the
// one named by arg. Every target is verified before anything is
// written, so either all files are patched or none.
func (b *Bumper) Bump(ctx context.Context, arg string, allowDirty bool) (*BumpResult, error) {
	oldVersion := b.cfg.Release.CurrentVersion
	newVersion, err := ResolveVersion(oldVersion, arg)
	if err != nil {
		return nil, err
	}
	if newVersion == oldVersion {
		return nil, fmt.Errorf("%w: already at %s", ErrBadVersion, oldVersion)
	}

	// 1. A dirty worktree would entangle the release commit with
	// unrelated edits.
	if !allowDirty && b.vcs != nil {
		clean, err := b.vcs.IsClean(ctx)
		if err != nil {
			return nil, fmt.Errorf("checking worktree: %w", err)
		}
		if !clean {
			return nil, ErrDirtyWorktree
		}
	}

	// 2. Render and verify every patch before touching any file.
	patches, err := b.renderPatches(oldVersion, newVersion)
	if err != nil {
		return nil, err
	}

	// 3. Write all files atomically.
	for _, p := range patches {
		if err := writeFilePreservingMode(filepath.Join(b.root, filepath.FromSlash(p.file)), p.content); err != nil {
			return nil, fmt.Errorf("patching %s: %w", p.file, err)
		}
	}

	files := make([]string, 0, len(patches))
	for _, p := range patches {
		files = append(files, p.file)
	}
	result := &BumpResult{OldVersion: oldVersion, NewVersion: newVersion, Files: files}
	b.cfg.Release.CurrentVersion = newVersion

	// 4. Record the release commit when configured. Tagging follows
	// its own switch; the shipped configuration leaves it off.
	if b.vcs != nil && b.cfg.Release.Commit {
		message := fmt.Sprintf("Bump version: %s -> %s", oldVersion, newVersion)
		if err := b.vcs.Commit(ctx, message, files); err != nil {
			return result, fmt.Errorf("committing bump: %w", err)
		}
		result.Committed = true
	}
	if b.vcs != nil && b.cfg.Release.Tag {
		if err := b.vcs.Tag(ctx, "v"+newVersion, ""); err != nil {
			return result, fmt.Errorf("tagging bump: %w", err)
		}
	}

	return result, nil
}

// patch is one pending file rewrite.
type patch struct {
	file    string
	content []byte
}

// renderPatches reads every target, substitutes the version templates
// and verifies the search text is present. Nothing is written here;
// a missing search string leaves the tree untouched.
func (b *Bumper) renderPatches(oldVersion, newVersion string) ([]patch, error) {
	patches := make([]patch, 0, len(b.cfg.Release.Targets)+1)
	var missing []string

	for _, t := range b.cfg.Release.Targets {
		search := renderTemplate(t.Search, oldVersion, newVersion)
		replace := renderTemplate(t.Replace, oldVersion, newVersion)

		data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(t.File)))
		if err != nil {
			return nil, fmt.Errorf("reading target: %w", err)
		}
		if !strings.Contains(string(data), search) {
			missing = append(missing, t.File)
			continue
		}
		patched := strings.ReplaceAll(string(data), search, replace)
		patches = append(patches, patch{file: t.File, content: []byte(patched)})
	}

	// The configuration file carries the version too. It is patched
	// textually so comments and layout survive.
	data, err := os.ReadFile(filepath.Join(b.root, ConfigName))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	search := fmt.Sprintf("current_version = %q", oldVersion)
	if !strings.Contains(string(data), search) {
		missing = append(missing, ConfigName)
	} else {
		replace := fmt.Sprintf("current_version = %q", newVersion)
		patched := strings.Replace(string(data), search, replace, 1)
		patches = append(patches, patch{file: ConfigName, content: []byte(patched)})
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, strings.Join(missing, ", "))
	}
	return patches, nil
}

// renderTemplate substitutes the version placeholders in a search or
// replace template.
func renderTemplate(tpl, oldVersion, newVersion string) string {
	s := strings.ReplaceAll(tpl, "{current_version}", oldVersion)
	return strings.ReplaceAll(s, "{new_version}", newVersion)
}

// writeFilePreservingMode replaces path atomically, keeping its mode.
func writeFilePreservingMode(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return renameio.WriteFile(path, content, mode)
}
