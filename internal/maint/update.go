package maint

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// RevisionStatus reports one repository pin after update or verify.
type RevisionStatus struct {
	Repo string

	// Rev is the pinned revision after the operation.
	Rev string

	// Changed is set by update when the pin was rewritten.
	Changed bool

	// Missing is set by verify when the pin does not exist upstream.
	Missing bool

	// Skipped marks repositories the resolver cannot handle.
	Skipped bool

	Err error
}

// UpdateHookRevisions resolves the newest revision of every
// GitHub-hosted hook repository and rewrites the pins in the
// configuration file, preserving comments and layout. It returns one
// status per repository.
func UpdateHookRevisions(ctx context.Context, root string, resolver driven.RevisionResolver) ([]RevisionStatus, error) {
	path := filepath.Join(root, HooksConfigName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", HooksConfigName, err)
	}

	var statuses []RevisionStatus
	changed := false
	for _, entry := range repoNodes(&doc) {
		status := RevisionStatus{Repo: entry.repo, Rev: entry.rev.Value}
		if !isGitHubRepo(entry.repo) {
			status.Skipped = true
			statuses = append(statuses, status)
			continue
		}

		latest, err := resolver.LatestRevision(ctx, entry.repo)
		if err != nil {
			status.Err = err
			statuses = append(statuses, status)
			continue
		}
		if latest != "" && latest != entry.rev.Value {
			entry.rev.Value = latest
			status.Rev = latest
			status.Changed = true
			changed = true
		}
		statuses = append(statuses, status)
	}

	if !changed {
		return statuses, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return statuses, fmt.Errorf("encoding %s: %w", HooksConfigName, err)
	}
	if err := enc.Close(); err != nil {
		return statuses, err
	}
	if err := writeFilePreservingMode(path, buf.Bytes()); err != nil {
		return statuses, fmt.Errorf("writing %s: %w", HooksConfigName, err)
	}
	return statuses, nil
}

// VerifyHookRevisions checks that every GitHub-hosted pin still exists
// upstream. Nothing is rewritten.
func VerifyHookRevisions(ctx context.Context, cfg *HooksConfig, resolver driven.RevisionResolver) []RevisionStatus {
	statuses := make([]RevisionStatus, 0, len(cfg.Repos))
	for _, repo := range cfg.Repos {
		status := RevisionStatus{Repo: repo.Repo, Rev: repo.Rev}
		if !isGitHubRepo(repo.Repo) {
			status.Skipped = true
			statuses = append(statuses, status)
			continue
		}

		exists, err := resolver.RevisionExists(ctx, repo.Repo, repo.Rev)
		if err != nil {
			status.Err = err
		} else {
			status.Missing = !exists
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// repoEntry is one repository mapping inside the parsed document.
type repoEntry struct {
	repo string
	rev  *yaml.Node
}

// repoNodes finds every {repo, rev} pair in the parsed document.
func repoNodes(doc *yaml.Node) []repoEntry {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}

	var repos *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "repos" {
			repos = root.Content[i+1]
			break
		}
	}
	if repos == nil || repos.Kind != yaml.SequenceNode {
		return nil
	}

	var entries []repoEntry
	for _, item := range repos.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		var entry repoEntry
		for i := 0; i+1 < len(item.Content); i += 2 {
			switch item.Content[i].Value {
			case "repo":
				entry.repo = item.Content[i+1].Value
			case "rev":
				entry.rev = item.Content[i+1]
			}
		}
		if entry.repo != "" && entry.rev != nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// isGitHubRepo reports whether the hook repository is GitHub hosted.
func isGitHubRepo(repoURL string) bool {
	return strings.HasPrefix(repoURL, "https://github.com/") ||
		strings.HasPrefix(repoURL, "git@github.com:")
}
