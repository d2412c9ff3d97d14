package services

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ensure ViewService implements the interface.
var _ driving.ViewService = (*ViewService)(nil)

// ViewService materialises human-navigable views of the parameter
// space: one symlink (or copy) per job, laid out along a path template
// built from parameter values.
type ViewService struct {
	jobs       driving.JobService
	templates  driven.TemplateStore
	projectLog *ProjectLog
}

// NewViewService creates a new view service. templates may be nil, in
// which case Script falls back to the built-in command templates.
func NewViewService(jobs driving.JobService, templates driven.TemplateStore, projectLog *ProjectLog) *ViewService {
	return &ViewService{jobs: jobs, templates: templates, projectLog: projectLog}
}

// viewEntry is one job resolved to its rendered view path and source
// directory.
type viewEntry struct {
	jobID    string
	viewPath string
	src      string
}

// Create materialises the view under prefix. The prefix directory must
// be empty or absent.
func (s *ViewService) Create(ctx context.Context, prefix string, opts driving.ViewOptions) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("%w: view prefix is empty", domain.ErrInvalidInput)
	}
	if err := ensureEmptyDir(prefix); err != nil {
		return 0, err
	}
	_, statErr := os.Stat(prefix)
	prefixExisted := statErr == nil

	entries, err := s.resolveEntries(ctx, opts)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		dst := filepath.Join(prefix, filepath.FromSlash(entry.viewPath))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			removePartialView(prefix, prefixExisted)
			return 0, fmt.Errorf("creating view directory: %w", err)
		}
		if opts.Copy {
			err = copyTree(entry.src, dst)
		} else {
			err = os.Symlink(entry.src, dst)
		}
		if err != nil {
			removePartialView(prefix, prefixExisted)
			return 0, fmt.Errorf("linking job %s into view: %w", shortID(entry.jobID), err)
		}
	}

	s.projectLog.Record(ctx, domain.LogLevelInfo, "view",
		"Created view of %d job(s) under %s", len(entries), prefix)
	return len(entries), nil
}

// Script writes one command block per job to w.
func (s *ViewService) Script(ctx context.Context, opts driving.ViewOptions, cmdTemplate string, w io.Writer) error {
	if cmdTemplate == "" {
		var err error
		cmdTemplate, err = s.defaultCommand(opts.Copy)
		if err != nil {
			return err
		}
	}

	entries, err := s.resolveEntries(ctx, opts)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		block := domain.RenderViewCommand(cmdTemplate, entry.src, entry.viewPath)
		if _, err := fmt.Fprintln(w, block); err != nil {
			return fmt.Errorf("writing view script: %w", err)
		}
	}
	return nil
}

// defaultCommand resolves the per-job command template, preferring the
// user-editable template files.
func (s *ViewService) defaultCommand(copying bool) (string, error) {
	name := driven.TemplateViewScript
	fallback := domain.DefaultViewCommand
	if copying {
		name = driven.TemplateViewScriptCopy
		fallback = domain.DefaultViewCopyCommand
	}
	if s.templates == nil {
		return fallback, nil
	}
	return s.templates.Load(name)
}

// resolveEntries renders every job's view path, rejects collisions and
// returns the entries sorted by view path.
func (s *ViewService) resolveEntries(ctx context.Context, opts driving.ViewOptions) ([]viewEntry, error) {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	template, err := resolveViewTemplate(opts.URL, jobs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(jobs))
	entries := make([]viewEntry, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		rendered, err := template.Render(job.Parameters)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", shortID(job.ID), err)
		}
		if err := checkViewPath(rendered); err != nil {
			return nil, err
		}
		if other, ok := seen[rendered]; ok {
			return nil, fmt.Errorf("%w: jobs %s and %s both render %q",
				domain.ErrViewCollision, shortID(other), shortID(job.ID), rendered)
		}
		seen[rendered] = job.ID

		src := job.Storage
		if opts.Workspace {
			src = job.Workspace
		}
		entries = append(entries, viewEntry{jobID: job.ID, viewPath: rendered, src: src})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].viewPath < entries[j].viewPath
	})
	return entries, nil
}

// resolveViewTemplate parses the caller's template, or builds the
// sorted all-keys default from the union of parameter keys.
func resolveViewTemplate(url string, jobs []domain.Job) (*domain.ViewTemplate, error) {
	if url != "" {
		return domain.ParseViewTemplate(url)
	}

	keySet := make(map[string]bool)
	for i := range jobs {
		for key := range jobs[i].Parameters {
			keySet[key] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	return domain.DefaultViewTemplate(keys)
}

// checkViewPath rejects rendered paths that would escape the prefix.
func checkViewPath(rendered string) error {
	clean := path.Clean(rendered)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: view path %q escapes the prefix", domain.ErrInvalidInput, rendered)
	}
	return nil
}

// ensureEmptyDir verifies path is an empty directory or absent.
// removePartialView clears a partially materialised view. The prefix
// was empty or absent before Create started, so everything under it
// belongs to the failed attempt.
func removePartialView(prefix string, existedBefore bool) {
	if !existedBefore {
		//nolint:errcheck // best effort; the create error is reported
		_ = os.RemoveAll(prefix)
		return
	}
	entries, err := os.ReadDir(prefix)
	if err != nil {
		return
	}
	for _, e := range entries {
		//nolint:errcheck // best effort; the create error is reported
		_ = os.RemoveAll(filepath.Join(prefix, e.Name()))
	}
}

func ensureEmptyDir(path string) error {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading view prefix: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: view prefix %q is not empty", domain.ErrInvalidInput, path)
	}
	return nil
}

// copyTree copies src into dst, preserving directory structure and
// symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			linkDst, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(linkDst, target)
		default:
			return copyFile(p, target)
		}
	})
}

// copyFile copies one regular file, preserving its mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec // the copy error wins
		return err
	}
	return out.Close()
}
