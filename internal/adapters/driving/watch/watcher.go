// Package watch keeps the job registry consistent with the workspace
// directory. It reconciles on filesystem events: job directories that
// appear with a valid manifest are registered, registered jobs whose
// directory disappears are reported.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driving"
	"github.com/stratalabs/strata/internal/logger"
)

// EventType classifies a reconciliation outcome.
type EventType string

const (
	// EventRegistered means a directory with a valid manifest was
	// registered as a job.
	EventRegistered EventType = "registered"

	// EventMissing means a registered job's workspace directory is gone.
	EventMissing EventType = "missing"

	// EventUnknown means a directory carries no manifest.
	EventUnknown EventType = "unknown"

	// EventForeign means the manifest belongs to another project.
	EventForeign EventType = "foreign"

	// EventCorrupt means the manifest does not match the directory.
	EventCorrupt EventType = "corrupt"

	// EventError means the registry could not be read or updated.
	EventError EventType = "error"
)

// Event is one reconciliation outcome.
type Event struct {
	Type  EventType
	JobID string
	Path  string
	Err   error
}

// Watcher reconciles the workspace directory against the job registry.
// Registration is safe to repeat, so directories are registered as soon
// as a valid manifest shows up; removals are only ever reported.
type Watcher struct {
	project *domain.Project
	jobs    driving.JobService
	handler func(Event)

	// debounce delays reconciliation after an event so half-written
	// directories get their manifest before being classified.
	debounce time.Duration

	// rescan bounds how stale the registry can get when events are
	// missed, e.g. a manifest written into an already-seen directory.
	rescan time.Duration

	mu    sync.Mutex
	state map[string]EventType // directory -> last reported condition
	gone  map[string]bool      // job ID -> missing already reported
}

// New creates a watcher for the project's workspace directory. The
// handler receives every event; nil is allowed.
func New(project *domain.Project, jobs driving.JobService, handler func(Event)) *Watcher {
	return &Watcher{
		project:  project,
		jobs:     jobs,
		handler:  handler,
		debounce: 500 * time.Millisecond,
		rescan:   30 * time.Second,
		state:    make(map[string]EventType),
		gone:     make(map[string]bool),
	}
}

// Run reconciles once, then watches the workspace directory until the
// context is cancelled. Filesystem events trigger a debounced
// reconciliation; a periodic rescan catches anything the events missed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.project.WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("creating workspace directory: %w", err)
	}
	if err := w.Reconcile(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.project.WorkspaceDir); err != nil {
		return fmt.Errorf("watching %s: %w", w.project.WorkspaceDir, err)
	}
	logger.Debug("watching %s", w.project.WorkspaceDir)

	// Reconciliations run on this loop only; the debounce timer just
	// pokes the trigger channel.
	trigger := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	ticker := time.NewTicker(w.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				logger.Debug("workspace event: %s", event)
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(w.debounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case <-trigger:
			if err := w.Reconcile(ctx); err != nil {
				logger.Warn("reconcile failed: %v", err)
			}

		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				logger.Warn("reconcile failed: %v", err)
			}
		}
	}
}

// Reconcile runs one pass: classify every workspace directory,
// register what can be registered and report registered jobs whose
// directory is missing. Conditions are only reported when they change,
// registrations always.
func (w *Watcher) Reconcile(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.project.WorkspaceDir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return fmt.Errorf("reading workspace directory: %w", err)
		}
	}

	current := make(map[string]EventType)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(w.project.WorkspaceDir, entry.Name())

		ev := w.checkDir(ctx, path, entry.Name())
		if ev == nil {
			continue
		}
		if ev.Type == EventRegistered {
			w.emit(*ev)
			continue
		}
		current[path] = ev.Type
		if w.state[path] != ev.Type {
			w.emit(*ev)
		}
	}
	w.state = current

	return w.checkMissing(ctx)
}

// checkDir classifies one workspace directory and registers it when it
// holds a valid manifest the registry does not know yet. Returns nil
// for healthy registered directories.
func (w *Watcher) checkDir(ctx context.Context, path, name string) *Event {
	data, err := os.ReadFile(filepath.Join(path, domain.ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Event{Type: EventUnknown, Path: path}
		}
		return &Event{Type: EventError, Path: path, Err: err}
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return &Event{Type: EventCorrupt, Path: path, Err: err}
	}
	if manifest.Project != w.project.ID {
		return &Event{Type: EventForeign, Path: path}
	}
	if err := manifest.Verify(w.project.ID, name, w.project.SchemaVersion); err != nil {
		return &Event{Type: EventCorrupt, Path: path, Err: err}
	}

	_, err = w.jobs.Get(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return &Event{Type: EventError, JobID: name, Path: path, Err: err}
	}

	if _, err := w.jobs.Create(ctx, manifest.Parameters); err != nil {
		return &Event{Type: EventError, JobID: name, Path: path, Err: err}
	}
	return &Event{Type: EventRegistered, JobID: name, Path: path}
}

// checkMissing reports registered jobs whose workspace directory is
// gone. Each job is reported once until its directory reappears.
func (w *Watcher) checkMissing(ctx context.Context) error {
	jobs, err := w.jobs.List(ctx)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		if _, err := os.Stat(job.Workspace); err == nil {
			delete(w.gone, job.ID)
			continue
		} else if !os.IsNotExist(err) {
			continue
		}
		if w.gone[job.ID] {
			continue
		}
		w.gone[job.ID] = true
		w.emit(Event{Type: EventMissing, JobID: job.ID, Path: job.Workspace})
	}
	return nil
}

// emit reports one event to the handler.
func (w *Watcher) emit(e Event) {
	logger.Debug("watch %s: job=%s path=%s err=%v", e.Type, e.JobID, e.Path, e.Err)
	if w.handler != nil {
		w.handler(e)
	}
}
