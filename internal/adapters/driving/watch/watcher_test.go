package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/adapters/driven/storage/memory"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/services"
)

type testEnv struct {
	watcher *Watcher
	jobs    *services.JobService
	project *domain.Project
	events  *[]Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	project := &domain.Project{
		ID:            "demo",
		Root:          root,
		WorkspaceDir:  filepath.Join(root, "workspace"),
		StorageDir:    filepath.Join(root, "storage"),
		SchemaVersion: domain.MustSchemaVersion(domain.SchemaVersionCurrent),
	}

	projectLog := services.NewProjectLog(memory.NewLogStore())
	jobs := services.NewJobService(project, memory.NewJobRegistry(), memory.NewJobDocumentStore(),
		memory.NewLockStore(), memory.NewPulseStore(), memory.NewQueueStore(), projectLog)
	jobs.SetPulseDisabled(true)

	events := []Event{}
	watcher := New(project, jobs, func(e Event) {
		events = append(events, e)
	})

	require.NoError(t, os.MkdirAll(project.WorkspaceDir, 0o755))

	return &testEnv{watcher: watcher, jobs: jobs, project: project, events: &events}
}

// writeJobDir creates a workspace directory with a valid manifest the
// way an external tool would, without going through the job service.
func writeJobDir(t *testing.T, project *domain.Project, params domain.Parameters) (string, string) {
	t.Helper()

	id, err := params.ID(project.ID, project.SchemaVersion)
	require.NoError(t, err)

	dir := filepath.Join(project.WorkspaceDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	manifest := domain.Manifest{Project: project.ID, Parameters: params}
	data, err := json.Marshal(&manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ManifestName), data, 0o644))

	return dir, id
}

func (e *testEnv) eventsOf(eventType EventType) []Event {
	var out []Event
	for _, ev := range *e.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestWatcher_Reconcile_RegistersManifestDir(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, id := writeJobDir(t, env.project, domain.Parameters{"alpha": 0.5})

	require.NoError(t, env.watcher.Reconcile(ctx))

	job, err := env.jobs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)

	registered := env.eventsOf(EventRegistered)
	require.Len(t, registered, 1)
	assert.Equal(t, id, registered[0].JobID)
}

func TestWatcher_Reconcile_HealthyDirIsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.jobs.Create(ctx, domain.Parameters{"alpha": 0.5})
	require.NoError(t, err)

	require.NoError(t, env.watcher.Reconcile(ctx))

	assert.Empty(t, *env.events)
}

func TestWatcher_Reconcile_UnknownDirReportedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(env.project.WorkspaceDir, "scratch"), 0o755))

	require.NoError(t, env.watcher.Reconcile(ctx))
	require.NoError(t, env.watcher.Reconcile(ctx))

	assert.Len(t, env.eventsOf(EventUnknown), 1)
}

func TestWatcher_Reconcile_ForeignManifest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dir := filepath.Join(env.project.WorkspaceDir, "deadbeef")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := domain.Manifest{Project: "other", Parameters: domain.Parameters{"alpha": 1.0}}
	data, err := json.Marshal(&manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ManifestName), data, 0o644))

	require.NoError(t, env.watcher.Reconcile(ctx))

	require.Len(t, env.eventsOf(EventForeign), 1)
	// Foreign directories are never registered.
	jobs, err := env.jobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestWatcher_Reconcile_CorruptManifest(t *testing.T) {
	t.Run("unparseable", func(t *testing.T) {
		env := newTestEnv(t)
		dir := filepath.Join(env.project.WorkspaceDir, "deadbeef")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ManifestName), []byte("{oops"), 0o644))

		require.NoError(t, env.watcher.Reconcile(context.Background()))

		require.Len(t, env.eventsOf(EventCorrupt), 1)
		assert.Error(t, env.eventsOf(EventCorrupt)[0].Err)
	})

	t.Run("hash mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		// Manifest parameters hash to a different ID than the directory name.
		dir := filepath.Join(env.project.WorkspaceDir, "deadbeef")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		manifest := domain.Manifest{Project: env.project.ID, Parameters: domain.Parameters{"alpha": 0.5}}
		data, err := json.Marshal(&manifest)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ManifestName), data, 0o644))

		require.NoError(t, env.watcher.Reconcile(context.Background()))

		require.Len(t, env.eventsOf(EventCorrupt), 1)
	})
}

func TestWatcher_Reconcile_MissingWorkspaceReportedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job, err := env.jobs.Create(ctx, domain.Parameters{"alpha": 0.5})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(job.Workspace))

	require.NoError(t, env.watcher.Reconcile(ctx))
	require.NoError(t, env.watcher.Reconcile(ctx))

	missing := env.eventsOf(EventMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, job.ID, missing[0].JobID)
}

func TestWatcher_Reconcile_MissingClearsWhenDirReturns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job, err := env.jobs.Create(ctx, domain.Parameters{"alpha": 0.5})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(job.Workspace))
	require.NoError(t, env.watcher.Reconcile(ctx))
	require.Len(t, env.eventsOf(EventMissing), 1)

	// Directory comes back, then disappears again: reported again.
	writeJobDir(t, env.project, domain.Parameters{"alpha": 0.5})
	require.NoError(t, env.watcher.Reconcile(ctx))
	require.NoError(t, os.RemoveAll(job.Workspace))
	require.NoError(t, env.watcher.Reconcile(ctx))

	assert.Len(t, env.eventsOf(EventMissing), 2)
}

func TestWatcher_Reconcile_IgnoresFiles(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.project.WorkspaceDir, "notes.txt"), []byte("x"), 0o644))

	require.NoError(t, env.watcher.Reconcile(context.Background()))

	assert.Empty(t, *env.events)
}

func TestWatcher_Reconcile_NoWorkspaceDir(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.RemoveAll(env.project.WorkspaceDir))

	assert.NoError(t, env.watcher.Reconcile(context.Background()))
}

func TestWatcher_Run_PicksUpNewDir(t *testing.T) {
	env := newTestEnv(t)
	env.watcher.debounce = 50 * time.Millisecond
	env.watcher.rescan = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.watcher.Run(ctx)
	}()

	// Give the watcher a moment to install before creating the job dir.
	time.Sleep(100 * time.Millisecond)
	_, id := writeJobDir(t, env.project, domain.Parameters{"alpha": 2.5})

	require.Eventually(t, func() bool {
		_, err := env.jobs.Get(context.Background(), id)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
