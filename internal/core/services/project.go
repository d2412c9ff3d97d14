package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ensure ProjectService implements the interface.
var _ driving.ProjectService = (*ProjectService)(nil)

// ProjectService manages the project as a whole: status aggregation,
// self-checks, dead-instance cleanup, the persistent log and schema
// migration.
type ProjectService struct {
	project     *domain.Project
	registry    driven.JobRegistry
	docStore    driven.JobDocumentStore
	lockStore   driven.LockStore
	pulseStore  driven.PulseStore
	queueStore  driven.QueueStore
	logStore    driven.LogStore
	configStore driven.ConfigStore
	projectLog  *ProjectLog
}

// NewProjectService creates a new project service.
func NewProjectService(
	project *domain.Project,
	registry driven.JobRegistry,
	docStore driven.JobDocumentStore,
	lockStore driven.LockStore,
	pulseStore driven.PulseStore,
	queueStore driven.QueueStore,
	logStore driven.LogStore,
	configStore driven.ConfigStore,
	projectLog *ProjectLog,
) *ProjectService {
	return &ProjectService{
		project:     project,
		registry:    registry,
		docStore:    docStore,
		lockStore:   lockStore,
		pulseStore:  pulseStore,
		queueStore:  queueStore,
		logStore:    logStore,
		configStore: configStore,
		projectLog:  projectLog,
	}
}

// online returns domain.ErrOffline when the project has no store.
func (s *ProjectService) online() error {
	if s.registry == nil {
		return domain.ErrOffline
	}
	return nil
}

// Project returns the descriptor of the configured project.
func (s *ProjectService) Project() *domain.Project {
	return s.project
}

// Status aggregates the numbers the info and status commands show.
func (s *ProjectService) Status(ctx context.Context) (*driving.ProjectStatus, error) {
	if err := s.online(); err != nil {
		return nil, err
	}

	jobs, err := s.registry.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	instances, err := s.registry.ListAllInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	pulses, err := s.pulseStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pulses: %w", err)
	}
	counts, err := s.queueStore.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting queue entries: %w", err)
	}
	locks, err := s.lockStore.ListHeld(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing locks: %w", err)
	}

	return &driving.ProjectStatus{
		Project:       *s.project,
		JobCount:      len(jobs),
		OpenInstances: instances,
		Pulses:        pulses,
		Queue:         counts,
		HeldLocks:     locks,
	}, nil
}

// Check runs the project self-checks in order. A failing check is a
// result, not an error.
func (s *ProjectService) Check(ctx context.Context) ([]driving.CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := []driving.CheckResult{
		{Name: "project configuration", Err: s.project.Validate()},
		{Name: "workspace directory", Err: checkDirectory(s.project.WorkspaceDir)},
		{Name: "storage directory", Err: checkDirectory(s.project.StorageDir)},
	}

	storeCheck := driving.CheckResult{Name: "project store"}
	if err := s.online(); err != nil {
		storeCheck.Err = err
	} else if _, err := s.registry.ListJobs(ctx); err != nil {
		storeCheck.Err = err
	}
	results = append(results, storeCheck)

	coordCheck := driving.CheckResult{Name: "coordination backend"}
	if s.lockStore == nil {
		coordCheck.Err = domain.ErrOffline
	} else if _, err := s.lockStore.ListHeld(ctx); err != nil {
		coordCheck.Err = err
	}
	results = append(results, coordCheck)

	return results, nil
}

// checkDirectory verifies a path exists and is a directory.
func checkDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Cleanup kills instances whose pulse is older than the tolerance.
// Instances that never managed a beat are judged by their opening time.
func (s *ProjectService) Cleanup(ctx context.Context, tolerance time.Duration) ([]domain.DeadInstance, error) {
	if tolerance <= domain.PulsePeriod {
		return nil, fmt.Errorf("%w: tolerance %v must exceed the pulse period %v",
			domain.ErrInvalidInput, tolerance, domain.PulsePeriod)
	}
	if err := s.online(); err != nil {
		return nil, err
	}

	instances, err := s.registry.ListAllInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	now := time.Now().UTC()
	var dead []domain.DeadInstance
	for _, inst := range instances {
		lastBeat := inst.OpenedAt
		if pulse, err := s.pulseStore.Get(ctx, inst.InstanceID); err == nil {
			lastBeat = pulse.BeatAt
		}
		if now.Sub(lastBeat) <= tolerance {
			continue
		}
		dead = append(dead, domain.DeadInstance{Instance: inst, LastBeat: lastBeat})
	}

	for _, d := range dead {
		inst := d.Instance

		//nolint:errcheck // removing an already-removed pulse is fine
		_ = s.pulseStore.Remove(ctx, inst.InstanceID)
		if err := s.registry.RemoveInstance(ctx, inst.InstanceID); err != nil {
			return nil, fmt.Errorf("removing instance %s: %w", inst.InstanceID, err)
		}
		//nolint:errcheck // the lock may legitimately be free
		_ = s.lockStore.ForceRelease(ctx, inst.JobID)

		entry := map[string]any{
			"message": fmt.Sprintf("instance presumed dead; last pulse at %s",
				d.LastBeat.UTC().Format(time.RFC3339)),
			"instance_id": inst.InstanceID,
			"recorded_at": now.Format(time.RFC3339),
		}
		if err := s.docStore.AppendToList(ctx, inst.JobID, domain.JobErrorKey, entry); err != nil {
			return nil, fmt.Errorf("recording death of instance %s: %w", inst.InstanceID, err)
		}

		s.projectLog.Record(ctx, domain.LogLevelWarning, "cleanup",
			"Killed dead instance %s of job %s (last beat %v ago)",
			inst.InstanceID, shortID(inst.JobID), now.Sub(d.LastBeat).Round(time.Second))
	}

	return dead, nil
}

// Log returns recent project log records at or above minLevel.
func (s *ProjectService) Log(ctx context.Context, minLevel domain.LogLevel, limit int) ([]domain.LogRecord, error) {
	if s.logStore == nil {
		return nil, domain.ErrOffline
	}
	return s.logStore.Tail(ctx, minLevel, limit)
}

// ClearLogs removes all project log records.
func (s *ProjectService) ClearLogs(ctx context.Context) (int, error) {
	if s.logStore == nil {
		return 0, domain.ErrOffline
	}
	return s.logStore.Clear(ctx)
}

// Migrate upgrades the project to the current schema version. Jobs
// whose IDs change under the new hashing rule are re-keyed: their
// directories move and their documents follow. Manifests stay valid
// because they carry the parameters, not the ID.
func (s *ProjectService) Migrate(ctx context.Context) (int, error) {
	current := domain.MustSchemaVersion(domain.SchemaVersionCurrent)
	switch s.project.SchemaVersion.Compare(current) {
	case 0:
		return 0, nil
	case 1:
		return 0, fmt.Errorf("%w: project is at %s, this build supports %s",
			domain.ErrSchemaVersion, s.project.SchemaVersion, current)
	}
	if err := s.online(); err != nil {
		return 0, err
	}

	instances, err := s.registry.ListAllInstances(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing instances: %w", err)
	}
	if len(instances) > 0 {
		return 0, fmt.Errorf("%w: close open jobs before migrating", domain.ErrJobOpen)
	}
	counts, err := s.queueStore.Counts(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting queue entries: %w", err)
	}
	if counts.Queued > 0 || counts.Active > 0 {
		return 0, fmt.Errorf("%w: drain the queue before migrating (%d queued, %d active)",
			domain.ErrInvalidInput, counts.Queued, counts.Active)
	}

	jobs, err := s.registry.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing jobs: %w", err)
	}

	migrated := 0
	for i := range jobs {
		job := jobs[i]
		newID, err := job.Parameters.ID(s.project.ID, current)
		if err != nil {
			return migrated, fmt.Errorf("hashing job %s: %w", shortID(job.ID), err)
		}
		if newID == job.ID {
			continue
		}
		if err := s.migrateJob(ctx, &job, newID); err != nil {
			return migrated, err
		}
		migrated++
	}

	s.project.SchemaVersion = current
	if s.configStore != nil {
		if err := s.configStore.Set("project.schema_version", current.String()); err != nil {
			return migrated, fmt.Errorf("updating schema version: %w", err)
		}
	}

	s.projectLog.Record(ctx, domain.LogLevelInfo, "migrate",
		"Migrated project to schema %s (%d jobs re-keyed)", current, migrated)
	return migrated, nil
}

// migrateJob re-keys one job: moves its directories, carries its
// document over and swaps the registration.
func (s *ProjectService) migrateJob(ctx context.Context, job *domain.Job, newID string) error {
	moves := [][2]string{
		{s.project.JobWorkspace(job.ID), s.project.JobWorkspace(newID)},
		{s.project.JobStorage(job.ID), s.project.JobStorage(newID)},
	}
	for _, m := range moves {
		if _, err := os.Stat(m[0]); err != nil {
			continue
		}
		if err := os.Rename(m[0], m[1]); err != nil {
			return fmt.Errorf("moving %s: %w", m[0], err)
		}
	}

	doc, err := s.docStore.GetDocument(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("loading document of %s: %w", shortID(job.ID), err)
	}
	for key, value := range doc {
		if err := s.docStore.SetValue(ctx, newID, key, value); err != nil {
			return fmt.Errorf("carrying document key %q: %w", key, err)
		}
	}
	if err := s.docStore.DeleteDocument(ctx, job.ID); err != nil {
		return fmt.Errorf("removing old document: %w", err)
	}

	//nolint:errcheck // the old lock row is garbage either way
	_ = s.lockStore.ForceRelease(ctx, job.ID)

	newJob := *job
	newJob.ID = newID
	if err := s.registry.SaveJob(ctx, &newJob); err != nil {
		return fmt.Errorf("registering re-keyed job: %w", err)
	}
	if err := s.registry.DeleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("removing old registration: %w", err)
	}
	return nil
}
