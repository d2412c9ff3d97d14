package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ensure JobService implements the interface.
var _ driving.JobService = (*JobService)(nil)

// JobService manages jobs: handles, lifecycle, documents and removal.
// Handles and manifests work without any store; everything else needs
// the project opened online and returns domain.ErrOffline otherwise.
type JobService struct {
	project    *domain.Project
	registry   driven.JobRegistry
	docStore   driven.JobDocumentStore
	lockStore  driven.LockStore
	pulseStore driven.PulseStore
	queueStore driven.QueueStore
	projectLog *ProjectLog

	pulseDisabled bool
}

// NewJobService creates a new job service. The store arguments may all
// be nil for an offline project.
func NewJobService(
	project *domain.Project,
	registry driven.JobRegistry,
	docStore driven.JobDocumentStore,
	lockStore driven.LockStore,
	pulseStore driven.PulseStore,
	queueStore driven.QueueStore,
	projectLog *ProjectLog,
) *JobService {
	return &JobService{
		project:    project,
		registry:   registry,
		docStore:   docStore,
		lockStore:  lockStore,
		pulseStore: pulseStore,
		queueStore: queueStore,
		projectLog: projectLog,
	}
}

// SetPulseDisabled turns off heartbeat pulses for opened jobs. Meant
// for single-process setups where liveness tracking is noise.
func (s *JobService) SetPulseDisabled(disabled bool) {
	s.pulseDisabled = disabled
}

// online returns domain.ErrOffline when the project has no store.
func (s *JobService) online() error {
	if s.registry == nil {
		return domain.ErrOffline
	}
	return nil
}

// Job returns the handle for the given parameters without touching the
// store or the filesystem.
func (s *JobService) Job(params domain.Parameters) (*domain.Job, error) {
	id, err := params.ID(s.project.ID, s.project.SchemaVersion)
	if err != nil {
		return nil, err
	}
	return &domain.Job{
		ID:         id,
		ProjectID:  s.project.ID,
		Parameters: params,
		Workspace:  s.project.JobWorkspace(id),
		Storage:    s.project.JobStorage(id),
	}, nil
}

// fillPaths completes a job loaded from the registry, which does not
// persist the derived directory paths.
func (s *JobService) fillPaths(job *domain.Job) {
	job.Workspace = s.project.JobWorkspace(job.ID)
	job.Storage = s.project.JobStorage(job.ID)
}

// Create seeds the job's directories with manifests and registers the
// job. Existing directories are re-verified, so Create is idempotent
// for intact jobs and fails loudly for corrupted ones.
func (s *JobService) Create(ctx context.Context, params domain.Parameters) (*domain.Job, error) {
	job, err := s.Job(params)
	if err != nil {
		return nil, err
	}
	if err := s.online(); err != nil {
		return nil, err
	}

	for _, dir := range []string{job.Workspace, job.Storage} {
		if err := s.seedDirectory(dir, job); err != nil {
			return nil, err
		}
	}

	if err := s.registry.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("registering job: %w", err)
	}
	return job, nil
}

// seedDirectory creates one job directory and its manifest, or verifies
// the manifest when the directory already has one.
func (s *JobService) seedDirectory(dir string, job *domain.Job) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}

	manifestPath := filepath.Join(dir, domain.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return s.verifyManifest(manifestPath, job.ID)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking manifest %s: %w", manifestPath, err)
	}

	manifest := domain.Manifest{
		Project:    s.project.ID,
		Parameters: job.Parameters,
	}
	data, err := json.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", manifestPath, err)
	}
	return nil
}

// verifyManifest checks an existing manifest still matches the job.
func (s *JobService) verifyManifest(path, jobID string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrManifestCorrupt, path, err)
	}
	if err := manifest.Verify(s.project.ID, jobID, s.project.SchemaVersion); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Open creates the job if needed, registers an open instance and starts
// its pulse.
func (s *JobService) Open(ctx context.Context, params domain.Parameters) (driving.OpenJob, error) {
	job, err := s.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	inst := &domain.OpenInstance{
		JobID:      job.ID,
		InstanceID: uuid.NewString(),
		OpenedAt:   time.Now().UTC(),
		Hostname:   hostname(),
	}
	if err := s.registry.AddInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("registering instance: %w", err)
	}

	var pulse *pulseRunner
	if !s.pulseDisabled {
		pulse = newPulseRunner(s.pulseStore, inst.InstanceID, job.ID)
		if err := pulse.Start(ctx); err != nil {
			//nolint:errcheck // best-effort rollback of the registration
			_ = s.registry.RemoveInstance(ctx, inst.InstanceID)
			return nil, fmt.Errorf("starting pulse: %w", err)
		}
	}

	s.projectLog.Record(ctx, domain.LogLevelDebug, "job",
		"Opened job %s (instance %s)", shortID(job.ID), inst.InstanceID)

	return &openJob{svc: s, job: job, instance: inst, pulse: pulse}, nil
}

// Get resolves a job by full ID or unique prefix.
func (s *JobService) Get(ctx context.Context, idOrPrefix string) (*domain.Job, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty job id", domain.ErrInvalidInput)
	}

	job, err := s.registry.GetJob(ctx, idOrPrefix)
	if errors.Is(err, domain.ErrNotFound) {
		job, err = s.registry.FindJobByPrefix(ctx, idOrPrefix)
	}
	if err != nil {
		return nil, err
	}
	s.fillPaths(job)
	return job, nil
}

// List returns all registered jobs.
func (s *JobService) List(ctx context.Context) ([]domain.Job, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	jobs, err := s.registry.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		s.fillPaths(&jobs[i])
	}
	return jobs, nil
}

// Find returns jobs whose parameters and document satisfy the filter.
// Keys starting with "doc." match document values, all other keys match
// parameters.
func (s *JobService) Find(ctx context.Context, filter domain.Filter) ([]domain.Job, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if names := filter.DerivedFields(); len(names) > 0 {
		return nil, fmt.Errorf("%w: derived field %q applies to records, not jobs",
			domain.ErrInvalidInput, names[0])
	}

	paramFilter := make(domain.Filter)
	docFilter := make(domain.Filter)
	for key, value := range filter {
		if rest, ok := strings.CutPrefix(key, "doc."); ok {
			docFilter[rest] = value
		} else {
			paramFilter[key] = value
		}
	}

	jobs, err := s.registry.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	var matches []domain.Job
	for i := range jobs {
		job := &jobs[i]
		if !paramFilter.MetadataMatches(map[string]any(job.Parameters)) {
			continue
		}
		if len(docFilter) > 0 {
			doc, err := s.docStore.GetDocument(ctx, job.ID)
			if err != nil {
				return nil, fmt.Errorf("loading document of job %s: %w", shortID(job.ID), err)
			}
			if !docFilter.MetadataMatches(doc) {
				continue
			}
		}
		s.fillPaths(job)
		matches = append(matches, *job)
	}
	return matches, nil
}

// Status returns the aggregate status of one job.
func (s *JobService) Status(ctx context.Context, idOrPrefix string) (*domain.JobStatus, error) {
	job, err := s.Get(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	instances, err := s.registry.ListInstances(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	var lastPulse time.Time
	for _, inst := range instances {
		pulse, err := s.pulseStore.Get(ctx, inst.InstanceID)
		if err != nil {
			continue
		}
		if pulse.BeatAt.After(lastPulse) {
			lastPulse = pulse.BeatAt
		}
	}

	queued, err := s.queueStore.List(ctx, domain.QueueStateQueued)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	queuedTasks := 0
	for i := range queued {
		if queued[i].JobID == job.ID {
			queuedTasks++
		}
	}

	return &domain.JobStatus{
		Job:           *job,
		OpenInstances: instances,
		LastPulse:     lastPulse,
		QueuedTasks:   queuedTasks,
		Errors:        s.jobErrors(ctx, job.ID),
	}, nil
}

// jobErrors reads the job's error list from its document.
func (s *JobService) jobErrors(ctx context.Context, jobID string) []string {
	value, err := s.docStore.GetValue(ctx, jobID, domain.JobErrorKey)
	if err != nil {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				out = append(out, msg)
				continue
			}
			out = append(out, fmt.Sprintf("%v", v))
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprintf("%v", v))
		}
	}
	return out
}

// ScanParameters decodes a job's parameters into a caller struct.
// Numeric values decode weakly, so a parameter that arrived through
// JSON as float64 still fills an int field.
func (s *JobService) ScanParameters(job *domain.Job, out any) error {
	if job == nil || out == nil {
		return fmt.Errorf("%w: job and target are required", domain.ErrInvalidInput)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building parameter decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(job.Parameters)); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}

// Remove deletes a job: directories, document, instances, pulses and
// queue entries. Jobs with open instances require force.
func (s *JobService) Remove(ctx context.Context, idOrPrefix string, force bool) error {
	job, err := s.Get(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	return s.removeJob(ctx, job, force)
}

// RemoveAll removes every registered job and returns the count.
func (s *JobService) RemoveAll(ctx context.Context, force bool) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := range jobs {
		if err := s.removeJob(ctx, &jobs[i], force); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// removeJob deletes one resolved job.
func (s *JobService) removeJob(ctx context.Context, job *domain.Job, force bool) error {
	instances, err := s.registry.ListInstances(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("listing instances: %w", err)
	}
	if len(instances) > 0 && !force {
		return fmt.Errorf("%w: job %s has %d open instance(s)",
			domain.ErrJobOpen, shortID(job.ID), len(instances))
	}

	// Kill liveness first so nothing beats while the data goes away.
	for _, inst := range instances {
		//nolint:errcheck // continue removal; stale rows are cleanup fodder
		_ = s.pulseStore.Remove(ctx, inst.InstanceID)
		//nolint:errcheck // continue removal
		_ = s.registry.RemoveInstance(ctx, inst.InstanceID)
	}
	if err := s.lockStore.ForceRelease(ctx, job.ID); err != nil {
		return fmt.Errorf("releasing job lock: %w", err)
	}

	if _, err := s.queueStore.DeleteByJob(ctx, job.ID); err != nil {
		return fmt.Errorf("removing queue entries: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, job.ID); err != nil {
		return fmt.Errorf("removing document: %w", err)
	}
	for _, dir := range []string{job.Workspace, job.Storage} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	if err := s.registry.DeleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("deleting job registration: %w", err)
	}

	s.projectLog.Record(ctx, domain.LogLevelInfo, "job", "Removed job %s", shortID(job.ID))
	return nil
}

// GetDocument returns a job's whole key/value document.
func (s *JobService) GetDocument(ctx context.Context, idOrPrefix string) (map[string]any, error) {
	job, err := s.Get(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return s.docStore.GetDocument(ctx, job.ID)
}

// GetValue returns one document value addressed by its dotted key.
func (s *JobService) GetValue(ctx context.Context, idOrPrefix, key string) (any, error) {
	job, err := s.Get(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	path, err := domain.DocumentPath(key)
	if err != nil {
		return nil, err
	}
	value, err := s.docStore.GetValue(ctx, job.ID, path[0])
	if err != nil {
		return nil, fmt.Errorf("document key %q: %w", key, err)
	}
	value, err = domain.DocumentGet(value, path[1:])
	if err != nil {
		return nil, fmt.Errorf("document key %q: %w", key, err)
	}
	return value, nil
}

// SetValue stores one document value addressed by its dotted key.
// Intermediate maps along the path are created; the store only ever
// sees the top-level key.
func (s *JobService) SetValue(ctx context.Context, idOrPrefix, key string, value any) error {
	job, err := s.Get(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	path, err := domain.DocumentPath(key)
	if err != nil {
		return err
	}
	if len(path) == 1 {
		return s.docStore.SetValue(ctx, job.ID, key, value)
	}

	root, err := s.documentRoot(ctx, job.ID, path[0])
	if err != nil {
		return err
	}
	if err := domain.DocumentSet(root, path[1:], value); err != nil {
		return err
	}
	return s.docStore.SetValue(ctx, job.ID, path[0], root)
}

// UnsetValue removes one document value addressed by its dotted key.
// Removing an absent value is not an error.
func (s *JobService) UnsetValue(ctx context.Context, idOrPrefix, key string) error {
	job, err := s.Get(ctx, idOrPrefix)
	if err != nil {
		return err
	}
	path, err := domain.DocumentPath(key)
	if err != nil {
		return err
	}
	if len(path) == 1 {
		return s.docStore.DeleteValue(ctx, job.ID, key)
	}

	value, err := s.docStore.GetValue(ctx, job.ID, path[0])
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	root, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	if domain.DocumentUnset(root, path[1:]) {
		return s.docStore.SetValue(ctx, job.ID, path[0], root)
	}
	return nil
}

// documentRoot loads the top-level map behind a nested document key,
// starting a fresh one when the key is absent.
func (s *JobService) documentRoot(ctx context.Context, jobID, head string) (map[string]any, error) {
	value, err := s.docStore.GetValue(ctx, jobID, head)
	if errors.Is(err, domain.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	root, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document key %q holds a value, not a map", domain.ErrInvalidInput, head)
	}
	return root, nil
}

// openJob implements driving.OpenJob.
type openJob struct {
	svc      *JobService
	job      *domain.Job
	instance *domain.OpenInstance
	pulse    *pulseRunner

	mu     sync.Mutex
	closed bool
}

var _ driving.OpenJob = (*openJob)(nil)

// Job returns the underlying job handle.
func (o *openJob) Job() *domain.Job {
	return o.job
}

// InstanceID returns the unique ID of this opening.
func (o *openJob) InstanceID() string {
	return o.instance.InstanceID
}

// Close deregisters the instance and stops the pulse.
func (o *openJob) Close(ctx context.Context) error {
	return o.close(ctx, nil)
}

// CloseWithError is Close plus an entry appended to the job's error
// list.
func (o *openJob) CloseWithError(ctx context.Context, runErr error) error {
	return o.close(ctx, runErr)
}

func (o *openJob) close(ctx context.Context, runErr error) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("%w: job instance already closed", domain.ErrInvalidInput)
	}
	o.closed = true
	o.mu.Unlock()

	if o.pulse != nil {
		o.pulse.Stop()
	}

	var errs []error
	if runErr != nil {
		entry := map[string]any{
			"message":     runErr.Error(),
			"instance_id": o.instance.InstanceID,
			"recorded_at": time.Now().UTC().Format(time.RFC3339),
		}
		if err := o.svc.docStore.AppendToList(ctx, o.job.ID, domain.JobErrorKey, entry); err != nil {
			errs = append(errs, fmt.Errorf("recording job error: %w", err))
		}
		o.svc.projectLog.Record(ctx, domain.LogLevelError, "job",
			"Job %s failed: %v", shortID(o.job.ID), runErr)
	}

	if err := o.svc.pulseStore.Remove(ctx, o.instance.InstanceID); err != nil {
		errs = append(errs, fmt.Errorf("removing pulse: %w", err))
	}
	if err := o.svc.registry.RemoveInstance(ctx, o.instance.InstanceID); err != nil {
		errs = append(errs, fmt.Errorf("removing instance: %w", err))
	}
	return errors.Join(errs...)
}

// shortID abbreviates a job ID for log output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// hostname returns the local hostname for instance registrations.
func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
