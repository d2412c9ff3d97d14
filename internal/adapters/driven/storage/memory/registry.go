// Package memory provides in-memory implementations of the driven store
// interfaces for tests and ephemeral use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure JobRegistry implements the interface.
var _ driven.JobRegistry = (*JobRegistry)(nil)

// JobRegistry is an in-memory implementation of driven.JobRegistry.
type JobRegistry struct {
	mu        sync.RWMutex
	jobs      map[string]domain.Job
	instances map[string]domain.OpenInstance
}

// NewJobRegistry creates a new in-memory job registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs:      make(map[string]domain.Job),
		instances: make(map[string]domain.OpenInstance),
	}
}

// SaveJob stores or updates a job registration.
func (s *JobRegistry) SaveJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[job.ID]; ok {
		job.RegisteredAt = existing.RegisteredAt
	} else if job.RegisteredAt.IsZero() {
		job.RegisteredAt = time.Now().UTC()
	}
	s.jobs[job.ID] = *job
	return nil
}

// GetJob retrieves a job by its full ID.
func (s *JobRegistry) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// FindJobByPrefix resolves a unique job ID prefix.
func (s *JobRegistry) FindJobByPrefix(_ context.Context, prefix string) (*domain.Job, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty job id prefix", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *domain.Job
	for id := range s.jobs {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: job id prefix %q is ambiguous", domain.ErrInvalidInput, prefix)
		}
		job := s.jobs[id]
		match = &job
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	return match, nil
}

// ListJobs returns all registered jobs ordered by ID.
func (s *JobRegistry) ListJobs(_ context.Context) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.Job, 0, len(s.jobs))
	for id := range s.jobs {
		jobs = append(jobs, s.jobs[id])
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

// DeleteJob removes a job registration and its instances.
func (s *JobRegistry) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	for instID, inst := range s.instances {
		if inst.JobID == id {
			delete(s.instances, instID)
		}
	}
	return nil
}

// AddInstance registers an open instance of a job.
func (s *JobRegistry) AddInstance(_ context.Context, inst *domain.OpenInstance) error {
	if inst.InstanceID == "" || inst.JobID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst.OpenedAt.IsZero() {
		inst.OpenedAt = time.Now().UTC()
	}
	s.instances[inst.InstanceID] = *inst
	return nil
}

// RemoveInstance removes one open instance.
func (s *JobRegistry) RemoveInstance(_ context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, instanceID)
	return nil
}

// ListInstances returns the open instances of one job.
func (s *JobRegistry) ListInstances(_ context.Context, jobID string) ([]domain.OpenInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.OpenInstance
	for id := range s.instances {
		if s.instances[id].JobID == jobID {
			result = append(result, s.instances[id])
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OpenedAt.Before(result[j].OpenedAt) })
	return result, nil
}

// ListAllInstances returns every open instance.
func (s *JobRegistry) ListAllInstances(_ context.Context) ([]domain.OpenInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.OpenInstance, 0, len(s.instances))
	for id := range s.instances {
		result = append(result, s.instances[id])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OpenedAt.Before(result[j].OpenedAt) })
	return result, nil
}
