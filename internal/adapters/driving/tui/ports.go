// Package tui provides the interactive status dashboard for strata.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the dashboard.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Project provides the project status overview.
	Project driving.ProjectService

	// Jobs lists and filters registered jobs.
	Jobs driving.JobService

	// Queue reports task queue state.
	Queue driving.QueueService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(
	project driving.ProjectService,
	jobs driving.JobService,
	queue driving.QueueService,
) *Ports {
	return &Ports{
		Project: project,
		Jobs:    jobs,
		Queue:   queue,
	}
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil.
func (p *Ports) Validate() error {
	if p.Project == nil {
		return ErrMissingProjectService
	}
	if p.Jobs == nil {
		return ErrMissingJobService
	}
	if p.Queue == nil {
		return ErrMissingQueueService
	}
	return nil
}
