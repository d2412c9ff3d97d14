package mcp

import (
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ports carries the driving services the MCP server works over. The
// CLI fills it from its bootstrapped services.
type Ports struct {
	// Jobs resolves, finds and reads jobs and their documents.
	Jobs driving.JobService

	// Project reports project-wide status.
	Project driving.ProjectService

	// Queue reports task queue state.
	Queue driving.QueueService
}

// Validate reports whether the required ports are set. Jobs is the
// only hard requirement; the project and queue tools answer with an
// explanation when their service is absent.
func (p *Ports) Validate() error {
	if p.Jobs == nil {
		return ErrMissingJobService
	}
	return nil
}
