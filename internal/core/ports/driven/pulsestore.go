package driven

import (
	"context"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
)

// PulseStore persists instance heartbeats.
type PulseStore interface {
	// Beat upserts the heartbeat of an instance to the given time.
	Beat(ctx context.Context, instanceID, jobID string, at time.Time) error

	// Remove deletes the heartbeat of an instance.
	Remove(ctx context.Context, instanceID string) error

	// List returns all recorded heartbeats.
	List(ctx context.Context) ([]domain.Pulse, error)

	// Get returns the heartbeat of one instance.
	Get(ctx context.Context, instanceID string) (*domain.Pulse, error)
}
