package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure PulseStore implements the interface.
var _ driven.PulseStore = (*PulseStore)(nil)

// PulseStore is an in-memory implementation of driven.PulseStore.
type PulseStore struct {
	mu     sync.RWMutex
	pulses map[string]domain.Pulse
}

// NewPulseStore creates a new in-memory pulse store.
func NewPulseStore() *PulseStore {
	return &PulseStore{
		pulses: make(map[string]domain.Pulse),
	}
}

// Beat upserts the heartbeat of an instance.
func (s *PulseStore) Beat(_ context.Context, instanceID, jobID string, at time.Time) error {
	if instanceID == "" || jobID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulses[instanceID] = domain.Pulse{
		InstanceID: instanceID,
		JobID:      jobID,
		BeatAt:     at.UTC(),
	}
	return nil
}

// Remove deletes the heartbeat of an instance.
func (s *PulseStore) Remove(_ context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pulses, instanceID)
	return nil
}

// List returns all recorded heartbeats ordered by instance ID.
func (s *PulseStore) List(_ context.Context) ([]domain.Pulse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pulses := make([]domain.Pulse, 0, len(s.pulses))
	for id := range s.pulses {
		pulses = append(pulses, s.pulses[id])
	}
	sort.Slice(pulses, func(i, j int) bool { return pulses[i].InstanceID < pulses[j].InstanceID })
	return pulses, nil
}

// Get returns the heartbeat of one instance.
func (s *PulseStore) Get(_ context.Context, instanceID string) (*domain.Pulse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pulse, ok := s.pulses[instanceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &pulse, nil
}
