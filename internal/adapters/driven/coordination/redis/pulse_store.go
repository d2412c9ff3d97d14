package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// pulseStore implements driven.PulseStore. All heartbeats share one
// hash keyed by instance ID, so List is a single HGETALL.
type pulseStore struct {
	client *redis.Client
}

var _ driven.PulseStore = (*pulseStore)(nil)

type pulseRecord struct {
	JobID  string    `json:"job_id"`
	BeatAt time.Time `json:"beat_at"`
}

// Beat upserts the heartbeat of an instance.
func (s *pulseStore) Beat(ctx context.Context, instanceID, jobID string, at time.Time) error {
	if instanceID == "" || jobID == "" {
		return domain.ErrInvalidInput
	}

	data, err := json.Marshal(pulseRecord{JobID: jobID, BeatAt: at.UTC()})
	if err != nil {
		return fmt.Errorf("marshaling pulse: %w", err)
	}
	if err := s.client.HSet(ctx, pulsesKey, instanceID, data).Err(); err != nil {
		return fmt.Errorf("recording pulse: %w", err)
	}
	return nil
}

// Remove deletes the heartbeat of an instance. Removing an unknown
// instance is not an error.
func (s *pulseStore) Remove(ctx context.Context, instanceID string) error {
	if err := s.client.HDel(ctx, pulsesKey, instanceID).Err(); err != nil {
		return fmt.Errorf("removing pulse: %w", err)
	}
	return nil
}

// List returns all recorded heartbeats.
func (s *pulseStore) List(ctx context.Context) ([]domain.Pulse, error) {
	fields, err := s.client.HGetAll(ctx, pulsesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing pulses: %w", err)
	}

	pulses := make([]domain.Pulse, 0, len(fields))
	for instanceID, data := range fields {
		pulse, err := pulseFromJSON(instanceID, data)
		if err != nil {
			return nil, err
		}
		pulses = append(pulses, *pulse)
	}

	sort.Slice(pulses, func(i, j int) bool { return pulses[i].InstanceID < pulses[j].InstanceID })
	return pulses, nil
}

// Get returns the heartbeat of one instance.
func (s *pulseStore) Get(ctx context.Context, instanceID string) (*domain.Pulse, error) {
	data, err := s.client.HGet(ctx, pulsesKey, instanceID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading pulse: %w", err)
	}
	return pulseFromJSON(instanceID, data)
}

func pulseFromJSON(instanceID, data string) (*domain.Pulse, error) {
	var rec pulseRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling pulse: %w", err)
	}
	return &domain.Pulse{
		InstanceID: instanceID,
		JobID:      rec.JobID,
		BeatAt:     rec.BeatAt,
	}, nil
}
