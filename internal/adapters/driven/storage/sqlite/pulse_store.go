package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// pulseStore implements driven.PulseStore.
type pulseStore struct {
	store *Store
}

var _ driven.PulseStore = (*pulseStore)(nil)

// Beat upserts the heartbeat of an instance.
func (s *pulseStore) Beat(ctx context.Context, instanceID, jobID string, at time.Time) error {
	if instanceID == "" || jobID == "" {
		return domain.ErrInvalidInput
	}

	if _, err := s.store.db.ExecContext(ctx, `
		INSERT INTO pulses (instance_id, job_id, beat_at)
		VALUES (?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET beat_at = excluded.beat_at
	`, instanceID, jobID, at.UTC()); err != nil {
		return fmt.Errorf("recording pulse: %w", err)
	}
	return nil
}

// Remove deletes the heartbeat of an instance. Removing an unknown
// instance is not an error.
func (s *pulseStore) Remove(ctx context.Context, instanceID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM pulses WHERE instance_id = ?", instanceID); err != nil {
		return fmt.Errorf("removing pulse: %w", err)
	}
	return nil
}

// List returns all recorded heartbeats.
func (s *pulseStore) List(ctx context.Context) ([]domain.Pulse, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT instance_id, job_id, beat_at FROM pulses ORDER BY instance_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying pulses: %w", err)
	}
	defer rows.Close()

	var pulses []domain.Pulse //nolint:prealloc // size unknown from query
	for rows.Next() {
		var pulse domain.Pulse
		if err := rows.Scan(&pulse.InstanceID, &pulse.JobID, &pulse.BeatAt); err != nil {
			return nil, fmt.Errorf("scanning pulse: %w", err)
		}
		pulses = append(pulses, pulse)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pulses: %w", err)
	}

	return pulses, nil
}

// Get returns the heartbeat of one instance.
func (s *pulseStore) Get(ctx context.Context, instanceID string) (*domain.Pulse, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT instance_id, job_id, beat_at FROM pulses WHERE instance_id = ?
	`, instanceID)

	var pulse domain.Pulse
	if err := row.Scan(&pulse.InstanceID, &pulse.JobID, &pulse.BeatAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning pulse: %w", err)
	}

	return &pulse, nil
}
