package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// queueStore implements driven.QueueStore.
type queueStore struct {
	store *Store
}

var _ driven.QueueStore = (*queueStore)(nil)

// Enqueue stores a new entry in the queued state and assigns its ID.
func (s *queueStore) Enqueue(ctx context.Context, entry *domain.QueueEntry) error {
	if entry.JobID == "" || entry.Task == "" {
		return domain.ErrInvalidInput
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	entry.State = domain.QueueStateQueued

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO queue (job_id, task, state, enqueued_at)
		VALUES (?, ?, ?, ?)
	`, entry.JobID, entry.Task, string(entry.State), entry.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("enqueueing entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// Put stores an entry verbatim, keeping its ID, state and timestamps.
func (s *queueStore) Put(ctx context.Context, entry *domain.QueueEntry) error {
	if entry.ID == 0 || entry.JobID == "" || entry.Task == "" || !entry.State.IsValid() {
		return domain.ErrInvalidInput
	}

	var startedAt, endedAt any
	if !entry.StartedAt.IsZero() {
		startedAt = entry.StartedAt
	}
	if !entry.EndedAt.IsZero() {
		endedAt = entry.EndedAt
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO queue (id, job_id, task, state, worker_id, error, enqueued_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.JobID, entry.Task, string(entry.State), entry.WorkerID,
		entry.Error, entry.EnqueuedAt, startedAt, endedAt)
	if err != nil {
		return fmt.Errorf("putting queue entry: %w", err)
	}
	return nil
}

// Claim atomically moves the oldest queued entry to active for the
// given worker. The conditional UPDATE makes the claim race-free: a
// concurrent worker updating the same row first leaves zero rows for
// the loser, which then retries on the next candidate.
func (s *queueStore) Claim(ctx context.Context, workerID string) (*domain.QueueEntry, error) {
	for {
		var id int64
		err := s.store.db.QueryRowContext(ctx, `
			SELECT id FROM queue WHERE state = ? ORDER BY id LIMIT 1
		`, string(domain.QueueStateQueued)).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("selecting queued entry: %w", err)
		}

		res, err := s.store.db.ExecContext(ctx, `
			UPDATE queue SET state = ?, worker_id = ?, started_at = ?
			WHERE id = ? AND state = ?
		`, string(domain.QueueStateActive), workerID, time.Now().UTC(),
			id, string(domain.QueueStateQueued))
		if err != nil {
			return nil, fmt.Errorf("claiming entry: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("checking claim: %w", err)
		}
		if n == 0 {
			continue // Lost the race, try the next candidate
		}

		return s.Get(ctx, id)
	}
}

// Finish moves an active entry to completed or aborted.
func (s *queueStore) Finish(ctx context.Context, entryID int64, state domain.QueueState, errMsg string) error {
	if !state.Terminal() {
		return fmt.Errorf("%w: finish state %q is not terminal", domain.ErrInvalidInput, state)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE queue SET state = ?, error = ?, ended_at = ?
		WHERE id = ? AND state = ?
	`, string(state), errMsg, time.Now().UTC(), entryID, string(domain.QueueStateActive))
	if err != nil {
		return fmt.Errorf("finishing entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking finish: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *queueStore) Get(ctx context.Context, entryID int64) (*domain.QueueEntry, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, job_id, task, state, worker_id, error, enqueued_at, started_at, ended_at
		FROM queue WHERE id = ?
	`, entryID)

	var entry domain.QueueEntry
	var state string
	var enqueuedAt, startedAt, endedAt sql.NullTime
	if err := row.Scan(&entry.ID, &entry.JobID, &entry.Task, &state, &entry.WorkerID,
		&entry.Error, &enqueuedAt, &startedAt, &endedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning queue entry: %w", err)
	}
	entry.State = domain.QueueState(state)
	if enqueuedAt.Valid {
		entry.EnqueuedAt = enqueuedAt.Time
	}
	if startedAt.Valid {
		entry.StartedAt = startedAt.Time
	}
	if endedAt.Valid {
		entry.EndedAt = endedAt.Time
	}

	return &entry, nil
}

// List returns entries in the given state, oldest first.
func (s *queueStore) List(ctx context.Context, state domain.QueueState) ([]domain.QueueEntry, error) {
	query := `
		SELECT id, job_id, task, state, worker_id, error, enqueued_at, started_at, ended_at
		FROM queue ORDER BY id
	`
	args := []any{}
	if state != "" {
		query = `
			SELECT id, job_id, task, state, worker_id, error, enqueued_at, started_at, ended_at
			FROM queue WHERE state = ? ORDER BY id
		`
		args = append(args, string(state))
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying queue: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.QueueEntry
		var st string
		var enqueuedAt, startedAt, endedAt sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Task, &st, &entry.WorkerID,
			&entry.Error, &enqueuedAt, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		entry.State = domain.QueueState(st)
		if enqueuedAt.Valid {
			entry.EnqueuedAt = enqueuedAt.Time
		}
		if startedAt.Valid {
			entry.StartedAt = startedAt.Time
		}
		if endedAt.Valid {
			entry.EndedAt = endedAt.Time
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue entries: %w", err)
	}

	return entries, nil
}

// Counts returns per-state entry counts.
func (s *queueStore) Counts(ctx context.Context) (domain.QueueCounts, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM queue GROUP BY state
	`)
	if err != nil {
		return domain.QueueCounts{}, fmt.Errorf("counting queue entries: %w", err)
	}
	defer rows.Close()

	var counts domain.QueueCounts
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return domain.QueueCounts{}, fmt.Errorf("scanning queue count: %w", err)
		}
		switch domain.QueueState(state) {
		case domain.QueueStateQueued:
			counts.Queued = n
		case domain.QueueStateActive:
			counts.Active = n
		case domain.QueueStateCompleted:
			counts.Completed = n
		case domain.QueueStateAborted:
			counts.Aborted = n
		}
	}

	if err := rows.Err(); err != nil {
		return domain.QueueCounts{}, fmt.Errorf("iterating queue counts: %w", err)
	}

	return counts, nil
}

// ClearState removes all entries in the given state.
func (s *queueStore) ClearState(ctx context.Context, state domain.QueueState) (int, error) {
	if !state.IsValid() {
		return 0, fmt.Errorf("%w: queue state %q", domain.ErrInvalidInput, state)
	}

	res, err := s.store.db.ExecContext(ctx, "DELETE FROM queue WHERE state = ?", string(state))
	if err != nil {
		return 0, fmt.Errorf("clearing queue state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking clear: %w", err)
	}
	return int(n), nil
}

// DeleteByJob removes all entries of one job, any state.
func (s *queueStore) DeleteByJob(ctx context.Context, jobID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM queue WHERE job_id = ?", jobID)
	if err != nil {
		return 0, fmt.Errorf("deleting queue entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking delete: %w", err)
	}
	return int(n), nil
}
