package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure QueueStore implements the interface.
var _ driven.QueueStore = (*QueueStore)(nil)

// QueueStore is an in-memory implementation of driven.QueueStore.
type QueueStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]domain.QueueEntry
}

// NewQueueStore creates a new in-memory queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{
		entries: make(map[int64]domain.QueueEntry),
	}
}

// Enqueue stores a new entry in the queued state and assigns its ID.
func (s *QueueStore) Enqueue(_ context.Context, entry *domain.QueueEntry) error {
	if entry.JobID == "" || entry.Task == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	entry.State = domain.QueueStateQueued
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	s.entries[entry.ID] = *entry
	return nil
}

// Put stores an entry verbatim, keeping its ID, state and timestamps.
func (s *QueueStore) Put(_ context.Context, entry *domain.QueueEntry) error {
	if entry.ID == 0 || entry.JobID == "" || entry.Task == "" || !entry.State.IsValid() {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.ID] = *entry
	if entry.ID > s.nextID {
		s.nextID = entry.ID
	}
	return nil
}

// Claim atomically moves the oldest queued entry to active.
func (s *QueueStore) Claim(_ context.Context, workerID string) (*domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *domain.QueueEntry
	for id := range s.entries {
		entry := s.entries[id]
		if entry.State != domain.QueueStateQueued {
			continue
		}
		if oldest == nil || entry.ID < oldest.ID {
			oldest = &entry
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}

	oldest.State = domain.QueueStateActive
	oldest.WorkerID = workerID
	oldest.StartedAt = time.Now().UTC()
	s.entries[oldest.ID] = *oldest
	return oldest, nil
}

// Finish moves an active entry to completed or aborted.
func (s *QueueStore) Finish(_ context.Context, entryID int64, state domain.QueueState, errMsg string) error {
	if !state.Terminal() {
		return fmt.Errorf("%w: finish state %q is not terminal", domain.ErrInvalidInput, state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok || entry.State != domain.QueueStateActive {
		return domain.ErrNotFound
	}
	entry.State = state
	entry.Error = errMsg
	entry.EndedAt = time.Now().UTC()
	s.entries[entryID] = entry
	return nil
}

// Get retrieves an entry by ID.
func (s *QueueStore) Get(_ context.Context, entryID int64) (*domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// List returns entries in the given state, oldest first. An empty state
// lists everything.
func (s *QueueStore) List(_ context.Context, state domain.QueueState) ([]domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.QueueEntry
	for id := range s.entries {
		if state == "" || s.entries[id].State == state {
			entries = append(entries, s.entries[id])
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Counts returns per-state entry counts.
func (s *QueueStore) Counts(_ context.Context) (domain.QueueCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts domain.QueueCounts
	for id := range s.entries {
		switch s.entries[id].State {
		case domain.QueueStateQueued:
			counts.Queued++
		case domain.QueueStateActive:
			counts.Active++
		case domain.QueueStateCompleted:
			counts.Completed++
		case domain.QueueStateAborted:
			counts.Aborted++
		}
	}
	return counts, nil
}

// ClearState removes all entries in the given state.
func (s *QueueStore) ClearState(_ context.Context, state domain.QueueState) (int, error) {
	if !state.IsValid() {
		return 0, fmt.Errorf("%w: queue state %q", domain.ErrInvalidInput, state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id := range s.entries {
		if s.entries[id].State == state {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// DeleteByJob removes all entries of one job, any state.
func (s *QueueStore) DeleteByJob(_ context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id := range s.entries {
		if s.entries[id].JobID == jobID {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
