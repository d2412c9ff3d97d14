package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure LockStore implements the interface.
var _ driven.LockStore = (*LockStore)(nil)

// LockStore is an in-memory implementation of driven.LockStore. The
// single mutex makes every operation atomic, matching the conditional
// statement semantics of the SQLite store.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]domain.LockState
}

// NewLockStore creates a new in-memory lock store.
func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[string]domain.LockState),
	}
}

// TryAcquire claims the named lock for lockID if free, or increments
// the count if reentrant and already held by lockID.
func (s *LockStore) TryAcquire(_ context.Context, name, lockID string, reentrant bool) error {
	if name == "" || lockID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.locks[name]
	switch {
	case state.Holder == "":
		s.locks[name] = domain.LockState{
			Name:       name,
			Holder:     lockID,
			Count:      1,
			AcquiredAt: time.Now().UTC(),
		}
		return nil
	case state.Holder == lockID && reentrant:
		state.Count++
		s.locks[name] = state
		return nil
	default:
		return domain.ErrLockHeld
	}
}

// Release decrements a reentrant hold or frees the lock.
func (s *LockStore) Release(_ context.Context, name, lockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.locks[name]
	if !ok || state.Holder != lockID {
		return domain.ErrLockNotHeld
	}
	if state.Count > 1 {
		state.Count--
	} else {
		state.Holder = ""
		state.Count = 0
	}
	s.locks[name] = state
	return nil
}

// ForceRelease frees the lock regardless of holder.
func (s *LockStore) ForceRelease(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.locks[name]
	if !ok {
		return nil
	}
	state.Holder = ""
	state.Count = 0
	s.locks[name] = state
	return nil
}

// Get returns the current state of the named lock.
func (s *LockStore) Get(_ context.Context, name string) (*domain.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.locks[name]
	if !ok {
		return &domain.LockState{Name: name}, nil
	}
	return &state, nil
}

// ListHeld returns all currently held locks ordered by name.
func (s *LockStore) ListHeld(_ context.Context) ([]domain.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var held []domain.LockState
	for name := range s.locks {
		if s.locks[name].Holder != "" {
			held = append(held, s.locks[name])
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Name < held[j].Name })
	return held, nil
}
