package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ensure LockService implements the interface.
var _ driving.LockService = (*LockService)(nil)

// LockService implements advisory locking on top of a LockStore. The
// store provides the atomic claim; this service adds the blocking
// retry loop and its backoff schedule.
type LockService struct {
	lockStore driven.LockStore

	// retries caps how hard concurrently blocked acquires poll the
	// store. The tanh ramp already spaces retries out per caller; the
	// limiter bounds the aggregate across callers.
	retries *rate.Limiter
}

// NewLockService creates a new lock service.
func NewLockService(lockStore driven.LockStore) *LockService {
	return &LockService{
		lockStore: lockStore,
		retries:   rate.NewLimiter(rate.Every(time.Millisecond), 100),
	}
}

// online returns domain.ErrOffline when the project has no
// coordination backend.
func (s *LockService) online() error {
	if s.lockStore == nil {
		return domain.ErrOffline
	}
	return nil
}

// Acquire claims a lock per the request. Non-blocking requests make a
// single attempt; blocking requests retry on a tanh ramp until the
// lock is claimed, the timeout expires or the context is cancelled.
func (s *LockService) Acquire(ctx context.Context, req domain.LockRequest) error {
	if err := s.online(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if !req.Blocking {
		return s.lockStore.TryAcquire(ctx, req.Name, req.LockID, req.Reentrant)
	}

	var deadline time.Time
	if req.Timeout > 0 {
		deadline = time.Now().Add(req.Timeout)
	}

	for i := 0; ; i++ {
		err := s.lockStore.TryAcquire(ctx, req.Name, req.LockID, req.Reentrant)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return err
		}

		wait := domain.LockBackoff(i)
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return fmt.Errorf("%w: %s after %v", domain.ErrLockTimeout, req.Name, req.Timeout)
			}
			if wait > remaining {
				wait = remaining
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.retries.Wait(ctx); err != nil {
			return err
		}
	}
}

// Release releases a hold taken by Acquire.
func (s *LockService) Release(ctx context.Context, name, lockID string) error {
	if err := s.online(); err != nil {
		return err
	}
	return s.lockStore.Release(ctx, name, lockID)
}

// ForceRelease frees a lock regardless of holder.
func (s *LockService) ForceRelease(ctx context.Context, name string) error {
	if err := s.online(); err != nil {
		return err
	}
	return s.lockStore.ForceRelease(ctx, name)
}

// WithJobLock runs fn while holding the job's lock under a fresh lock
// id, blocking until acquired, and releases the lock afterwards.
func (s *LockService) WithJobLock(ctx context.Context, jobID string, fn func(ctx context.Context) error) error {
	lockID := uuid.NewString()
	req := domain.LockRequest{
		Name:     jobID,
		LockID:   lockID,
		Blocking: true,
		Timeout:  domain.WaitForever,
	}
	if err := s.Acquire(ctx, req); err != nil {
		return fmt.Errorf("acquiring job lock: %w", err)
	}

	err := fn(ctx)
	if rerr := s.Release(ctx, jobID, lockID); rerr != nil && err == nil {
		err = fmt.Errorf("releasing job lock: %w", rerr)
	}
	return err
}

// List returns all currently held locks.
func (s *LockService) List(ctx context.Context) ([]domain.LockState, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	return s.lockStore.ListHeld(ctx)
}
