package driven

import (
	"context"

	"github.com/stratalabs/strata/internal/core/domain"
)

// LockStore provides the conditional primitives the lock service builds
// on. Every method is a single atomic compare-and-set against the
// backing store; retry loops and backoff live in the service.
type LockStore interface {
	// TryAcquire claims the named lock for lockID if it is free, or
	// increments the count if reentrant and already held by lockID.
	// Returns domain.ErrLockHeld when another owner holds it.
	TryAcquire(ctx context.Context, name, lockID string, reentrant bool) error

	// Release decrements a reentrant hold or frees the lock. Returns
	// domain.ErrLockNotHeld when lockID is not the current holder.
	Release(ctx context.Context, name, lockID string) error

	// ForceRelease frees the lock regardless of holder. Operator
	// recovery only.
	ForceRelease(ctx context.Context, name string) error

	// Get returns the current state of the named lock. A never-locked
	// name returns a free state, not an error.
	Get(ctx context.Context, name string) (*domain.LockState, error)

	// ListHeld returns all currently held locks.
	ListHeld(ctx context.Context) ([]domain.LockState, error)
}
