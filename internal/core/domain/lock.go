package domain

import (
	"fmt"
	"math"
	"time"
)

// MaxLockTimeout bounds how long a blocking acquire may wait. Requests
// beyond it are rejected rather than silently truncated.
const MaxLockTimeout = 100000 * time.Second

// WaitForever, passed as timeout, makes a blocking acquire wait until the
// context is cancelled.
const WaitForever time.Duration = -1

// LockState is the persisted state of one advisory lock.
// A zero Holder means the lock is free.
type LockState struct {
	// Name identifies the locked resource, usually a job ID.
	Name string

	// Holder is the lock ID of the current owner, empty when free.
	Holder string

	// Count is the reentrancy depth. Plain locks hold it at 1;
	// reentrant locks increment it on each re-acquire.
	Count int

	// AcquiredAt is when the current holder first took the lock.
	AcquiredAt time.Time
}

// Held reports whether the lock is currently owned.
func (s *LockState) Held() bool {
	return s.Holder != ""
}

// LockRequest describes one acquire attempt.
type LockRequest struct {
	// Name of the resource to lock.
	Name string

	// LockID identifies the prospective holder.
	LockID string

	// Blocking selects retry-until-acquired behaviour.
	Blocking bool

	// Timeout bounds a blocking acquire. WaitForever disables the bound.
	// Must be zero for non-blocking requests.
	Timeout time.Duration

	// Reentrant allows re-acquiring a lock already held by LockID.
	Reentrant bool
}

// Validate rejects request combinations with no sensible meaning.
func (r *LockRequest) Validate() error {
	if r.Name == "" || r.LockID == "" {
		return fmt.Errorf("%w: lock name and lock id are required", ErrInvalidInput)
	}
	if !r.Blocking && r.Timeout != 0 {
		return fmt.Errorf("%w: timeout specified for non-blocking acquire", ErrInvalidInput)
	}
	if r.Timeout > MaxLockTimeout {
		return fmt.Errorf("%w: timeout %v exceeds maximum %v", ErrInvalidInput, r.Timeout, MaxLockTimeout)
	}
	return nil
}

// LockBackoff returns the wait before retry attempt i of a blocking
// acquire. The ramp starts near one millisecond and saturates at one
// second, following tanh(0.05 * i).
func LockBackoff(i int) time.Duration {
	w := time.Duration(math.Tanh(0.05*float64(i)) * float64(time.Second))
	if w < time.Millisecond {
		return time.Millisecond
	}
	return w
}
