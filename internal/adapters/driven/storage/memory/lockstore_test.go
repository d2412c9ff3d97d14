package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/core/domain"
)

func TestLockStore_AcquireReleaseCycle(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	require.NoError(t, store.TryAcquire(ctx, "job-1", "owner-a", false))

	err := store.TryAcquire(ctx, "job-1", "owner-b", false)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	require.NoError(t, store.Release(ctx, "job-1", "owner-a"))

	state, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, state.Held())

	assert.NoError(t, store.TryAcquire(ctx, "job-1", "owner-b", false))
}

func TestLockStore_Reentrant(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	require.NoError(t, store.TryAcquire(ctx, "job-1", "owner-a", true))
	require.NoError(t, store.TryAcquire(ctx, "job-1", "owner-a", true))

	state, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Count)

	// Non-reentrant re-acquire by the same owner is refused
	err = store.TryAcquire(ctx, "job-1", "owner-a", false)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	require.NoError(t, store.Release(ctx, "job-1", "owner-a"))
	state, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, state.Held())
	assert.Equal(t, 1, state.Count)

	require.NoError(t, store.Release(ctx, "job-1", "owner-a"))
	state, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, state.Held())
}

func TestLockStore_Release_NotHeld(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	err := store.Release(ctx, "job-1", "owner-a")
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)

	require.NoError(t, store.TryAcquire(ctx, "job-1", "owner-a", false))
	err = store.Release(ctx, "job-1", "owner-b")
	assert.ErrorIs(t, err, domain.ErrLockNotHeld)
}

func TestLockStore_ForceRelease(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	require.NoError(t, store.TryAcquire(ctx, "job-1", "owner-a", false))
	require.NoError(t, store.ForceRelease(ctx, "job-1"))

	state, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, state.Held())

	assert.NoError(t, store.ForceRelease(ctx, "never-locked"))
}

func TestLockStore_Get_NeverLocked(t *testing.T) {
	store := NewLockStore()

	state, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", state.Name)
	assert.False(t, state.Held())
}

func TestLockStore_ListHeld(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	require.NoError(t, store.TryAcquire(ctx, "job-b", "owner-1", false))
	require.NoError(t, store.TryAcquire(ctx, "job-a", "owner-2", false))
	require.NoError(t, store.Release(ctx, "job-b", "owner-1"))

	held, err := store.ListHeld(ctx)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "job-a", held[0].Name)
}

func TestLockStore_ConcurrentAcquire(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	const numGoroutines = 20
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := store.TryAcquire(ctx, "job-1", string(rune('a'+id)), false); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one acquire should win")
}
