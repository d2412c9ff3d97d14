package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/core/domain"
)

// ==================== PulseStore Tests ====================

func TestPulseStore_BeatAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	pulseStore := store.PulseStore()

	at := time.Now().UTC().Truncate(time.Second)
	err := pulseStore.Beat(ctx, "inst-1", "job-1", at)
	require.NoError(t, err)

	pulse, err := pulseStore.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", pulse.InstanceID)
	assert.Equal(t, "job-1", pulse.JobID)
	assert.True(t, at.Equal(pulse.BeatAt))
}

func TestPulseStore_Beat_Upserts(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	pulseStore := store.PulseStore()

	first := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, pulseStore.Beat(ctx, "inst-1", "job-1", first))

	later := first.Add(domain.PulsePeriod)
	require.NoError(t, pulseStore.Beat(ctx, "inst-1", "job-1", later))

	pulse, err := pulseStore.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, later.Equal(pulse.BeatAt))

	// Still one row
	pulses, err := pulseStore.List(ctx)
	require.NoError(t, err)
	assert.Len(t, pulses, 1)
}

func TestPulseStore_Beat_Invalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	pulseStore := store.PulseStore()

	err := pulseStore.Beat(ctx, "", "job-1", time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = pulseStore.Beat(ctx, "inst-1", "", time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPulseStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	pulseStore := store.PulseStore()

	_, err := pulseStore.Get(ctx, "inst-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPulseStore_Remove(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	pulseStore := store.PulseStore()

	require.NoError(t, pulseStore.Beat(ctx, "inst-1", "job-1", time.Now().UTC()))

	err := pulseStore.Remove(ctx, "inst-1")
	require.NoError(t, err)

	_, err = pulseStore.Get(ctx, "inst-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Removing an unknown instance is not an error
	err = pulseStore.Remove(ctx, "inst-1")
	assert.NoError(t, err)
}

func TestPulseStore_List(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	pulseStore := store.PulseStore()

	pulses, err := pulseStore.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, pulses)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, pulseStore.Beat(ctx, "inst-b", "job-1", now))
	require.NoError(t, pulseStore.Beat(ctx, "inst-a", "job-1", now))
	require.NoError(t, pulseStore.Beat(ctx, "inst-c", "job-2", now))

	pulses, err = pulseStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, pulses, 3)
	assert.Equal(t, "inst-a", pulses[0].InstanceID)
	assert.Equal(t, "inst-b", pulses[1].InstanceID)
	assert.Equal(t, "inst-c", pulses[2].InstanceID)
}
