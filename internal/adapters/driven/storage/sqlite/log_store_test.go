package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/core/domain"
)

// appendTestLog appends one record at the given level.
func appendTestLog(t *testing.T, store *Store, level domain.LogLevel, message string) {
	t.Helper()
	ctx := context.Background()
	err := store.LogStore().Append(ctx, &domain.LogRecord{
		Level:   level,
		Message: message,
		Origin:  "test",
	})
	require.NoError(t, err)
}

// ==================== LogStore Tests ====================

func TestLogStore_Append(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	rec := &domain.LogRecord{
		Level:   domain.LogLevelInfo,
		Message: "job opened",
		Origin:  "job",
	}
	err := logStore.Append(ctx, rec)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID, "append should assign an ID")
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestLogStore_Append_InvalidLevel(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	err := logStore.Append(ctx, &domain.LogRecord{
		Level:   domain.LogLevel("verbose"),
		Message: "nope",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLogStore_Tail_NewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	appendTestLog(t, store, domain.LogLevelInfo, "first")
	appendTestLog(t, store, domain.LogLevelInfo, "second")
	appendTestLog(t, store, domain.LogLevelInfo, "third")

	records, err := logStore.Tail(ctx, domain.LogLevelDebug, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Message)
	assert.Equal(t, "second", records[1].Message)
	assert.Equal(t, "first", records[2].Message)
}

func TestLogStore_Tail_MinLevel(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	appendTestLog(t, store, domain.LogLevelDebug, "noise")
	appendTestLog(t, store, domain.LogLevelInfo, "routine")
	appendTestLog(t, store, domain.LogLevelWarning, "odd")
	appendTestLog(t, store, domain.LogLevelError, "broken")
	appendTestLog(t, store, domain.LogLevelCritical, "on fire")

	records, err := logStore.Tail(ctx, domain.LogLevelWarning, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "on fire", records[0].Message)
	assert.Equal(t, "broken", records[1].Message)
	assert.Equal(t, "odd", records[2].Message)
}

func TestLogStore_Tail_Limit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	for i := 0; i < 5; i++ {
		appendTestLog(t, store, domain.LogLevelInfo, "entry")
	}

	records, err := logStore.Tail(ctx, domain.LogLevelDebug, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLogStore_Tail_Invalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	_, err := logStore.Tail(ctx, domain.LogLevel("bogus"), 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = logStore.Tail(ctx, domain.LogLevelInfo, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLogStore_Clear(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	logStore := store.LogStore()

	appendTestLog(t, store, domain.LogLevelInfo, "one")
	appendTestLog(t, store, domain.LogLevelError, "two")

	n, err := logStore.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := logStore.Tail(ctx, domain.LogLevelDebug, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Clearing an empty log reports zero
	n, err = logStore.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
