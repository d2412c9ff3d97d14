package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/core/domain"
)

// ==================== RecordStore Tests ====================

func TestRecordStore_InsertAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{
		Metadata: map[string]any{
			"author_name": "Jane",
			"run":         float64(3),
		},
		PayloadDigest: "abc123",
		PayloadFormat: "json",
	}

	err := recordStore.Insert(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID, "insert should assign an ID")
	assert.False(t, rec.CreatedAt.IsZero())

	retrieved, err := recordStore.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, rec.ID, retrieved.ID)
	assert.Equal(t, "Jane", retrieved.Metadata["author_name"])
	assert.Equal(t, float64(3), retrieved.Metadata["run"])
	assert.Equal(t, "abc123", retrieved.PayloadDigest)
	assert.Equal(t, "json", retrieved.PayloadFormat)
	assert.True(t, retrieved.HasPayload())
}

func TestRecordStore_Insert_MetadataOnly(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{"note": "no payload"}}
	err := recordStore.Insert(ctx, rec)
	require.NoError(t, err)

	retrieved, err := recordStore.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, retrieved.HasPayload())
	assert.Empty(t, retrieved.PayloadDigest)
	assert.Empty(t, retrieved.PayloadFormat)
}

func TestRecordStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	retrieved, err := recordStore.Get(ctx, "non-existent-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, retrieved)
}

func TestRecordStore_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{"version": float64(1)}}
	err := recordStore.Insert(ctx, rec)
	require.NoError(t, err)

	rec.Metadata = map[string]any{"version": float64(2)}
	rec.PayloadDigest = "def456"
	rec.PayloadFormat = "csv"
	err = recordStore.Update(ctx, rec)
	require.NoError(t, err)

	retrieved, err := recordStore.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2), retrieved.Metadata["version"])
	assert.Equal(t, "def456", retrieved.PayloadDigest)
	assert.Equal(t, "csv", retrieved.PayloadFormat)
	assert.False(t, retrieved.UpdatedAt.Before(retrieved.CreatedAt))
}

func TestRecordStore_Update_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{ID: "missing", Metadata: map[string]any{}}
	err := recordStore.Update(ctx, rec)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_Delete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{"a": float64(1)}}
	err := recordStore.Insert(ctx, rec)
	require.NoError(t, err)

	err = recordStore.Delete(ctx, rec.ID)
	require.NoError(t, err)

	_, err = recordStore.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting a non-existent record should not error
	err = recordStore.Delete(ctx, rec.ID)
	assert.NoError(t, err)
}

func TestRecordStore_List(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	// Initially empty
	records, err := recordStore.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	for i := 0; i < 3; i++ {
		rec := &domain.Record{Metadata: map[string]any{"i": float64(i)}}
		err := recordStore.Insert(ctx, rec)
		require.NoError(t, err)
	}

	records, err = recordStore.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRecordStore_CountPayloadRefs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	// Two records share a payload, one has its own
	for i := 0; i < 2; i++ {
		rec := &domain.Record{
			Metadata:      map[string]any{"i": float64(i)},
			PayloadDigest: "shared-digest",
			PayloadFormat: "json",
		}
		require.NoError(t, recordStore.Insert(ctx, rec))
	}
	solo := &domain.Record{
		Metadata:      map[string]any{"solo": true},
		PayloadDigest: "solo-digest",
		PayloadFormat: "json",
	}
	require.NoError(t, recordStore.Insert(ctx, solo))

	count, err := recordStore.CountPayloadRefs(ctx, "shared-digest")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = recordStore.CountPayloadRefs(ctx, "solo-digest")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = recordStore.CountPayloadRefs(ctx, "unreferenced")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRecordStore_InvalidMetadataJSON(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	// Manually insert invalid JSON into the database
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO records (id, metadata, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, "rec-1", "invalid-json")
	require.NoError(t, err)

	recordStore := store.RecordStore()
	_, err = recordStore.Get(ctx, "rec-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshaling")
}

// ==================== Derived Value Cache Tests ====================

func TestRecordStore_PutAndGetDerived(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{}}
	require.NoError(t, recordStore.Insert(ctx, rec))

	dv := &domain.DerivedValue{
		Field:        "line_count",
		FieldVersion: 1,
		RecordID:     rec.ID,
		Value:        float64(42),
	}
	err := recordStore.PutDerived(ctx, dv)
	require.NoError(t, err)
	assert.False(t, dv.ComputedAt.IsZero())

	retrieved, err := recordStore.GetDerived(ctx, "line_count", 1, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, "line_count", retrieved.Field)
	assert.Equal(t, 1, retrieved.FieldVersion)
	assert.Equal(t, rec.ID, retrieved.RecordID)
	assert.Equal(t, float64(42), retrieved.Value)
}

func TestRecordStore_GetDerived_BumpsHitCounter(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{}}
	require.NoError(t, recordStore.Insert(ctx, rec))

	dv := &domain.DerivedValue{
		Field:        "line_count",
		FieldVersion: 1,
		RecordID:     rec.ID,
		Value:        float64(42),
	}
	require.NoError(t, recordStore.PutDerived(ctx, dv))

	first, err := recordStore.GetDerived(ctx, "line_count", 1, rec.ID)
	require.NoError(t, err)
	second, err := recordStore.GetDerived(ctx, "line_count", 1, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Hits)
	assert.Equal(t, 2, second.Hits)
}

func TestRecordStore_GetDerived_CacheMiss(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{}}
	require.NoError(t, recordStore.Insert(ctx, rec))

	// Unknown field misses
	_, err := recordStore.GetDerived(ctx, "unknown", 1, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A version bump invalidates cached values
	dv := &domain.DerivedValue{
		Field:        "line_count",
		FieldVersion: 1,
		RecordID:     rec.ID,
		Value:        float64(42),
	}
	require.NoError(t, recordStore.PutDerived(ctx, dv))

	_, err = recordStore.GetDerived(ctx, "line_count", 2, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_PutDerived_UpdatePreservesHits(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{}}
	require.NoError(t, recordStore.Insert(ctx, rec))

	dv := &domain.DerivedValue{
		Field:        "line_count",
		FieldVersion: 1,
		RecordID:     rec.ID,
		Value:        float64(42),
	}
	require.NoError(t, recordStore.PutDerived(ctx, dv))

	// Accumulate a hit, then overwrite the value
	_, err := recordStore.GetDerived(ctx, "line_count", 1, rec.ID)
	require.NoError(t, err)

	dv.Value = float64(43)
	require.NoError(t, recordStore.PutDerived(ctx, dv))

	retrieved, err := recordStore.GetDerived(ctx, "line_count", 1, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(43), retrieved.Value)
	assert.Equal(t, 2, retrieved.Hits, "overwrite should keep accumulated hits")
}

func TestRecordStore_DeleteDerivedByRecord(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{}}
	require.NoError(t, recordStore.Insert(ctx, rec))

	for _, field := range []string{"line_count", "word_count"} {
		dv := &domain.DerivedValue{
			Field:        field,
			FieldVersion: 1,
			RecordID:     rec.ID,
			Value:        float64(1),
		}
		require.NoError(t, recordStore.PutDerived(ctx, dv))
	}

	err := recordStore.DeleteDerivedByRecord(ctx, rec.ID)
	require.NoError(t, err)

	_, err = recordStore.GetDerived(ctx, "line_count", 1, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = recordStore.GetDerived(ctx, "word_count", 1, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_DeleteRecord_CascadesDerived(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	recordStore := store.RecordStore()

	rec := &domain.Record{Metadata: map[string]any{}}
	require.NoError(t, recordStore.Insert(ctx, rec))

	dv := &domain.DerivedValue{
		Field:        "line_count",
		FieldVersion: 1,
		RecordID:     rec.ID,
		Value:        float64(42),
	}
	require.NoError(t, recordStore.PutDerived(ctx, dv))

	require.NoError(t, recordStore.Delete(ctx, rec.ID))

	var count int
	err := store.db.QueryRow(
		"SELECT COUNT(*) FROM derived_values WHERE record_id = ?", rec.ID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "derived rows should cascade with the record")
}
