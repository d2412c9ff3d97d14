package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/adapters/driven/storage/memory"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/formats"
)

// recordFixture wires a record service against in-memory stores and
// the built-in conversion network.
type recordFixture struct {
	records *memory.RecordStore
	blobs   *memory.BlobStore
	config  *memory.ConfigStore
	network *formats.Network
	service *RecordService
}

func newRecordFixture(t *testing.T) *recordFixture {
	t.Helper()
	f := &recordFixture{
		records: memory.NewRecordStore(),
		blobs:   memory.NewBlobStore(),
		config:  memory.NewConfigStore(),
		network: formats.NewDefaultNetwork(),
	}
	f.service = NewRecordService(f.records, f.blobs, f.config, f.network, NewProjectLog(nil))
	return f
}

func TestRecordService_Insert_MetadataOnly(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "measurement", "run": 7}, nil, "")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.HasPayload())
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, "measurement", rec.Metadata["kind"])
}

func TestRecordService_Insert_AuthorFromConfig(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()
	require.NoError(t, f.config.Set("author.name", "Ada"))
	require.NoError(t, f.config.Set("author.email", "ada@example.org"))

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "note"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec.Metadata[domain.MetaKeyAuthorName])
	assert.Equal(t, "ada@example.org", rec.Metadata[domain.MetaKeyAuthorEmail])

	// A caller-provided author wins over the configured one
	rec, err = f.service.Insert(ctx, map[string]any{domain.MetaKeyAuthorName: "Grace"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Grace", rec.Metadata[domain.MetaKeyAuthorName])
}

func TestRecordService_Insert_WithPayload(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "dump"},
		strings.NewReader(`{"a":1}`), formats.FormatJSON)
	require.NoError(t, err)

	assert.True(t, rec.HasPayload())
	assert.Equal(t, formats.FormatJSON, rec.PayloadFormat)

	reader, format, err := f.service.OpenPayload(ctx, rec.ID)
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck // test cleanup

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	assert.Equal(t, formats.FormatJSON, format)
}

func TestRecordService_Insert_Validation(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		meta    map[string]any
		payload io.Reader
		format  string
	}{
		{
			name:   "format without payload",
			meta:   map[string]any{"kind": "x"},
			format: formats.FormatJSON,
		},
		{
			name:    "payload without format",
			meta:    map[string]any{"kind": "x"},
			payload: strings.NewReader("data"),
		},
		{
			name: "operator metadata key",
			meta: map[string]any{"$set": map[string]any{"a": 1}},
		},
		{
			name: "derived metadata key",
			meta: map[string]any{domain.DerivedFieldPrefix + "size": 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Insert(ctx, tt.meta, tt.payload, tt.format)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestRecordService_Insert_Offline(t *testing.T) {
	service := NewRecordService(nil, nil, nil, formats.NewDefaultNetwork(), NewProjectLog(nil))

	_, err := service.Insert(context.Background(), map[string]any{"kind": "x"}, nil, "")
	assert.ErrorIs(t, err, domain.ErrOffline)
}

func TestRecordService_Find(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	_, err := f.service.Insert(ctx, map[string]any{"kind": "a", "run": 1}, nil, "")
	require.NoError(t, err)
	_, err = f.service.Insert(ctx, map[string]any{"kind": "b", "run": 1}, nil, "")
	require.NoError(t, err)

	all, err := f.service.Find(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	matches, err := f.service.Find(ctx, domain.Filter{"kind": "a"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Metadata["kind"])

	matches, err = f.service.Find(ctx, domain.Filter{"run": 1})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = f.service.Find(ctx, domain.Filter{"kind": "c"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRecordService_Find_DerivedField(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	computeCalls := 0
	require.NoError(t, f.service.RegisterDerivedField(domain.DerivedField{
		Name:    "size",
		Version: 1,
		Compute: func(data []byte) (any, error) {
			computeCalls++
			return len(data), nil
		},
	}))

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "dump"},
		strings.NewReader("hello"), formats.FormatText)
	require.NoError(t, err)
	// A record without payload never matches a derived filter
	_, err = f.service.Insert(ctx, map[string]any{"kind": "note"}, nil, "")
	require.NoError(t, err)

	matches, err := f.service.Find(ctx, domain.Filter{domain.DerivedFieldPrefix + "size": 5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, rec.ID, matches[0].ID)
	assert.Equal(t, 1, computeCalls)

	// The second query is served from the cache
	matches, err = f.service.Find(ctx, domain.Filter{domain.DerivedFieldPrefix + "size": 5})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, 1, computeCalls)

	cached, err := f.records.GetDerived(ctx, "size", 1, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, cached.Value)
}

func TestRecordService_Find_UnknownDerivedField(t *testing.T) {
	f := newRecordFixture(t)

	_, err := f.service.Find(context.Background(), domain.Filter{domain.DerivedFieldPrefix + "nope": 1})
	assert.ErrorIs(t, err, domain.ErrUnknownDerivedField)
}

func TestRecordService_FindOne(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "a"}, nil, "")
	require.NoError(t, err)

	found, err := f.service.FindOne(ctx, domain.Filter{"kind": "a"})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = f.service.FindOne(ctx, domain.Filter{"kind": "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordService_ReplaceOne(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "a", "run": 1}, nil, "")
	require.NoError(t, err)

	replaced, err := f.service.ReplaceOne(ctx, domain.Filter{"kind": "a"},
		map[string]any{"kind": "a", "run": 2}, nil, "", false)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, replaced.ID)
	assert.EqualValues(t, 2, replaced.Metadata["run"])
	assert.Equal(t, rec.CreatedAt, replaced.CreatedAt)
}

func TestRecordService_ReplaceOne_Upsert(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	_, err := f.service.ReplaceOne(ctx, domain.Filter{"kind": "a"},
		map[string]any{"kind": "a"}, nil, "", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec, err := f.service.ReplaceOne(ctx, domain.Filter{"kind": "a"},
		map[string]any{"kind": "a"}, nil, "", true)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func TestRecordService_ReplaceOne_SwapsPayload(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "dump"},
		strings.NewReader("old payload"), formats.FormatText)
	require.NoError(t, err)
	oldDigest := rec.PayloadDigest

	replaced, err := f.service.ReplaceOne(ctx, domain.Filter{"kind": "dump"},
		map[string]any{"kind": "dump"}, strings.NewReader("new payload"), formats.FormatText, false)
	require.NoError(t, err)
	assert.NotEqual(t, oldDigest, replaced.PayloadDigest)

	// The unreferenced blob is collected
	exists, err := f.blobs.Exists(ctx, oldDigest)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.blobs.Exists(ctx, replaced.PayloadDigest)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordService_UpdateOne(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	_, err := f.service.Insert(ctx, map[string]any{"kind": "a", "run": 1}, nil, "")
	require.NoError(t, err)

	updated, err := f.service.UpdateOne(ctx, domain.Filter{"kind": "a"},
		map[string]any{"run": 2, "note": "rerun"})
	require.NoError(t, err)

	assert.EqualValues(t, 2, updated.Metadata["run"])
	assert.Equal(t, "rerun", updated.Metadata["note"])
	assert.Equal(t, "a", updated.Metadata["kind"])
}

func TestRecordService_UpdateOne_RejectsOperatorKeys(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	_, err := f.service.Insert(ctx, map[string]any{"kind": "a"}, nil, "")
	require.NoError(t, err)

	_, err = f.service.UpdateOne(ctx, domain.Filter{"kind": "a"},
		map[string]any{"$inc": map[string]any{"run": 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordService_DeleteOne(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "dump"},
		strings.NewReader("payload"), formats.FormatText)
	require.NoError(t, err)

	deleted, err := f.service.DeleteOne(ctx, domain.Filter{"kind": "dump"})
	require.NoError(t, err)
	assert.True(t, deleted)

	// Record and blob are both gone
	_, err = f.records.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	exists, err := f.blobs.Exists(ctx, rec.PayloadDigest)
	require.NoError(t, err)
	assert.False(t, exists)

	deleted, err = f.service.DeleteOne(ctx, domain.Filter{"kind": "dump"})
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRecordService_DeleteOne_SharedBlobSurvives(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	first, err := f.service.Insert(ctx, map[string]any{"kind": "a"},
		strings.NewReader("shared"), formats.FormatText)
	require.NoError(t, err)
	second, err := f.service.Insert(ctx, map[string]any{"kind": "b"},
		strings.NewReader("shared"), formats.FormatText)
	require.NoError(t, err)
	require.Equal(t, first.PayloadDigest, second.PayloadDigest)

	_, err = f.service.DeleteOne(ctx, domain.Filter{"kind": "a"})
	require.NoError(t, err)

	// The other record still references the blob
	exists, err := f.blobs.Exists(ctx, first.PayloadDigest)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordService_DeleteMany(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.service.Insert(ctx, map[string]any{"kind": "a", "run": i}, nil, "")
		require.NoError(t, err)
	}
	_, err := f.service.Insert(ctx, map[string]any{"kind": "b"}, nil, "")
	require.NoError(t, err)

	removed, err := f.service.DeleteMany(ctx, domain.Filter{"kind": "a"})
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	remaining, err := f.service.Find(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRecordService_OpenPayload_NoPayload(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "note"}, nil, "")
	require.NoError(t, err)

	_, _, err = f.service.OpenPayload(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordService_ConvertPayload(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "table"},
		strings.NewReader("a,b\n1,2\n"), formats.FormatCSV)
	require.NoError(t, err)

	reader, err := f.service.ConvertPayload(ctx, rec.ID, formats.FormatJSON)
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck // test cleanup

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":"1","b":"2"}]`, string(data))
}

func TestRecordService_ConvertPayload_EmptyTarget(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	rec, err := f.service.Insert(ctx, map[string]any{"kind": "dump"},
		strings.NewReader("x"), formats.FormatText)
	require.NoError(t, err)

	_, err = f.service.ConvertPayload(ctx, rec.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordService_RegisterDerivedField(t *testing.T) {
	f := newRecordFixture(t)

	err := f.service.RegisterDerivedField(domain.DerivedField{
		Name:    "rows",
		Version: 1,
		Format:  formats.FormatCSV,
		Compute: func(data []byte) (any, error) { return len(data), nil },
	})
	assert.NoError(t, err)

	// Unknown expected format
	err = f.service.RegisterDerivedField(domain.DerivedField{
		Name:    "frames",
		Version: 1,
		Format:  "hdf5",
		Compute: func(data []byte) (any, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Invalid definition
	err = f.service.RegisterDerivedField(domain.DerivedField{Name: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordService_DerivedField_ConvertsPayload(t *testing.T) {
	f := newRecordFixture(t)
	ctx := context.Background()

	// The field expects JSON, the payload is CSV
	require.NoError(t, f.service.RegisterDerivedField(domain.DerivedField{
		Name:    "jsonsize",
		Version: 1,
		Format:  formats.FormatJSON,
		Compute: func(data []byte) (any, error) { return len(data) > 0, nil },
	}))

	_, err := f.service.Insert(ctx, map[string]any{"kind": "table"},
		strings.NewReader("a,b\n1,2\n"), formats.FormatCSV)
	require.NoError(t, err)

	matches, err := f.service.Find(ctx, domain.Filter{domain.DerivedFieldPrefix + "jsonsize": true})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
