package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/strata/internal/core/domain"
)

// setupTestBlobStore creates a temporary blob store for testing.
func setupTestBlobStore(t *testing.T) *Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "strata-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := NewStore(filepath.Join(tempDir, "blobs"))
	require.NoError(t, err)
	require.NotNil(t, store)
	return store
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blob directory")
}

func TestBlobStore_PutAndOpen(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	content := []byte(`{"energy": -1.25}`)
	digest, err := store.Put(ctx, strings.NewReader(string(content)))
	require.NoError(t, err)

	// Digest is the SHA-256 of the content
	want := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(want[:]), digest)

	r, err := store.Open(ctx, digest)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlobStore_Put_Deduplicates(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, strings.NewReader("same bytes"))
	require.NoError(t, err)
	second, err := store.Put(ctx, strings.NewReader("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Only one fan-out file exists
	var files int
	err = filepath.WalkDir(store.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, files)
}

func TestBlobStore_Put_FanOutLayout(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	digest, err := store.Put(ctx, strings.NewReader("payload"))
	require.NoError(t, err)

	// Stored under <root>/<first two>/<rest>
	assert.FileExists(t, filepath.Join(store.root, digest[:2], digest[2:]))
}

func TestBlobStore_Open_NotFound(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	missing := strings.Repeat("ab", sha256.Size)
	_, err := store.Open(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlobStore_InvalidDigest(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	// Too short
	_, err := store.Open(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Right length, not hex — and no path traversal
	evil := "../" + strings.Repeat("a", sha256.Size*2-3)
	_, err = store.Open(ctx, evil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = store.Delete(ctx, "zz")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBlobStore_Delete(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	digest, err := store.Put(ctx, strings.NewReader("doomed"))
	require.NoError(t, err)

	err = store.Delete(ctx, digest)
	require.NoError(t, err)

	exists, err := store.Exists(ctx, digest)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent blob is not an error
	err = store.Delete(ctx, digest)
	assert.NoError(t, err)
}

func TestBlobStore_Exists(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	missing := strings.Repeat("cd", sha256.Size)
	exists, err := store.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)

	digest, err := store.Put(ctx, strings.NewReader("present"))
	require.NoError(t, err)

	exists, err = store.Exists(ctx, digest)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBlobStore_Put_EmptyPayload(t *testing.T) {
	store := setupTestBlobStore(t)
	ctx := context.Background()

	digest, err := store.Put(ctx, strings.NewReader(""))
	require.NoError(t, err)

	want := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(want[:]), digest)

	r, err := store.Open(ctx, digest)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBlobStore_ContextCancellation(t *testing.T) {
	store := setupTestBlobStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, strings.NewReader("never stored"))
	assert.Error(t, err)
}
