// Package blob implements a content-addressed payload store on the
// local filesystem. Blobs are keyed by the SHA-256 hex digest of their
// content and fanned out over two-character subdirectories, so identical
// payloads are stored once no matter how many records reference them.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Store is a filesystem-backed driven.BlobStore rooted at one directory,
// usually <project>/.strata/blobs.
type Store struct {
	root string
}

var _ driven.BlobStore = (*Store)(nil)

// NewStore creates a blob store rooted at dir. The directory is created
// when missing.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Put stores the bytes read from r and returns their hex digest. The
// bytes are hashed while spooling to a temporary file; the file is only
// renamed into place once the digest is known, so a crash mid-write
// never leaves a half-written blob under a valid address.
func (s *Store) Put(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, ".put-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temporary blob: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	path, err := s.blobPath(digest)
	if err != nil {
		return "", err
	}

	// Same content already stored: the temp file is discarded.
	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating blob fan-out directory: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}

	return digest, nil
}

// Open returns a reader over the blob with the given digest.
func (s *Store) Open(ctx context.Context, digest string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.blobPath(digest)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob with the given digest. Deleting an absent
// blob is not an error.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.blobPath(digest)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// Exists reports whether a blob with the digest is stored.
func (s *Store) Exists(ctx context.Context, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.blobPath(digest)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking blob: %w", err)
	}
	return true, nil
}

// blobPath maps a digest to its storage path, rejecting anything that is
// not a full SHA-256 hex digest so a crafted digest cannot escape the
// store root.
func (s *Store) blobPath(digest string) (string, error) {
	if len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("%w: blob digest %q", domain.ErrInvalidInput, digest)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: blob digest %q", domain.ErrInvalidInput, digest)
	}
	return filepath.Join(s.root, digest[:2], digest[2:]), nil
}
