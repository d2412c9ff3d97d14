package driven

import (
	"context"
	"io"
)

// BlobStore stores payload bytes content-addressed by SHA-256 digest.
// Writing the same bytes twice is a no-op returning the same digest.
type BlobStore interface {
	// Put stores the bytes read from r and returns their hex digest.
	Put(ctx context.Context, r io.Reader) (digest string, err error)

	// Open returns a reader over the blob with the given digest.
	Open(ctx context.Context, digest string) (io.ReadCloser, error)

	// Delete removes the blob with the given digest. Deleting an
	// absent blob is not an error.
	Delete(ctx context.Context, digest string) error

	// Exists reports whether a blob with the digest is stored.
	Exists(ctx context.Context, digest string) (bool, error)
}
