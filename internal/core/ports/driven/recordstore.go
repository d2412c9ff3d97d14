package driven

import (
	"context"

	"github.com/stratalabs/strata/internal/core/domain"
)

// RecordStore persists record metadata and the derived-value cache.
// Payload bytes live in the BlobStore; records reference them by digest.
type RecordStore interface {
	// Insert stores a new record and assigns its ID.
	Insert(ctx context.Context, rec *domain.Record) error

	// Update replaces the stored record with the given ID.
	Update(ctx context.Context, rec *domain.Record) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*domain.Record, error)

	// List returns all records. Filtering happens in the service so
	// derived fields and canonical value comparison stay in one place.
	List(ctx context.Context) ([]domain.Record, error)

	// Delete removes a record and its derived-value cache rows.
	Delete(ctx context.Context, id string) error

	// CountPayloadRefs returns how many records reference a payload
	// digest. Blob garbage collection relies on it.
	CountPayloadRefs(ctx context.Context, digest string) (int, error)

	// GetDerived returns a cached derived value and bumps its hit
	// counter. Returns domain.ErrNotFound on a cache miss.
	GetDerived(ctx context.Context, field string, fieldVersion int, recordID string) (*domain.DerivedValue, error)

	// PutDerived stores a computed derived value.
	PutDerived(ctx context.Context, value *domain.DerivedValue) error

	// DeleteDerivedByRecord removes all cached values of one record.
	DeleteDerivedByRecord(ctx context.Context, recordID string) error
}
