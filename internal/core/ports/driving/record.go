package driving

import (
	"context"
	"io"

	"github.com/stratalabs/strata/internal/core/domain"
)

// RecordService is the record database: metadata documents with
// optional payloads, filtered finds, derived fields and payload format
// conversion.
type RecordService interface {
	// Insert stores a new record. Payload may be nil for metadata-only
	// records; format names the payload's format and must be empty iff
	// payload is nil. Author metadata is filled in from project
	// configuration when absent.
	Insert(ctx context.Context, meta map[string]any, payload io.Reader, format string) (*domain.Record, error)

	// Find returns records matching the filter. Derived-field keys are
	// computed from payloads, memoised in the cache.
	Find(ctx context.Context, filter domain.Filter) ([]domain.Record, error)

	// FindOne returns the single record matching the filter, or
	// domain.ErrNotFound.
	FindOne(ctx context.Context, filter domain.Filter) (*domain.Record, error)

	// ReplaceOne replaces the first record matching the filter. With
	// upsert, a missing match inserts instead.
	ReplaceOne(ctx context.Context, filter domain.Filter, meta map[string]any,
		payload io.Reader, format string, upsert bool) (*domain.Record, error)

	// UpdateOne merges set into the metadata of the first match.
	UpdateOne(ctx context.Context, filter domain.Filter, set map[string]any) (*domain.Record, error)

	// DeleteOne removes the first match, reporting whether one existed.
	DeleteOne(ctx context.Context, filter domain.Filter) (bool, error)

	// DeleteMany removes all matches and returns the count.
	DeleteMany(ctx context.Context, filter domain.Filter) (int, error)

	// OpenPayload streams a record's payload and reports its format.
	OpenPayload(ctx context.Context, recordID string) (io.ReadCloser, string, error)

	// ConvertPayload streams a record's payload converted to the target
	// format via the shortest registered adapter chain.
	ConvertPayload(ctx context.Context, recordID, targetFormat string) (io.ReadCloser, error)

	// RegisterDerivedField makes a derived field available to filters.
	RegisterDerivedField(field domain.DerivedField) error
}
