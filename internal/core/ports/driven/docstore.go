package driven

import (
	"context"
)

// JobDocumentStore persists the per-job key/value document.
// Values round-trip through JSON; structure is up to the caller.
type JobDocumentStore interface {
	// SetValue stores or replaces one document key.
	SetValue(ctx context.Context, jobID, key string, value any) error

	// GetValue retrieves one document key.
	GetValue(ctx context.Context, jobID, key string) (any, error)

	// DeleteValue removes one document key.
	DeleteValue(ctx context.Context, jobID, key string) error

	// GetDocument returns the whole document of a job.
	GetDocument(ctx context.Context, jobID string) (map[string]any, error)

	// AppendToList appends a value to a list-valued document key,
	// creating the list when absent. Used for the job error list.
	AppendToList(ctx context.Context, jobID, key string, value any) error

	// DeleteDocument removes the whole document of a job.
	DeleteDocument(ctx context.Context, jobID string) error
}
