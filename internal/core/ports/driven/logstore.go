package driven

import (
	"context"

	"github.com/stratalabs/strata/internal/core/domain"
)

// LogStore persists project log records.
type LogStore interface {
	// Append stores one log record.
	Append(ctx context.Context, rec *domain.LogRecord) error

	// Tail returns the most recent records at or above the given
	// severity, newest first, at most limit entries.
	Tail(ctx context.Context, minLevel domain.LogLevel, limit int) ([]domain.LogRecord, error)

	// Clear removes all log records and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}
