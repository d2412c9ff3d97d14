package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure LogStore implements the interface.
var _ driven.LogStore = (*LogStore)(nil)

// LogStore is an in-memory implementation of driven.LogStore.
type LogStore struct {
	mu      sync.Mutex
	nextID  int64
	records []domain.LogRecord
}

// NewLogStore creates a new in-memory log store.
func NewLogStore() *LogStore {
	return &LogStore{}
}

// Append stores one log record and assigns its ID.
func (s *LogStore) Append(_ context.Context, rec *domain.LogRecord) error {
	if !rec.Level.IsValid() {
		return fmt.Errorf("%w: log level %q", domain.ErrInvalidInput, rec.Level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, *rec)
	return nil
}

// Tail returns the most recent records at or above minLevel, newest
// first, at most limit entries.
func (s *LogStore) Tail(_ context.Context, minLevel domain.LogLevel, limit int) ([]domain.LogRecord, error) {
	if !minLevel.IsValid() {
		return nil, fmt.Errorf("%w: log level %q", domain.ErrInvalidInput, minLevel)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: tail limit must be positive", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LogRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].Level.Severity() >= minLevel.Severity() {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// Clear removes all log records.
func (s *LogStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = nil
	return n, nil
}
