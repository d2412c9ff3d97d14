package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// logStore implements driven.LogStore.
type logStore struct {
	store *Store
}

var _ driven.LogStore = (*logStore)(nil)

// Append stores one log record and assigns its ID.
func (s *logStore) Append(ctx context.Context, rec *domain.LogRecord) error {
	if !rec.Level.IsValid() {
		return fmt.Errorf("%w: log level %q", domain.ErrInvalidInput, rec.Level)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO logs (level, message, origin, created_at)
		VALUES (?, ?, ?, ?)
	`, rec.Level.String(), rec.Message, rec.Origin, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending log record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading log record id: %w", err)
	}
	rec.ID = id
	return nil
}

// Tail returns the most recent records at or above minLevel, newest
// first. Levels are stored as names, so the severity cut becomes an IN
// clause over the matching names.
func (s *logStore) Tail(ctx context.Context, minLevel domain.LogLevel, limit int) ([]domain.LogRecord, error) {
	if !minLevel.IsValid() {
		return nil, fmt.Errorf("%w: log level %q", domain.ErrInvalidInput, minLevel)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: tail limit must be positive", domain.ErrInvalidInput)
	}

	levels := levelsAtOrAbove(minLevel)
	placeholders := strings.Repeat("?, ", len(levels)-1) + "?"
	args := make([]any, 0, len(levels)+1)
	for _, l := range levels {
		args = append(args, l.String())
	}
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, level, message, origin, created_at
		FROM logs WHERE level IN (%s)
		ORDER BY id DESC LIMIT ?
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying log records: %w", err)
	}
	defer rows.Close()

	var records []domain.LogRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.LogRecord
		var level string
		if err := rows.Scan(&rec.ID, &level, &rec.Message, &rec.Origin, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning log record: %w", err)
		}
		rec.Level = domain.LogLevel(level)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log records: %w", err)
	}

	return records, nil
}

// Clear removes all log records.
func (s *logStore) Clear(ctx context.Context) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM logs")
	if err != nil {
		return 0, fmt.Errorf("clearing log records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking clear: %w", err)
	}
	return int(n), nil
}

func levelsAtOrAbove(min domain.LogLevel) []domain.LogLevel {
	all := []domain.LogLevel{
		domain.LogLevelDebug,
		domain.LogLevelInfo,
		domain.LogLevelWarning,
		domain.LogLevelError,
		domain.LogLevelCritical,
	}
	var out []domain.LogLevel
	for _, l := range all {
		if l.Severity() >= min.Severity() {
			out = append(out, l)
		}
	}
	return out
}
