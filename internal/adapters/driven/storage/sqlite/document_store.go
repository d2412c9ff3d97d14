package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// jobDocumentStore implements driven.JobDocumentStore.
// Each document key is one row; values round-trip through JSON.
type jobDocumentStore struct {
	store *Store
}

var _ driven.JobDocumentStore = (*jobDocumentStore)(nil)

// SetValue stores or replaces one document key.
func (s *jobDocumentStore) SetValue(ctx context.Context, jobID, key string, value any) error {
	if jobID == "" || key == "" {
		return domain.ErrInvalidInput
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling document value: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO job_documents (job_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(job_id, key) DO UPDATE SET
			value = excluded.value
	`, jobID, key, string(valueJSON))

	if err != nil {
		return fmt.Errorf("saving document value: %w", err)
	}
	return nil
}

// GetValue retrieves one document key.
func (s *jobDocumentStore) GetValue(ctx context.Context, jobID, key string) (any, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT value FROM job_documents WHERE job_id = ? AND key = ?
	`, jobID, key)

	var valueJSON string
	if err := row.Scan(&valueJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document value: %w", err)
	}

	var value any
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return nil, fmt.Errorf("unmarshaling document value: %w", err)
	}
	return value, nil
}

// DeleteValue removes one document key.
func (s *jobDocumentStore) DeleteValue(ctx context.Context, jobID, key string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM job_documents WHERE job_id = ? AND key = ?", jobID, key)
	if err != nil {
		return fmt.Errorf("deleting document value: %w", err)
	}
	return nil
}

// GetDocument returns the whole document of a job.
func (s *jobDocumentStore) GetDocument(ctx context.Context, jobID string) (map[string]any, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT key, value FROM job_documents WHERE job_id = ? ORDER BY key
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	defer rows.Close()

	doc := make(map[string]any)
	for rows.Next() {
		var key, valueJSON string
		if err := rows.Scan(&key, &valueJSON); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			return nil, fmt.Errorf("unmarshaling document value: %w", err)
		}
		doc[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	return doc, nil
}

// AppendToList appends a value to a list-valued document key. The read
// and write run in one transaction so concurrent appends never lose
// entries.
func (s *jobDocumentStore) AppendToList(ctx context.Context, jobID, key string, value any) error {
	if jobID == "" || key == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var list []any
	var valueJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT value FROM job_documents WHERE job_id = ? AND key = ?", jobID, key).Scan(&valueJSON)
	switch {
	case err == sql.ErrNoRows:
		// First element creates the list.
	case err != nil:
		return fmt.Errorf("scanning document value: %w", err)
	default:
		if err := json.Unmarshal([]byte(valueJSON), &list); err != nil {
			return fmt.Errorf("%w: document key %q is not a list", domain.ErrInvalidInput, key)
		}
	}

	list = append(list, value)
	updatedJSON, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshalling document list: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_documents (job_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(job_id, key) DO UPDATE SET
			value = excluded.value
	`, jobID, key, string(updatedJSON))
	if err != nil {
		return fmt.Errorf("saving document list: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDocument removes the whole document of a job.
func (s *jobDocumentStore) DeleteDocument(ctx context.Context, jobID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM job_documents WHERE job_id = ?", jobID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}
