package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// Insert stores a new record and assigns its ID.
func (s *recordStore) Insert(ctx context.Context, rec *domain.Record) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO records (id, metadata, payload_digest, payload_format, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, string(metadataJSON), rec.PayloadDigest, rec.PayloadFormat, rec.CreatedAt, rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// Update replaces the stored record with the given ID.
func (s *recordStore) Update(ctx context.Context, rec *domain.Record) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	rec.UpdatedAt = time.Now().UTC()

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE records SET metadata = ?, payload_digest = ?, payload_format = ?, updated_at = ?
		WHERE id = ?
	`, string(metadataJSON), rec.PayloadDigest, rec.PayloadFormat, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a record by ID.
func (s *recordStore) Get(ctx context.Context, id string) (*domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, metadata, payload_digest, payload_format, created_at, updated_at
		FROM records WHERE id = ?
	`, id)

	return scanRecord(row)
}

// List returns all records ordered by creation time.
func (s *recordStore) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, metadata, payload_digest, payload_format, created_at, updated_at
		FROM records ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return records, nil
}

// Delete removes a record. Derived-value cache rows cascade.
func (s *recordStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// CountPayloadRefs returns how many records reference a payload digest.
func (s *recordStore) CountPayloadRefs(ctx context.Context, digest string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE payload_digest = ?", digest).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting payload refs: %w", err)
	}
	return count, nil
}

// GetDerived returns a cached derived value and bumps its hit counter.
func (s *recordStore) GetDerived(
	ctx context.Context,
	field string,
	fieldVersion int,
	recordID string,
) (*domain.DerivedValue, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE derived_values SET hits = hits + 1
		WHERE field = ? AND field_version = ? AND record_id = ?
	`, field, fieldVersion, recordID)
	if err != nil {
		return nil, fmt.Errorf("bumping derived hit counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking derived hit: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}

	row := s.store.db.QueryRowContext(ctx, `
		SELECT field, field_version, record_id, value, hits, computed_at
		FROM derived_values
		WHERE field = ? AND field_version = ? AND record_id = ?
	`, field, fieldVersion, recordID)

	var dv domain.DerivedValue
	var valueJSON string
	var computedAt sql.NullTime
	if err := row.Scan(&dv.Field, &dv.FieldVersion, &dv.RecordID, &valueJSON, &dv.Hits, &computedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning derived value: %w", err)
	}
	if err := json.Unmarshal([]byte(valueJSON), &dv.Value); err != nil {
		return nil, fmt.Errorf("unmarshaling derived value: %w", err)
	}
	if computedAt.Valid {
		dv.ComputedAt = computedAt.Time
	}

	return &dv, nil
}

// PutDerived stores a computed derived value.
func (s *recordStore) PutDerived(ctx context.Context, value *domain.DerivedValue) error {
	valueJSON, err := json.Marshal(value.Value)
	if err != nil {
		return fmt.Errorf("marshalling derived value: %w", err)
	}
	if value.ComputedAt.IsZero() {
		value.ComputedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO derived_values (field, field_version, record_id, value, hits, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(field, field_version, record_id) DO UPDATE SET
			value = excluded.value,
			computed_at = excluded.computed_at
	`, value.Field, value.FieldVersion, value.RecordID, string(valueJSON), value.Hits, value.ComputedAt)

	if err != nil {
		return fmt.Errorf("saving derived value: %w", err)
	}
	return nil
}

// DeleteDerivedByRecord removes all cached values of one record.
func (s *recordStore) DeleteDerivedByRecord(ctx context.Context, recordID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM derived_values WHERE record_id = ?", recordID)
	if err != nil {
		return fmt.Errorf("deleting derived values: %w", err)
	}
	return nil
}

// scanRecord scans a single record row.
func scanRecord(row *sql.Row) (*domain.Record, error) {
	var rec domain.Record
	var metadataJSON string
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&rec.ID, &metadataJSON, &rec.PayloadDigest, &rec.PayloadFormat,
		&createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}

	return &rec, nil
}

// scanRecordRows scans a record from *sql.Rows.
func scanRecordRows(rows *sql.Rows) (*domain.Record, error) {
	var rec domain.Record
	var metadataJSON string
	var createdAt, updatedAt sql.NullTime

	if err := rows.Scan(&rec.ID, &metadataJSON, &rec.PayloadDigest, &rec.PayloadFormat,
		&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}

	return &rec, nil
}
