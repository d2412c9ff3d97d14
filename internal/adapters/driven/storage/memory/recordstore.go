package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

type derivedKey struct {
	field        string
	fieldVersion int
	recordID     string
}

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.Record
	derived map[derivedKey]domain.DerivedValue
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]domain.Record),
		derived: make(map[derivedKey]domain.DerivedValue),
	}
}

// Insert stores a new record and assigns its ID.
func (s *RecordStore) Insert(_ context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.ID] = *rec
	return nil
}

// Update replaces the stored record with the given ID.
func (s *RecordStore) Update(_ context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	s.records[rec.ID] = *rec
	return nil
}

// Get retrieves a record by ID.
func (s *RecordStore) Get(_ context.Context, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// List returns all records ordered by creation time.
func (s *RecordStore) List(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.Record, 0, len(s.records))
	for id := range s.records {
		records = append(records, s.records[id])
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes a record and its derived-value cache rows.
func (s *RecordStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	for key := range s.derived {
		if key.recordID == id {
			delete(s.derived, key)
		}
	}
	return nil
}

// CountPayloadRefs returns how many records reference a payload digest.
func (s *RecordStore) CountPayloadRefs(_ context.Context, digest string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	for id := range s.records {
		if s.records[id].PayloadDigest == digest {
			count++
		}
	}
	return count, nil
}

// GetDerived returns a cached derived value and bumps its hit counter.
func (s *RecordStore) GetDerived(
	_ context.Context,
	field string,
	fieldVersion int,
	recordID string,
) (*domain.DerivedValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := derivedKey{field: field, fieldVersion: fieldVersion, recordID: recordID}
	dv, ok := s.derived[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	dv.Hits++
	s.derived[key] = dv
	return &dv, nil
}

// PutDerived stores a computed derived value, preserving accumulated
// hits on overwrite.
func (s *RecordStore) PutDerived(_ context.Context, value *domain.DerivedValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value.ComputedAt.IsZero() {
		value.ComputedAt = time.Now().UTC()
	}
	key := derivedKey{field: value.Field, fieldVersion: value.FieldVersion, recordID: value.RecordID}
	if existing, ok := s.derived[key]; ok {
		value.Hits = existing.Hits
	}
	s.derived[key] = *value
	return nil
}

// DeleteDerivedByRecord removes all cached values of one record.
func (s *RecordStore) DeleteDerivedByRecord(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.derived {
		if key.recordID == recordID {
			delete(s.derived, key)
		}
	}
	return nil
}
