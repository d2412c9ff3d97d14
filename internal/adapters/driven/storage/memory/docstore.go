package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure JobDocumentStore implements the interface.
var _ driven.JobDocumentStore = (*JobDocumentStore)(nil)

// JobDocumentStore is an in-memory implementation of
// driven.JobDocumentStore. Values round-trip through JSON like the
// SQLite store so both behave identically in tests.
type JobDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]string
}

// NewJobDocumentStore creates a new in-memory document store.
func NewJobDocumentStore() *JobDocumentStore {
	return &JobDocumentStore{
		docs: make(map[string]map[string]string),
	}
}

// SetValue stores or replaces one document key.
func (s *JobDocumentStore) SetValue(_ context.Context, jobID, key string, value any) error {
	if jobID == "" || key == "" {
		return domain.ErrInvalidInput
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling document value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[jobID] == nil {
		s.docs[jobID] = make(map[string]string)
	}
	s.docs[jobID][key] = string(data)
	return nil
}

// GetValue retrieves one document key.
func (s *JobDocumentStore) GetValue(_ context.Context, jobID, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[jobID][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("unmarshaling document value: %w", err)
	}
	return value, nil
}

// DeleteValue removes one document key.
func (s *JobDocumentStore) DeleteValue(_ context.Context, jobID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[jobID], key)
	return nil
}

// GetDocument returns the whole document of a job.
func (s *JobDocumentStore) GetDocument(_ context.Context, jobID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := make(map[string]any, len(s.docs[jobID]))
	for key, raw := range s.docs[jobID] {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("unmarshaling document value: %w", err)
		}
		doc[key] = value
	}
	return doc, nil
}

// AppendToList appends a value to a list-valued document key.
func (s *JobDocumentStore) AppendToList(_ context.Context, jobID, key string, value any) error {
	if jobID == "" || key == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var list []any
	if raw, ok := s.docs[jobID][key]; ok {
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return fmt.Errorf("%w: document key %q is not a list", domain.ErrInvalidInput, key)
		}
	}
	list = append(list, value)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshalling document list: %w", err)
	}
	if s.docs[jobID] == nil {
		s.docs[jobID] = make(map[string]string)
	}
	s.docs[jobID][key] = string(data)
	return nil
}

// DeleteDocument removes the whole document of a job.
func (s *JobDocumentStore) DeleteDocument(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, jobID)
	return nil
}
