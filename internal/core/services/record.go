package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ensure RecordService implements the interface.
var _ driving.RecordService = (*RecordService)(nil)

// RecordService is the record database: metadata documents with
// optional content-addressed payloads, filtered finds, derived fields
// and payload format conversion.
type RecordService struct {
	recordStore driven.RecordStore
	blobStore   driven.BlobStore
	configStore driven.ConfigStore
	network     driven.ConversionNetwork
	projectLog  *ProjectLog

	mu      sync.RWMutex
	derived map[string]domain.DerivedField
}

// NewRecordService creates a new record service.
func NewRecordService(
	recordStore driven.RecordStore,
	blobStore driven.BlobStore,
	configStore driven.ConfigStore,
	network driven.ConversionNetwork,
	projectLog *ProjectLog,
) *RecordService {
	return &RecordService{
		recordStore: recordStore,
		blobStore:   blobStore,
		configStore: configStore,
		network:     network,
		projectLog:  projectLog,
		derived:     make(map[string]domain.DerivedField),
	}
}

// online returns domain.ErrOffline when the project has no store.
func (s *RecordService) online() error {
	if s.recordStore == nil {
		return domain.ErrOffline
	}
	return nil
}

// Insert stores a new record. Payload may be nil for metadata-only
// records. Author metadata is filled in from project configuration when
// absent.
func (s *RecordService) Insert(ctx context.Context, meta map[string]any, payload io.Reader, format string) (*domain.Record, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	rec, err := s.buildRecord(ctx, meta, payload, format)
	if err != nil {
		return nil, err
	}
	if err := s.recordStore.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// buildRecord assembles a record from caller input: validated metadata
// with author fields added, and the payload stored in the blob store.
func (s *RecordService) buildRecord(ctx context.Context, meta map[string]any, payload io.Reader, format string) (*domain.Record, error) {
	if payload == nil && format != "" {
		return nil, fmt.Errorf("%w: payload format %q given without payload", domain.ErrInvalidInput, format)
	}
	if payload != nil && format == "" {
		return nil, fmt.Errorf("%w: payload requires a format name", domain.ErrInvalidInput)
	}
	if err := validateMetadataKeys(meta); err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(meta)+2)
	for key, value := range meta {
		merged[key] = value
	}
	s.addAuthorMetadata(merged)

	rec := &domain.Record{Metadata: merged}
	if payload != nil {
		digest, err := s.blobStore.Put(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("storing payload: %w", err)
		}
		rec.PayloadDigest = digest
		rec.PayloadFormat = format
	}
	return rec, nil
}

// validateMetadataKeys rejects keys that would collide with filter
// syntax: operator keys and the derived-field prefix.
func validateMetadataKeys(meta map[string]any) error {
	for key := range meta {
		if strings.HasPrefix(key, "$") {
			return fmt.Errorf("%w: metadata key %q", domain.ErrInvalidInput, key)
		}
		if strings.HasPrefix(key, domain.DerivedFieldPrefix) {
			return fmt.Errorf("%w: metadata key %q uses the derived-field prefix", domain.ErrInvalidInput, key)
		}
	}
	return nil
}

// addAuthorMetadata fills in author name and email from configuration
// when the caller left them unset.
func (s *RecordService) addAuthorMetadata(meta map[string]any) {
	if s.configStore == nil {
		return
	}
	if _, ok := meta[domain.MetaKeyAuthorName]; !ok {
		if name := s.configStore.GetString("author.name"); name != "" {
			meta[domain.MetaKeyAuthorName] = name
		}
	}
	if _, ok := meta[domain.MetaKeyAuthorEmail]; !ok {
		if email := s.configStore.GetString("author.email"); email != "" {
			meta[domain.MetaKeyAuthorEmail] = email
		}
	}
}

// Find returns records matching the filter. Derived-field keys are
// computed from payloads and memoised; records without a payload never
// satisfy a derived-field filter.
func (s *RecordService) Find(ctx context.Context, filter domain.Filter) ([]domain.Record, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	fields, err := s.resolveDerivedFields(filter)
	if err != nil {
		return nil, err
	}

	records, err := s.recordStore.List(ctx)
	if err != nil {
		return nil, err
	}

	var matches []domain.Record
	for i := range records {
		rec := &records[i]
		if !filter.MetadataMatches(rec.Metadata) {
			continue
		}
		if len(fields) > 0 {
			values, ok, err := s.deriveValues(ctx, rec, fields)
			if err != nil {
				return nil, err
			}
			if !ok || !filter.DerivedMatches(values) {
				continue
			}
		}
		matches = append(matches, *rec)
	}
	return matches, nil
}

// FindOne returns the first record matching the filter, or
// domain.ErrNotFound.
func (s *RecordService) FindOne(ctx context.Context, filter domain.Filter) (*domain.Record, error) {
	matches, err := s.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	return &matches[0], nil
}

// ReplaceOne replaces the first record matching the filter. With
// upsert, a missing match inserts instead.
func (s *RecordService) ReplaceOne(ctx context.Context, filter domain.Filter, meta map[string]any,
	payload io.Reader, format string, upsert bool) (*domain.Record, error) {
	existing, err := s.FindOne(ctx, filter)
	if errors.Is(err, domain.ErrNotFound) {
		if !upsert {
			return nil, err
		}
		return s.Insert(ctx, meta, payload, format)
	}
	if err != nil {
		return nil, err
	}

	replacement, err := s.buildRecord(ctx, meta, payload, format)
	if err != nil {
		return nil, err
	}
	replacement.ID = existing.ID
	replacement.CreatedAt = existing.CreatedAt

	if err := s.recordStore.Update(ctx, replacement); err != nil {
		return nil, err
	}

	// A changed payload invalidates the derived cache and may orphan
	// the old blob.
	if existing.PayloadDigest != replacement.PayloadDigest {
		if err := s.recordStore.DeleteDerivedByRecord(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("invalidating derived cache: %w", err)
		}
		if existing.HasPayload() {
			if err := s.collectBlob(ctx, existing.PayloadDigest); err != nil {
				return nil, err
			}
		}
	}
	return replacement, nil
}

// UpdateOne merges set into the metadata of the first match.
func (s *RecordService) UpdateOne(ctx context.Context, filter domain.Filter, set map[string]any) (*domain.Record, error) {
	if err := validateMetadataKeys(set); err != nil {
		return nil, err
	}
	rec, err := s.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}

	for key, value := range set {
		rec.Metadata[key] = value
	}
	if err := s.recordStore.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteOne removes the first match, reporting whether one existed.
func (s *RecordService) DeleteOne(ctx context.Context, filter domain.Filter) (bool, error) {
	rec, err := s.FindOne(ctx, filter)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.deleteRecord(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMany removes all matches and returns the count.
func (s *RecordService) DeleteMany(ctx context.Context, filter domain.Filter) (int, error) {
	matches, err := s.Find(ctx, filter)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range matches {
		if err := s.deleteRecord(ctx, &matches[i]); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// deleteRecord removes one record, its derived cache rows and, when no
// other record references it, its payload blob.
func (s *RecordService) deleteRecord(ctx context.Context, rec *domain.Record) error {
	if err := s.recordStore.Delete(ctx, rec.ID); err != nil {
		return err
	}
	if rec.HasPayload() {
		if err := s.collectBlob(ctx, rec.PayloadDigest); err != nil {
			return err
		}
	}
	return nil
}

// collectBlob deletes a payload blob once nothing references it.
func (s *RecordService) collectBlob(ctx context.Context, digest string) error {
	refs, err := s.recordStore.CountPayloadRefs(ctx, digest)
	if err != nil {
		return fmt.Errorf("counting payload references: %w", err)
	}
	if refs > 0 {
		return nil
	}
	if err := s.blobStore.Delete(ctx, digest); err != nil {
		return fmt.Errorf("deleting payload blob: %w", err)
	}
	return nil
}

// OpenPayload streams a record's payload and reports its format.
func (s *RecordService) OpenPayload(ctx context.Context, recordID string) (io.ReadCloser, string, error) {
	if err := s.online(); err != nil {
		return nil, "", err
	}
	rec, err := s.recordStore.Get(ctx, recordID)
	if err != nil {
		return nil, "", err
	}
	if !rec.HasPayload() {
		return nil, "", fmt.Errorf("%w: record %s has no payload", domain.ErrNotFound, recordID)
	}
	rc, err := s.blobStore.Open(ctx, rec.PayloadDigest)
	if err != nil {
		return nil, "", err
	}
	return rc, rec.PayloadFormat, nil
}

// ConvertPayload streams a record's payload converted to the target
// format via the shortest registered adapter chain.
func (s *RecordService) ConvertPayload(ctx context.Context, recordID, targetFormat string) (io.ReadCloser, error) {
	if targetFormat == "" {
		return nil, fmt.Errorf("%w: target format is required", domain.ErrInvalidInput)
	}
	rc, format, err := s.OpenPayload(ctx, recordID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	converted, err := s.network.Convert(data, format, targetFormat)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(converted)), nil
}

// RegisterDerivedField makes a derived field available to filters.
// Re-registering a name replaces the field; bumping Version invalidates
// memoised values.
func (s *RecordService) RegisterDerivedField(field domain.DerivedField) error {
	if err := field.Validate(); err != nil {
		return err
	}
	if field.Format != "" && !s.network.HasFormat(field.Format) {
		return fmt.Errorf("%w: derived field %q expects unregistered format %q",
			domain.ErrInvalidInput, field.Name, field.Format)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived[field.Name] = field
	return nil
}

// resolveDerivedFields looks up every derived field the filter names.
func (s *RecordService) resolveDerivedFields(filter domain.Filter) (map[string]domain.DerivedField, error) {
	names := filter.DerivedFields()
	if len(names) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := make(map[string]domain.DerivedField, len(names))
	for _, name := range names {
		field, ok := s.derived[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDerivedField, name)
		}
		fields[name] = field
	}
	return fields, nil
}

// deriveValues returns the derived values of one record, serving from
// the cache and computing on miss. ok is false for records that cannot
// satisfy a derived filter because they have no payload.
func (s *RecordService) deriveValues(ctx context.Context, rec *domain.Record,
	fields map[string]domain.DerivedField) (map[string]any, bool, error) {
	if !rec.HasPayload() {
		return nil, false, nil
	}

	values := make(map[string]any, len(fields))
	for name, field := range fields {
		cached, err := s.recordStore.GetDerived(ctx, field.Name, field.Version, rec.ID)
		if err == nil {
			values[name] = cached.Value
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}

		value, err := s.computeDerived(ctx, rec, field)
		if err != nil {
			return nil, false, fmt.Errorf("computing %s%s for record %s: %w",
				domain.DerivedFieldPrefix, name, rec.ID, err)
		}
		dv := &domain.DerivedValue{
			Field:        field.Name,
			FieldVersion: field.Version,
			RecordID:     rec.ID,
			Value:        value,
		}
		if err := s.recordStore.PutDerived(ctx, dv); err != nil {
			return nil, false, fmt.Errorf("memoising derived value: %w", err)
		}
		values[name] = value
	}
	return values, true, nil
}

// computeDerived loads the payload, converts it to the field's expected
// format and runs the computation.
func (s *RecordService) computeDerived(ctx context.Context, rec *domain.Record, field domain.DerivedField) (any, error) {
	rc, err := s.blobStore.Open(ctx, rec.PayloadDigest)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	if field.Format != "" && field.Format != rec.PayloadFormat {
		data, err = s.network.Convert(data, rec.PayloadFormat, field.Format)
		if err != nil {
			return nil, err
		}
	}
	return field.Compute(data)
}
