package domain

import (
	"fmt"
	"strings"
	"time"
)

// Metadata keys the record database fills in from project configuration
// when the caller leaves them unset.
const (
	MetaKeyAuthorName  = "author_name"
	MetaKeyAuthorEmail = "author_email"
)

// DerivedFieldPrefix marks filter keys that are computed from a record's
// payload instead of matched against stored metadata.
const DerivedFieldPrefix = "derived:"

// Operator keys like $group or $out are accepted by document databases
// this tool is not one of. Rejecting them loudly beats silently
// matching nothing; $exists is the single supported operator.

// Record is one entry of the record database: a metadata map plus an
// optional payload stored out of band in the blob store.
type Record struct {
	// ID is assigned by the store on insert.
	ID string

	// Metadata is the queryable document.
	Metadata map[string]any

	// PayloadDigest is the content address of the payload blob,
	// empty for metadata-only records.
	PayloadDigest string

	// PayloadFormat names the format of the payload, empty when there
	// is no payload.
	PayloadFormat string

	// CreatedAt and UpdatedAt are maintained by the store.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPayload reports whether the record carries payload data.
func (r *Record) HasPayload() bool {
	return r.PayloadDigest != ""
}

// Filter selects records by exact metadata matches. Keys starting with
// DerivedFieldPrefix are evaluated against values computed from the
// record payload, and {"$exists": bool} values test key presence. A nil
// or empty filter matches everything.
type Filter map[string]any

// Validate rejects filters using operators the database does not
// evaluate. The check is recursive so operators buried in nested maps
// are caught too.
func (f Filter) Validate() error {
	return validateFilterMap(map[string]any(f))
}

func validateFilterMap(m map[string]any) error {
	for key, value := range m {
		if strings.HasPrefix(key, "$") && key != existsOperator {
			return fmt.Errorf("%w: %s", ErrUnsupportedExpression, key)
		}
		if nested, ok := value.(map[string]any); ok {
			if err := validateFilterMap(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// existsOperator tests key presence: {"key": {"$exists": true}} matches
// documents that have the key regardless of its value.
const existsOperator = "$exists"

// existsQuery returns the wanted presence when the filter value is an
// exists expression.
func existsQuery(want any) (bool, bool) {
	expr, ok := want.(map[string]any)
	if !ok || len(expr) != 1 {
		return false, false
	}
	wanted, ok := expr[existsOperator].(bool)
	return wanted, ok
}

// DerivedFields returns the derived field names the filter references.
func (f Filter) DerivedFields() []string {
	var names []string
	for key := range f {
		if strings.HasPrefix(key, DerivedFieldPrefix) {
			names = append(names, strings.TrimPrefix(key, DerivedFieldPrefix))
		}
	}
	return names
}

// MetadataMatches reports whether the record's metadata satisfies every
// non-derived key of the filter. Values compare by their canonical JSON
// encoding, so 1 and 1.0 match.
func (f Filter) MetadataMatches(meta map[string]any) bool {
	for key, want := range f {
		if strings.HasPrefix(key, DerivedFieldPrefix) {
			continue
		}
		got, ok := metaLookup(meta, key)
		if wanted, isExists := existsQuery(want); isExists {
			if ok != wanted {
				return false
			}
			continue
		}
		if !ok {
			return false
		}
		if !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

// metaLookup resolves a filter key against the metadata, falling back
// to dotted-path descent into nested maps when no flat key matches.
func metaLookup(meta map[string]any, key string) (any, bool) {
	if v, ok := meta[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	path, err := DocumentPath(key)
	if err != nil {
		return nil, false
	}
	v, err := DocumentGet(meta[path[0]], path[1:])
	if err != nil {
		return nil, false
	}
	return v, true
}

// DerivedMatches reports whether computed derived values satisfy every
// derived key of the filter. The values map is keyed by bare field name,
// without the prefix. A missing value never matches.
func (f Filter) DerivedMatches(values map[string]any) bool {
	for key, want := range f {
		if !strings.HasPrefix(key, DerivedFieldPrefix) {
			continue
		}
		got, ok := values[strings.TrimPrefix(key, DerivedFieldPrefix)]
		if !ok {
			return false
		}
		if !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

// jsonEqual compares two values by canonical JSON encoding.
func jsonEqual(a, b any) bool {
	ca, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	cb, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return string(ca) == string(cb)
}

// DerivedField computes a filterable value from a record's payload.
type DerivedField struct {
	// Name is how filters reference the field, without the prefix.
	Name string

	// Version invalidates memoised values when the computation changes.
	Version int

	// Format is the payload format Compute expects. Payloads in other
	// formats are converted first.
	Format string

	// Compute derives the value from payload bytes.
	Compute func(data []byte) (any, error)
}

// Validate checks the field definition is usable.
func (f *DerivedField) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: derived field name is empty", ErrInvalidInput)
	}
	if strings.Contains(f.Name, ":") {
		return fmt.Errorf("%w: derived field name %q contains ':'", ErrInvalidInput, f.Name)
	}
	if f.Compute == nil {
		return fmt.Errorf("%w: derived field %q has no compute function", ErrInvalidInput, f.Name)
	}
	return nil
}

// DerivedValue is one memoised derived-field computation. The store
// keeps a hit counter per entry so rarely used cache rows can be aged
// out and hot derived fields identified.
type DerivedValue struct {
	// Field is the registered derived field name.
	Field string

	// FieldVersion invalidates cached values when the computation
	// changes.
	FieldVersion int

	// RecordID is the record the value was computed from.
	RecordID string

	// Value is the computed result, JSON-encoded by the store.
	Value any

	// Hits counts cache lookups that returned this entry.
	Hits int

	// ComputedAt is when the value was computed.
	ComputedAt time.Time
}
