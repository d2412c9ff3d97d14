package domain

import (
	"fmt"
	"strings"
)

// Document keys are dotted paths into the nested document: the first
// segment is the stored top-level key, the rest descend nested maps.
// "result.energy" addresses doc["result"]["energy"].

// DocumentPath splits a dotted document key into its segments.
func DocumentPath(key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty document key", ErrInvalidInput)
	}
	segments := strings.Split(key, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in document key %q", ErrInvalidInput, key)
		}
	}
	return segments, nil
}

// DocumentGet walks value along the path segments. Returns ErrNotFound
// when a segment is missing or an intermediate value is not a map.
func DocumentGet(value any, path []string) (any, error) {
	for _, seg := range path {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, ErrNotFound
		}
		value, ok = m[seg]
		if !ok {
			return nil, ErrNotFound
		}
	}
	return value, nil
}

// DocumentSet sets the value at path below root, creating intermediate
// maps as needed. An intermediate value that exists and is not a map
// fails with ErrInvalidInput rather than being overwritten.
func DocumentSet(root map[string]any, path []string, value any) error {
	m := root
	for _, seg := range path[:len(path)-1] {
		next, ok := m[seg]
		if !ok {
			child := map[string]any{}
			m[seg] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: document key %q holds a value, not a map", ErrInvalidInput, seg)
		}
		m = child
	}
	m[path[len(path)-1]] = value
	return nil
}

// DocumentUnset removes the value at path below root and reports
// whether it was present. Empty intermediate maps are left in place.
func DocumentUnset(root map[string]any, path []string) bool {
	m := root
	for _, seg := range path[:len(path)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			return false
		}
		m = child
	}
	leaf := path[len(path)-1]
	if _, ok := m[leaf]; !ok {
		return false
	}
	delete(m, leaf)
	return true
}
