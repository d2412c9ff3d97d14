package memory

import (
	"sort"
	"sync"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore holds configuration in a plain map. Service tests use it
// where a real project would read .strata/config.toml.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates an empty in-memory config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: map[string]any{}}
}

// Get returns the raw value for key and whether it exists.
func (c *ConfigStore) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the string under key, or "".
func (c *ConfigStore) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// GetInt returns the integer under key, or 0. Tests seed values as
// int, int64 or float64 depending on where they came from; all three
// convert.
func (c *ConfigStore) GetInt(key string) int {
	v, _ := c.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// GetBool returns the boolean under key, or false.
func (c *ConfigStore) GetBool(key string) bool {
	v, _ := c.Get(key)
	b, _ := v.(bool)
	return b
}

// GetStringSlice returns the strings under key, or nil.
func (c *ConfigStore) GetStringSlice(key string) []string {
	v, _ := c.Get(key)
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Set stores value under key.
func (c *ConfigStore) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// Delete removes key. Absent keys are fine.
func (c *ConfigStore) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// Keys returns every set key, sorted.
func (c *ConfigStore) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save is a no-op; there is no backing file.
func (c *ConfigStore) Save() error { return nil }

// Load is a no-op; there is no backing file.
func (c *ConfigStore) Load() error { return nil }

// Path identifies the store in messages that expect a file path.
func (c *ConfigStore) Path() string { return ":memory:" }
