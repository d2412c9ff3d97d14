package file

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps one TOML configuration scope on disk: the project
// file (<root>/.strata/config.toml) or the global file under
// ~/.strata. In memory the tables are held flat under dot-notation
// keys; on save they expand back so the file stays hand-editable TOML.
type ConfigStore struct {
	mu   sync.RWMutex
	path string
	data map[string]any
}

// NewConfigStore opens the configuration in configDir, creating the
// directory when needed. An empty configDir selects the global scope
// under the user's home.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".strata")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	c := &ConfigStore{
		path: filepath.Join(configDir, "config.toml"),
		data: map[string]any{},
	}
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the raw value for key and whether it exists.
func (c *ConfigStore) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.data[key]
	return v, ok
}

// GetString returns the string under key, or "".
func (c *ConfigStore) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// GetInt returns the integer under key, or 0. TOML parses integers
// as int64.
func (c *ConfigStore) GetInt(key string) int {
	v, _ := c.Get(key)
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// GetBool returns the boolean under key, or false.
func (c *ConfigStore) GetBool(key string) bool {
	v, _ := c.Get(key)
	b, _ := v.(bool)
	return b
}

// GetStringSlice returns the strings under key, or nil. TOML arrays
// load as []any; non-string elements are skipped.
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

// Set stores value under key and writes the file.
func (c *ConfigStore) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value
	return c.write()
}

// Delete removes key and writes the file. Deleting an absent key is
// not an error.
func (c *ConfigStore) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return c.write()
}

// Keys returns every set key, sorted.
func (c *ConfigStore) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the in-memory state to disk.
func (c *ConfigStore) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write()
}

// write marshals the expanded tables with restricted permissions.
// Caller holds the lock.
func (c *ConfigStore) write() error {
	out, err := toml.Marshal(expand(c.data))
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, out, 0600)
}

// Load replaces the in-memory state with the file contents. A missing
// file is an empty configuration.
func (c *ConfigStore) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		c.data = map[string]any{}
		return nil
	}
	if err != nil {
		return err
	}

	var tables map[string]any
	if err := toml.Unmarshal(raw, &tables); err != nil {
		return err
	}

	c.data = map[string]any{}
	flatten(tables, "", c.data)
	return nil
}

// Path returns the backing file's path.
func (c *ConfigStore) Path() string {
	return c.path
}

// flatten folds nested tables into dot-notation keys in dst:
// {"a": {"b": 1}} becomes {"a.b": 1}.
func flatten(m map[string]any, prefix string, dst map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(table, key, dst)
			continue
		}
		dst[key] = v
	}
}

// expand is flatten's inverse, rebuilding tables for the file. TOML
// cannot hold a value and a table under the same key; the table wins.
func expand(flat map[string]any) map[string]any {
	root := map[string]any{}
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := root
		for i, part := range parts {
			if i == len(parts)-1 {
				if _, isTable := node[part].(map[string]any); !isTable {
					node[part] = value
				}
				break
			}
			next, ok := node[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[part] = next
			}
			node = next
		}
	}
	return root
}
