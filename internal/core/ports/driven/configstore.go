package driven

// ConfigStore reads and writes one configuration scope, either the
// project file under .strata/ or the global file under the user's
// home. Keys use dot notation ("project.id", "author.name"); how they
// map onto the underlying format is the adapter's business.
type ConfigStore interface {
	// Get returns the raw value for key and whether the key exists.
	Get(key string) (any, bool)

	// GetString returns the value for key, or "" when the key is
	// absent or holds a different type.
	GetString(key string) string

	// GetInt returns the value for key, or 0 when the key is absent
	// or holds a different type. Integral floats convert.
	GetInt(key string) int

	// GetBool returns the value for key, or false when the key is
	// absent or holds a different type.
	GetBool(key string) bool

	// GetStringSlice returns the value for key, or nil when the key
	// is absent or not a slice of strings.
	GetStringSlice(key string) []string

	// Set stores value under key and persists immediately.
	Set(key string, value any) error

	// Delete removes key and persists immediately. Deleting an
	// absent key is not an error.
	Delete(key string) error

	// Keys returns every set key in sorted order.
	Keys() []string

	// Save writes the current state to the backing file.
	Save() error

	// Load replaces the current state with the backing file's.
	Load() error

	// Path returns the backing file's path.
	Path() string
}
