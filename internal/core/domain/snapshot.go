package domain

import "time"

// SnapshotManifestName is the metadata file at the root of every
// snapshot archive.
const SnapshotManifestName = "strata-snapshot.json"

// SnapshotManifest describes the contents of a snapshot archive.
type SnapshotManifest struct {
	// ProjectID is the project the snapshot was taken from.
	ProjectID string `json:"project"`

	// SchemaVersion of the project at snapshot time.
	SchemaVersion string `json:"schema_version"`

	// DatabaseOnly is true when workspace and storage trees were
	// excluded from the archive.
	DatabaseOnly bool `json:"database_only"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// Jobs is the number of registered jobs included.
	Jobs int `json:"jobs"`

	// Records is the number of database records included.
	Records int `json:"records"`
}

// LogLevel classifies project log records. Values match the customary
// syslog-style names so filters read naturally on the command line.
type LogLevel string

// Log levels, in ascending severity.
const (
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

// IsValid returns true if the level is recognised.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical:
		return true
	default:
		return false
	}
}

// Severity returns a sortable rank, debug lowest.
func (l LogLevel) Severity() int {
	switch l {
	case LogLevelDebug:
		return 0
	case LogLevelInfo:
		return 1
	case LogLevelWarning:
		return 2
	case LogLevelError:
		return 3
	case LogLevelCritical:
		return 4
	default:
		return -1
	}
}

// String returns the string representation.
func (l LogLevel) String() string {
	return string(l)
}

// LogRecord is one persisted project log entry.
type LogRecord struct {
	// ID is assigned by the store.
	ID int64

	// Level is the severity.
	Level LogLevel

	// Message is the log text.
	Message string

	// Origin names the component that logged, e.g. "cleanup" or "queue".
	Origin string

	// CreatedAt is when the record was written.
	CreatedAt time.Time
}
