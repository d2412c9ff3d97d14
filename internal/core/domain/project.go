package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// SchemaVersionCurrent is the project schema version written by this build.
// Projects created before version 2 hashed the project ID into job IDs;
// see Parameters.ID for the exact rule.
const SchemaVersionCurrent = "2.0.0"

// Well-known file and directory names inside a project root.
const (
	// ConfigDirName is the per-project configuration directory.
	ConfigDirName = ".strata"

	// ManifestName is the marker file written into every job directory.
	// It records the owning project and the job's parameters.
	ManifestName = ".strata.json"

	// RollbackDirName holds the previous state during a snapshot restore.
	// Its presence means a restore did not complete.
	RollbackDirName = ".strata-rollback"
)

// Project describes a managed parameter-space workspace.
type Project struct {
	// ID is the project identifier chosen at init.
	ID string

	// Root is the absolute path of the project root directory.
	Root string

	// WorkspaceDir is where jobs execute, one subdirectory per job ID.
	WorkspaceDir string

	// StorageDir is the long-term file storage, one subdirectory per job ID.
	StorageDir string

	// SchemaVersion is the on-disk schema version of the project.
	SchemaVersion SchemaVersion
}

// JobWorkspace returns the workspace directory for a job ID.
func (p *Project) JobWorkspace(jobID string) string {
	return filepath.Join(p.WorkspaceDir, jobID)
}

// JobStorage returns the file storage directory for a job ID.
func (p *Project) JobStorage(jobID string) string {
	return filepath.Join(p.StorageDir, jobID)
}

// Validate checks the project descriptor for obvious misconfiguration.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: project id is empty", ErrInvalidInput)
	}
	if strings.ContainsAny(p.ID, " \t\n/\\") {
		return fmt.Errorf("%w: project id %q contains separator characters", ErrInvalidInput, p.ID)
	}
	if p.WorkspaceDir == "" || p.StorageDir == "" {
		return fmt.Errorf("%w: workspace and storage directories are required", ErrInvalidInput)
	}
	return nil
}

// SchemaVersion is a three-part project schema version.
type SchemaVersion [3]int

// ParseSchemaVersion parses "major.minor.patch". Missing trailing parts
// default to zero, so "2" and "2.0.0" are the same version.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	var v SchemaVersion
	if s == "" {
		return v, fmt.Errorf("%w: empty schema version", ErrInvalidInput)
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return v, fmt.Errorf("%w: schema version %q has more than three parts", ErrInvalidInput, s)
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return v, fmt.Errorf("%w: schema version %q", ErrInvalidInput, s)
		}
		v[i] = n
	}
	return v, nil
}

// MustSchemaVersion parses a schema version and panics on error.
// For use with trusted constants only.
func MustSchemaVersion(s string) SchemaVersion {
	v, err := ParseSchemaVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 if v is older than, equal to or newer than o.
func (v SchemaVersion) Compare(o SchemaVersion) int {
	for i := 0; i < 3; i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	return 0
}

// String returns the dotted form.
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}
