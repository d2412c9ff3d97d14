package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Parameters is the statepoint of a job: an arbitrary JSON-able map.
// Two parameter maps with the same canonical JSON encoding describe the
// same job.
type Parameters map[string]any

// Canonical returns the canonical JSON encoding of the parameters.
// The encoding is stable across processes: keys are sorted at every
// nesting level and all numbers are folded to their JSON form, so a map
// built with Go ints hashes the same as one decoded from JSON.
func (p Parameters) Canonical() ([]byte, error) {
	return canonicalJSON(map[string]any(p))
}

// ID computes the job ID for the given schema version.
//
// Schema versions before 2 mixed the project ID into the digest, which
// made jobs non-portable between projects. From version 2 on the ID is a
// function of the parameters alone.
func (p Parameters) ID(projectID string, schema SchemaVersion) (string, error) {
	// A nil map must hash like an empty one; json.Marshal would write
	// null for nil and {} for empty, splitting the same logical job.
	if p == nil {
		p = Parameters{}
	}
	var payload any = map[string]any(p)
	if schema.Compare(MustSchemaVersion("2")) < 0 {
		payload = map[string]any{
			"parameters": map[string]any(p),
			"project":    projectID,
		}
	}
	data, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("encoding parameters: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON marshals v, round-trips it through an untyped decode and
// marshals again. The round trip folds every number to float64 and every
// composite to map/slice, and encoding/json writes map keys in sorted
// order, which together make the output canonical.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var folded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&folded); err != nil {
		return nil, err
	}
	return json.Marshal(folded)
}

// JobErrorKey is the document key holding a job's error list. Failed
// managed runs append one entry per failure.
const JobErrorKey = "error"

// Job is a handle on a single unit of work, identified by its parameters.
type Job struct {
	// ID is the content hash of the parameters (see Parameters.ID).
	ID string

	// ProjectID is the owning project.
	ProjectID string

	// Parameters is the statepoint that defines this job.
	Parameters Parameters

	// Workspace is the absolute path of the job's working directory.
	Workspace string

	// Storage is the absolute path of the job's file storage directory.
	Storage string

	// RegisteredAt is when the job was first registered, zero for jobs
	// that have never been opened or created.
	RegisteredAt time.Time
}

// Manifest is the content of the marker file written into every job
// workspace and storage directory. It lets a directory tree be matched
// back to its jobs without the store.
type Manifest struct {
	Project    string     `json:"project"`
	Parameters Parameters `json:"parameters"`
}

// Verify checks that the manifest belongs to the given project and that
// its parameters hash to the given job ID.
func (m *Manifest) Verify(projectID, jobID string, schema SchemaVersion) error {
	if m.Project != projectID {
		return fmt.Errorf("%w: manifest project %q, want %q", ErrManifestCorrupt, m.Project, projectID)
	}
	id, err := m.Parameters.ID(projectID, schema)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestCorrupt, err)
	}
	if id != jobID {
		return fmt.Errorf("%w: manifest parameters hash to %s, want %s", ErrManifestCorrupt, id, jobID)
	}
	return nil
}

// OpenInstance records one live opening of a job. A job can be open in
// several processes at once; each opening gets its own instance ID and
// its own pulse.
type OpenInstance struct {
	// JobID is the job this instance belongs to.
	JobID string

	// InstanceID is unique per opening.
	InstanceID string

	// OpenedAt is when the instance registered.
	OpenedAt time.Time

	// Hostname of the process that opened the job, for operator display.
	Hostname string
}

// JobStatus aggregates everything the info and status commands show
// about a single job.
type JobStatus struct {
	Job           Job
	OpenInstances []OpenInstance
	LastPulse     time.Time
	QueuedTasks   int
	Errors        []string
}
