package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/stratalabs/strata/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all project store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory,
// usually <project>/.strata. The directory is created when missing.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "strata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// JobRegistry returns a JobRegistry interface backed by this store.
func (s *Store) JobRegistry() driven.JobRegistry {
	return &jobRegistry{store: s}
}

// JobDocumentStore returns a JobDocumentStore interface backed by this store.
func (s *Store) JobDocumentStore() driven.JobDocumentStore {
	return &jobDocumentStore{store: s}
}

// RecordStore returns a RecordStore interface backed by this store.
func (s *Store) RecordStore() driven.RecordStore {
	return &recordStore{store: s}
}

// QueueStore returns a QueueStore interface backed by this store.
func (s *Store) QueueStore() driven.QueueStore {
	return &queueStore{store: s}
}

// LockStore returns a LockStore interface backed by this store.
func (s *Store) LockStore() driven.LockStore {
	return &lockStore{store: s}
}

// PulseStore returns a PulseStore interface backed by this store.
func (s *Store) PulseStore() driven.PulseStore {
	return &pulseStore{store: s}
}

// LogStore returns a LogStore interface backed by this store.
func (s *Store) LogStore() driven.LogStore {
	return &logStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Job Registry ====================

// jobRegistry implements driven.JobRegistry.
type jobRegistry struct {
	store *Store
}

var _ driven.JobRegistry = (*jobRegistry)(nil)

// SaveJob stores or updates a job registration.
func (s *jobRegistry) SaveJob(ctx context.Context, job *domain.Job) error {
	paramsJSON, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	if job.RegisteredAt.IsZero() {
		job.RegisteredAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, project_id, parameters, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			parameters = excluded.parameters
	`, job.ID, job.ProjectID, string(paramsJSON), job.RegisteredAt)

	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its full ID.
func (s *jobRegistry) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, project_id, parameters, registered_at
		FROM jobs WHERE id = ?
	`, id)

	return scanJob(row)
}

// FindJobByPrefix resolves a unique job ID prefix.
func (s *jobRegistry) FindJobByPrefix(ctx context.Context, prefix string) (*domain.Job, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty job id prefix", domain.ErrInvalidInput)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, project_id, parameters, registered_at
		FROM jobs WHERE id LIKE ? || '%' LIMIT 2
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("querying jobs by prefix: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	switch len(jobs) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return &jobs[0], nil
	default:
		return nil, fmt.Errorf("%w: job id prefix %q is ambiguous", domain.ErrInvalidInput, prefix)
	}
}

// ListJobs returns all registered jobs.
func (s *jobRegistry) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, project_id, parameters, registered_at
		FROM jobs ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// DeleteJob removes a job registration. Instances, documents and queue
// entries cascade.
func (s *jobRegistry) DeleteJob(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// AddInstance registers an open instance of a job.
func (s *jobRegistry) AddInstance(ctx context.Context, inst *domain.OpenInstance) error {
	if inst.InstanceID == "" || inst.JobID == "" {
		return domain.ErrInvalidInput
	}
	if inst.OpenedAt.IsZero() {
		inst.OpenedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO instances (instance_id, job_id, opened_at, hostname)
		VALUES (?, ?, ?, ?)
	`, inst.InstanceID, inst.JobID, inst.OpenedAt, inst.Hostname)

	if err != nil {
		return fmt.Errorf("adding instance: %w", err)
	}
	return nil
}

// RemoveInstance removes one open instance.
func (s *jobRegistry) RemoveInstance(ctx context.Context, instanceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM instances WHERE instance_id = ?", instanceID)
	if err != nil {
		return fmt.Errorf("removing instance: %w", err)
	}
	return nil
}

// ListInstances returns the open instances of one job.
func (s *jobRegistry) ListInstances(ctx context.Context, jobID string) ([]domain.OpenInstance, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT instance_id, job_id, opened_at, hostname
		FROM instances WHERE job_id = ? ORDER BY opened_at
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListAllInstances returns every open instance in the project.
func (s *jobRegistry) ListAllInstances(ctx context.Context) ([]domain.OpenInstance, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT instance_id, job_id, opened_at, hostname
		FROM instances ORDER BY opened_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ==================== Helper Functions ====================

// scanJob scans a single job row.
func scanJob(row *sql.Row) (*domain.Job, error) {
	var job domain.Job
	var paramsJSON string
	var registeredAt sql.NullTime

	if err := row.Scan(&job.ID, &job.ProjectID, &paramsJSON, &registeredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &job.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshaling parameters: %w", err)
	}
	if registeredAt.Valid {
		job.RegisteredAt = registeredAt.Time
	}

	return &job, nil
}

// scanJobRows scans a job from *sql.Rows.
func scanJobRows(rows *sql.Rows) (*domain.Job, error) {
	var job domain.Job
	var paramsJSON string
	var registeredAt sql.NullTime

	if err := rows.Scan(&job.ID, &job.ProjectID, &paramsJSON, &registeredAt); err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &job.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshaling parameters: %w", err)
	}
	if registeredAt.Valid {
		job.RegisteredAt = registeredAt.Time
	}

	return &job, nil
}

// scanInstances scans multiple instance rows.
func scanInstances(rows *sql.Rows) ([]domain.OpenInstance, error) {
	var instances []domain.OpenInstance //nolint:prealloc // size unknown from query
	for rows.Next() {
		var inst domain.OpenInstance
		var openedAt sql.NullTime
		if err := rows.Scan(&inst.InstanceID, &inst.JobID, &openedAt, &inst.Hostname); err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}
		if openedAt.Valid {
			inst.OpenedAt = openedAt.Time
		}
		instances = append(instances, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating instances: %w", err)
	}

	return instances, nil
}
