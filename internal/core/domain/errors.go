package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNoProject indicates no project is configured in the current
	// directory or any of its parents.
	ErrNoProject = errors.New("no project found")

	// ErrSchemaVersion indicates the project schema version is newer than
	// this build supports. Upgrading the tool is the only safe way forward.
	ErrSchemaVersion = errors.New("incompatible schema version")

	// ErrOffline indicates an operation needs the project store but the
	// project was opened without one.
	ErrOffline = errors.New("project opened offline")

	// Lock Errors.

	// ErrLockHeld indicates the lock is held by another owner.
	ErrLockHeld = errors.New("lock held by another owner")

	// ErrLockNotHeld indicates a release was attempted by a non-holder.
	// The lock state was manipulated outside this process; treat the
	// protected resource as suspect.
	ErrLockNotHeld = errors.New("lock not held by caller")

	// ErrLockTimeout indicates the lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// Job Errors.

	// ErrJobOpen indicates a destructive operation was attempted on a job
	// with registered open instances.
	ErrJobOpen = errors.New("job has open instances")

	// ErrManifestCorrupt indicates a job manifest no longer matches the
	// job's parameters or cannot be parsed.
	ErrManifestCorrupt = errors.New("manifest corrupt")

	// Record Errors.

	// ErrUnsupportedExpression indicates a filter uses an operator the
	// record database does not evaluate.
	ErrUnsupportedExpression = errors.New("unsupported filter expression")

	// ErrNoConversionPath indicates no adapter chain connects the source
	// and target payload formats.
	ErrNoConversionPath = errors.New("no conversion path between formats")

	// ErrUnknownDerivedField indicates a filter referenced a derived field
	// that is not registered.
	ErrUnknownDerivedField = errors.New("unknown derived field")

	// View Errors.

	// ErrViewCollision indicates two jobs render the same view path, so
	// the template does not distinguish them.
	ErrViewCollision = errors.New("view path collision")

	// Snapshot Errors.

	// ErrRollbackExists indicates a rollback backup from a previous failed
	// restore is still present and must be recovered or discarded first.
	ErrRollbackExists = errors.New("rollback backup exists")

	// Queue Errors.

	// ErrQueueEntryClaimed indicates the queue entry was already claimed
	// by another worker.
	ErrQueueEntryClaimed = errors.New("queue entry already claimed")
)
