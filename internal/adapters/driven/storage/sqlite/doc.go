// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - JobRegistry: Job and open-instance persistence
//   - JobDocumentStore: Per-job key/value documents
//   - RecordStore: Record metadata and the derived-value cache
//   - QueueStore: Task queue persistence
//   - LockStore: Advisory lock rows with conditional claim/release
//   - PulseStore: Instance heartbeats
//   - LogStore: Project log records
//
// # Schema
//
// The database schema is managed through versioned migrations embedded from the
// migrations/ directory and applied in filename order on open.
//
// # Data Location
//
// By default, the database is stored at <project>/.strata/strata.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Lock and queue claims are single conditional statements,
// so concurrent workers never observe a half-taken lock.
package sqlite
