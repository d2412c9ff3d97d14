// Package driving defines the interfaces through which the outside
// world drives the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// Core services implement these interfaces, and driving adapters
// (CLI, HTTP API, MCP, TUI) depend on them.
//
// # Interfaces
//
//   - ProjectService: Project lifecycle, status, checks, cleanup, logs
//   - JobService: Job handles, lifecycle, documents, find, removal
//   - LockService: Advisory job locks
//   - RecordService: Record database operations
//   - QueueService: Task queue and workers
//   - ViewService: Parameter-space views of the workspace
//   - SnapshotService: Snapshot create/restore with rollback recovery
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service implementation package
package driving
