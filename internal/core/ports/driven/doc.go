// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - JobRegistry: Job and open-instance persistence
//   - JobDocumentStore: Per-job key/value document persistence
//   - RecordStore: Record database persistence
//   - BlobStore: Content-addressed payload storage
//   - LockStore: Conditional lock claim/release primitives
//   - PulseStore: Heartbeat persistence for open instances
//   - QueueStore: Task queue persistence
//   - LogStore: Project log persistence
//   - ConfigStore: Project and global configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VCS: Worktree status and commit creation. Without it, the bump
//     command refuses to commit and only patches files.
//   - RevisionResolver: Remote hook revision lookup. Without it, hook
//     update and verify are disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
