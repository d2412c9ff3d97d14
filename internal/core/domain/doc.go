// Package domain defines the core business entities for Strata.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Project: A managed parameter-space workspace
//   - Job: A unit of work identified by its parameters
//   - Record: A metadata document with an optional payload
//   - LockState: Advisory lock state held on a job
//   - QueueEntry: A queued task execution for a job
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
