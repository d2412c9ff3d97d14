// Package maint implements the repository maintenance surface behind
// the maint command group: version bumping across the release targets,
// the hook pipeline, revision pinning and the consistency checks.
//
// Configuration lives in two files at the repository root, the
// maintenance configuration (ConfigName) and the hook pipeline
// configuration (HooksConfigName). The package never reimplements the
// tools the hooks invoke; it selects files, runs the configured
// commands and reports their outcome.
package maint
