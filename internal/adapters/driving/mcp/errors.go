// Package mcp provides an MCP (Model Context Protocol) server adapter
// for strata. It lets AI assistants query jobs, documents and project
// state without shelling out to the CLI.
package mcp

import "errors"

// ErrMissingJobService is returned when the job service is not provided.
var ErrMissingJobService = errors.New("mcp: job service is required")
