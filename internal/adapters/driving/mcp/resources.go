package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for strata resources.
	uriScheme = "strata://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for the project descriptor.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "project",
		Name:        "project",
		Description: "Project descriptor and aggregate counts",
		MIMEType:    "application/json",
	}, s.handleProjectResource)

	// Template for a single job.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}",
		Name:        "job",
		Description: "Parameters and directories of a job",
		MIMEType:    "application/json",
	}, s.handleJobResource)

	// Template for a job's document.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}/document",
		Name:        "job-document",
		Description: "Key/value document of a job",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)
}

// handleProjectResource returns the project descriptor with counts.
func (s *Server) handleProjectResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Project == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "{}",
			}},
		}, nil
	}

	status, err := s.ports.Project.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading project status: %w", err)
	}

	info := ProjectInfoOutput{
		ID:            status.Project.ID,
		SchemaVersion: status.Project.SchemaVersion.String(),
		Root:          status.Project.Root,
		JobCount:      status.JobCount,
		OpenInstances: len(status.OpenInstances),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling project info: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleJobResource returns a single job by id or prefix.
func (s *Server) handleJobResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobID := extractJobID(req.Params.URI)
	if jobID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	job, err := s.ports.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("resolving job: %w", err)
	}

	out := JobOutput{
		ID:         job.ID,
		Parameters: job.Parameters,
		Workspace:  job.Workspace,
		Storage:    job.Storage,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling job: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleDocumentResource returns the document of a job.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobID := extractDocumentJobID(req.Params.URI)
	if jobID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Jobs.GetDocument(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling document: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractJobID extracts the job ID from a URI like strata://jobs/{jobId}.
func extractJobID(uri string) string {
	const prefix = uriScheme + "jobs/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractDocumentJobID extracts the job ID from a URI like
// strata://jobs/{jobId}/document.
func extractDocumentJobID(uri string) string {
	const prefix = uriScheme + "jobs/"
	const suffix = "/document"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(id, suffix) {
		return ""
	}

	id = strings.TrimSuffix(id, suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
