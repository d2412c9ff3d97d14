package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stratalabs/strata/internal/core/domain"
)

// FindJobsInput is the input schema for the find_jobs tool.
type FindJobsInput struct {
	Filter map[string]any `json:"filter,omitempty" jsonschema:"parameter filter; doc.-prefixed keys match document values and $exists maps test key presence"`
	Limit  int            `json:"limit,omitempty" jsonschema:"maximum number of jobs to return (default 50)"`
}

// FindJobsOutput is the output schema for the find_jobs tool.
type FindJobsOutput struct {
	Jobs []JobOutput `json:"jobs"`

	// Count is the total number of matches, which can exceed len(Jobs)
	// when the limit truncates the result.
	Count int `json:"count"`
}

// JobOutput represents a single job.
type JobOutput struct {
	ID         string         `json:"id"`
	Parameters map[string]any `json:"parameters"`
	Workspace  string         `json:"workspace"`
	Storage    string         `json:"storage"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	JobID string `json:"job_id" jsonschema:"full job id or unique prefix"`
}

// GetDocumentOutput is the output schema for the get_document tool.
type GetDocumentOutput struct {
	JobID    string         `json:"job_id"`
	Document map[string]any `json:"document"`
}

// ProjectInfoInput is the input schema for the project_info tool.
type ProjectInfoInput struct{}

// ProjectInfoOutput is the output schema for the project_info tool.
type ProjectInfoOutput struct {
	ID            string `json:"id"`
	SchemaVersion string `json:"schema_version"`
	Root          string `json:"root"`
	JobCount      int    `json:"job_count"`
	OpenInstances int    `json:"open_instances"`
}

// QueueStatusInput is the input schema for the queue_status tool.
type QueueStatusInput struct{}

// QueueStatusOutput is the output schema for the queue_status tool.
type QueueStatusOutput struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Aborted   int `json:"aborted"`
}

// registerTools registers all tool handlers with the MCP server.
// Tools whose service is not wired are not offered at all.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_jobs",
		Description: "Find jobs by parameter and document values",
	}, s.handleFindJobs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Read the key/value document of a job",
	}, s.handleGetDocument)

	if s.ports.Project != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "project_info",
			Description: "Summarise the project: id, schema, job and instance counts",
		}, s.handleProjectInfo)
	}

	if s.ports.Queue != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "queue_status",
			Description: "Report task queue entry counts per state",
		}, s.handleQueueStatus)
	}
}

// handleFindJobs handles the find_jobs tool invocation.
func (s *Server) handleFindJobs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindJobsInput,
) (*mcp.CallToolResult, FindJobsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	jobs, err := s.ports.Jobs.Find(ctx, domain.Filter(input.Filter))
	if err != nil {
		return nil, FindJobsOutput{}, err
	}

	output := FindJobsOutput{Count: len(jobs)}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	output.Jobs = make([]JobOutput, len(jobs))
	for i := range jobs {
		output.Jobs[i] = JobOutput{
			ID:         jobs[i].ID,
			Parameters: jobs[i].Parameters,
			Workspace:  jobs[i].Workspace,
			Storage:    jobs[i].Storage,
		}
	}

	return nil, output, nil
}

// handleGetDocument handles the get_document tool invocation.
func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, GetDocumentOutput, error) {
	job, err := s.ports.Jobs.Get(ctx, input.JobID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}

	doc, err := s.ports.Jobs.GetDocument(ctx, job.ID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}

	return nil, GetDocumentOutput{JobID: job.ID, Document: doc}, nil
}

// handleProjectInfo handles the project_info tool invocation.
func (s *Server) handleProjectInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ProjectInfoInput,
) (*mcp.CallToolResult, ProjectInfoOutput, error) {
	status, err := s.ports.Project.Status(ctx)
	if err != nil {
		return nil, ProjectInfoOutput{}, err
	}

	output := ProjectInfoOutput{
		ID:            status.Project.ID,
		SchemaVersion: status.Project.SchemaVersion.String(),
		Root:          status.Project.Root,
		JobCount:      status.JobCount,
		OpenInstances: len(status.OpenInstances),
	}
	return nil, output, nil
}

// handleQueueStatus handles the queue_status tool invocation.
func (s *Server) handleQueueStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ QueueStatusInput,
) (*mcp.CallToolResult, QueueStatusOutput, error) {
	counts, err := s.ports.Queue.Counts(ctx)
	if err != nil {
		return nil, QueueStatusOutput{}, err
	}

	output := QueueStatusOutput{
		Queued:    counts.Queued,
		Active:    counts.Active,
		Completed: counts.Completed,
		Aborted:   counts.Aborted,
	}
	return nil, output, nil
}
