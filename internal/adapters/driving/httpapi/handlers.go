package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/logger"
)

type projectResponse struct {
	ID            string             `json:"id"`
	SchemaVersion string             `json:"schema_version"`
	Root          string             `json:"root"`
	WorkspaceDir  string             `json:"workspace_dir"`
	StorageDir    string             `json:"storage_dir"`
	JobCount      int                `json:"job_count"`
	OpenInstances []instanceResponse `json:"open_instances"`
	Queue         queueCounts        `json:"queue"`
	HeldLocks     []lockResponse     `json:"held_locks"`
}

type instanceResponse struct {
	JobID      string    `json:"job_id"`
	InstanceID string    `json:"instance_id"`
	OpenedAt   time.Time `json:"opened_at"`
	Hostname   string    `json:"hostname,omitempty"`
}

type lockResponse struct {
	Name       string    `json:"name"`
	Holder     string    `json:"holder"`
	Count      int       `json:"count"`
	AcquiredAt time.Time `json:"acquired_at"`
}

type queueCounts struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Aborted   int `json:"aborted"`
}

type jobResponse struct {
	ID           string            `json:"id"`
	Parameters   domain.Parameters `json:"parameters"`
	Workspace    string            `json:"workspace"`
	Storage      string            `json:"storage"`
	RegisteredAt time.Time         `json:"registered_at"`
}

type jobDetailResponse struct {
	jobResponse
	OpenInstances []instanceResponse `json:"open_instances"`
	LastPulse     *time.Time         `json:"last_pulse,omitempty"`
	QueuedTasks   int                `json:"queued_tasks"`
	Errors        []string           `json:"errors,omitempty"`
}

type pulseResponse struct {
	InstanceID string    `json:"instance_id"`
	JobID      string    `json:"job_id"`
	BeatAt     time.Time `json:"beat_at"`
	AgeSeconds float64   `json:"age_seconds"`
}

type pulseListResponse struct {
	PeriodSeconds float64         `json:"period_seconds"`
	Pulses        []pulseResponse `json:"pulses"`
}

type queueEntryResponse struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	Task       string    `json:"task"`
	State      string    `json:"state"`
	WorkerID   string    `json:"worker_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type queueResponse struct {
	Counts  queueCounts          `json:"counts"`
	Entries []queueEntryResponse `json:"entries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	status, err := s.projects.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := projectResponse{
		ID:            status.Project.ID,
		SchemaVersion: status.Project.SchemaVersion.String(),
		Root:          status.Project.Root,
		WorkspaceDir:  status.Project.WorkspaceDir,
		StorageDir:    status.Project.StorageDir,
		JobCount:      status.JobCount,
		OpenInstances: toInstances(status.OpenInstances),
		Queue:         toQueueCounts(status.Queue),
		HeldLocks:     make([]lockResponse, 0, len(status.HeldLocks)),
	}
	for _, l := range status.HeldLocks {
		resp.HeldLocks = append(resp.HeldLocks, lockResponse{
			Name:       l.Name,
			Holder:     l.Holder,
			Count:      l.Count,
			AcquiredAt: l.AcquiredAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, toJob(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	status, err := s.jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := jobDetailResponse{
		jobResponse:   toJob(&status.Job),
		OpenInstances: toInstances(status.OpenInstances),
		QueuedTasks:   status.QueuedTasks,
		Errors:        status.Errors,
	}
	if !status.LastPulse.IsZero() {
		resp.LastPulse = &status.LastPulse
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.jobs.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePulse(w http.ResponseWriter, r *http.Request) {
	status, err := s.projects.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	resp := pulseListResponse{
		PeriodSeconds: domain.PulsePeriod.Seconds(),
		Pulses:        make([]pulseResponse, 0, len(status.Pulses)),
	}
	for i := range status.Pulses {
		p := &status.Pulses[i]
		resp.Pulses = append(resp.Pulses, pulseResponse{
			InstanceID: p.InstanceID,
			JobID:      p.JobID,
			BeatAt:     p.BeatAt,
			AgeSeconds: p.Age(now).Seconds(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queue.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.queue.List(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}

	resp := queueResponse{
		Counts:  toQueueCounts(counts),
		Entries: make([]queueEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, queueEntryResponse{
			ID:         e.ID,
			JobID:      e.JobID,
			Task:       e.Task,
			State:      string(e.State),
			WorkerID:   e.WorkerID,
			Error:      e.Error,
			EnqueuedAt: e.EnqueuedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func toJob(job *domain.Job) jobResponse {
	return jobResponse{
		ID:           job.ID,
		Parameters:   job.Parameters,
		Workspace:    job.Workspace,
		Storage:      job.Storage,
		RegisteredAt: job.RegisteredAt,
	}
}

func toInstances(instances []domain.OpenInstance) []instanceResponse {
	out := make([]instanceResponse, 0, len(instances))
	for _, in := range instances {
		out = append(out, instanceResponse{
			JobID:      in.JobID,
			InstanceID: in.InstanceID,
			OpenedAt:   in.OpenedAt,
			Hostname:   in.Hostname,
		})
	}
	return out
}

func toQueueCounts(c domain.QueueCounts) queueCounts {
	return queueCounts{
		Queued:    c.Queued,
		Active:    c.Active,
		Completed: c.Completed,
		Aborted:   c.Aborted,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes. Unknown errors
// stay opaque 500s so store internals do not leak to clients.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
