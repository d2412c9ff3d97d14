package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
	"github.com/stratalabs/strata/internal/logger"
)

// Ensure QueueService implements the interface.
var _ driving.QueueService = (*QueueService)(nil)

// claimPollPeriod is how long an idle worker waits before asking the
// store for work again.
const claimPollPeriod = time.Second

// maxErrorDetail bounds how much task output is kept on aborted
// entries.
const maxErrorDetail = 2048

// QueueService manages the task queue and runs its worker pool. Each
// worker claims an entry, opens the job so the run is pulsed and its
// failures recorded, takes the job lock and executes the task command
// in the job workspace.
type QueueService struct {
	queueStore driven.QueueStore
	jobs       driving.JobService
	locks      driving.LockService
	runner     driven.TaskRunner
	projectLog *ProjectLog

	mu     sync.Mutex
	status map[string]driving.WorkerStatus
}

// NewQueueService creates a new queue service.
func NewQueueService(
	queueStore driven.QueueStore,
	jobs driving.JobService,
	locks driving.LockService,
	runner driven.TaskRunner,
	projectLog *ProjectLog,
) *QueueService {
	return &QueueService{
		queueStore: queueStore,
		jobs:       jobs,
		locks:      locks,
		runner:     runner,
		projectLog: projectLog,
		status:     make(map[string]driving.WorkerStatus),
	}
}

// online returns domain.ErrOffline when the project has no store.
func (s *QueueService) online() error {
	if s.queueStore == nil {
		return domain.ErrOffline
	}
	return nil
}

// Enqueue adds a task execution for a job.
func (s *QueueService) Enqueue(ctx context.Context, jobIDOrPrefix, task string) (*domain.QueueEntry, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("%w: task command is empty", domain.ErrInvalidInput)
	}

	job, err := s.jobs.Get(ctx, jobIDOrPrefix)
	if err != nil {
		return nil, err
	}

	entry := &domain.QueueEntry{JobID: job.ID, Task: task}
	if err := s.queueStore.Enqueue(ctx, entry); err != nil {
		return nil, err
	}

	s.projectLog.Record(ctx, domain.LogLevelInfo, "queue",
		"Enqueued task for job %s (entry %d)", shortID(job.ID), entry.ID)
	return entry, nil
}

// Work runs the worker pool until the context is cancelled, or until
// the queue drains when drain is set.
func (s *QueueService) Work(ctx context.Context, workers int, drain bool) error {
	if err := s.online(); err != nil {
		return err
	}
	if workers < 1 {
		return fmt.Errorf("%w: worker count %d", domain.ErrInvalidInput, workers)
	}

	logger.Info("Starting %d queue worker(s)", workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i+1)
		g.Go(func() error {
			return s.workLoop(ctx, workerID, drain)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		// Being told to stop is a normal way for the pool to end.
		return nil
	}
	return err
}

// workLoop is one worker: claim, run, repeat. Task failures are
// recorded on the entry and the job; only store failures stop the
// worker.
func (s *QueueService) workLoop(ctx context.Context, workerID string, drain bool) error {
	s.setIdle(workerID)
	defer s.clearStatus(workerID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, err := s.queueStore.Claim(ctx, workerID)
		if errors.Is(err, domain.ErrNotFound) {
			if drain {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(claimPollPeriod):
			}
			continue
		}
		if err != nil {
			return err
		}

		s.setActive(workerID, entry)
		s.runEntry(ctx, workerID, entry)
		s.setIdle(workerID)
	}
}

// runEntry executes one claimed entry and records its outcome.
func (s *QueueService) runEntry(ctx context.Context, workerID string, entry *domain.QueueEntry) {
	runErr := s.executeEntry(ctx, entry)

	state := domain.QueueStateCompleted
	errMsg := ""
	if runErr != nil {
		state = domain.QueueStateAborted
		errMsg = truncateDetail(runErr.Error())
	}

	// The outcome write must survive the pool's cancellation.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.queueStore.Finish(finishCtx, entry.ID, state, errMsg); err != nil {
		logger.Warn("Failed to record outcome of queue entry %d: %v", entry.ID, err)
	}

	if runErr != nil {
		s.projectLog.Record(finishCtx, domain.LogLevelWarning, "queue",
			"%s aborted entry %d (job %s): %v", workerID, entry.ID, shortID(entry.JobID), runErr)
		return
	}
	s.projectLog.Record(finishCtx, domain.LogLevelInfo, "queue",
		"%s completed entry %d (job %s)", workerID, entry.ID, shortID(entry.JobID))
}

// executeEntry opens the job, takes its lock and runs the task command
// in the job workspace.
func (s *QueueService) executeEntry(ctx context.Context, entry *domain.QueueEntry) error {
	job, err := s.jobs.Get(ctx, entry.JobID)
	if err != nil {
		return fmt.Errorf("resolving job: %w", err)
	}

	open, err := s.jobs.Open(ctx, job.Parameters)
	if err != nil {
		return fmt.Errorf("opening job: %w", err)
	}

	runErr := s.locks.WithJobLock(ctx, job.ID, func(ctx context.Context) error {
		output, err := s.runner.Run(ctx, job.Workspace, entry.Task, taskEnv(job))
		if err != nil {
			return fmt.Errorf("%w: %s", err, truncateDetail(output))
		}
		return nil
	})

	// Closing with the error appends it to the job's error list.
	closeCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		if cerr := open.CloseWithError(closeCtx, runErr); cerr != nil {
			logger.Warn("Failed to close job instance %s: %v", open.InstanceID(), cerr)
		}
		return runErr
	}
	if err := open.Close(closeCtx); err != nil {
		return fmt.Errorf("closing job: %w", err)
	}
	return nil
}

// taskEnv is the extra environment of a task process.
func taskEnv(job *domain.Job) []string {
	return []string{
		"STRATA_JOB_ID=" + job.ID,
		"STRATA_WORKSPACE=" + job.Workspace,
		"STRATA_STORAGE=" + job.Storage,
	}
}

// truncateDetail bounds task output kept in error detail.
func truncateDetail(detail string) string {
	detail = strings.TrimSpace(detail)
	if len(detail) <= maxErrorDetail {
		return detail
	}
	return detail[:maxErrorDetail] + " [truncated]"
}

// Counts returns per-state entry counts.
func (s *QueueService) Counts(ctx context.Context) (domain.QueueCounts, error) {
	if err := s.online(); err != nil {
		return domain.QueueCounts{}, err
	}
	return s.queueStore.Counts(ctx)
}

// List returns entries in a state, oldest first. Empty state lists
// everything.
func (s *QueueService) List(ctx context.Context, state domain.QueueState) ([]domain.QueueEntry, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if state != "" && !state.IsValid() {
		return nil, fmt.Errorf("%w: queue state %q", domain.ErrInvalidInput, state)
	}
	return s.queueStore.List(ctx, state)
}

// ClearResults removes completed and aborted entries.
func (s *QueueService) ClearResults(ctx context.Context) (int, error) {
	if err := s.online(); err != nil {
		return 0, err
	}
	completed, err := s.queueStore.ClearState(ctx, domain.QueueStateCompleted)
	if err != nil {
		return 0, err
	}
	aborted, err := s.queueStore.ClearState(ctx, domain.QueueStateAborted)
	if err != nil {
		return completed, err
	}
	return completed + aborted, nil
}

// ClearQueued removes entries still waiting for a worker.
func (s *QueueService) ClearQueued(ctx context.Context) (int, error) {
	if err := s.online(); err != nil {
		return 0, err
	}
	return s.queueStore.ClearState(ctx, domain.QueueStateQueued)
}

// WorkerStatuses reports the live state of the worker pool, sorted by
// worker ID.
func (s *QueueService) WorkerStatuses() []driving.WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]driving.WorkerStatus, 0, len(s.status))
	for _, st := range s.status {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].WorkerID < statuses[j].WorkerID
	})
	return statuses
}

func (s *QueueService) setIdle(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[workerID] = driving.WorkerStatus{WorkerID: workerID}
}

func (s *QueueService) setActive(workerID string, entry *domain.QueueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[workerID] = driving.WorkerStatus{
		WorkerID:  workerID,
		EntryID:   entry.ID,
		JobID:     entry.JobID,
		StartedAt: time.Now().UTC(),
	}
}

func (s *QueueService) clearStatus(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.status, workerID)
}
