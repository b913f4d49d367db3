package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/queue"
	"github.com/Sriram-PR/listing-scraper/pkg/storage"
)

// Runner executes one job to a terminal status. *scraper.Driver satisfies it.
type Runner interface {
	Run(ctx context.Context, searchTerm string, maxPages int, jobID string) ([]models.Record, error)
}

// Manager creates job rows and starts their runs in the background.
// With a queue, Submit only enqueues and RunWorker does the running.
type Manager struct {
	store  storage.JobStore
	runner Runner
	queue  queue.JobQueue // nil means inline dispatch
	sem    *semaphore.Weighted
	newID  func() string
	log    *logrus.Entry

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc // jobID -> cancel for in-process runs
}

// NewManager returns a Manager running at most maxConcurrent jobs at once in
// this process. Pass a nil queue for inline dispatch.
func NewManager(store storage.JobStore, runner Runner, q queue.JobQueue, maxConcurrent int, log *logrus.Entry) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		runner:    runner,
		queue:     q,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		newID:     uuid.NewString,
		log:       log,
		baseCtx:   ctx,
		cancelAll: cancel,
		running:   make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, stores a pending job and dispatches it.
// ctx bounds only the store and queue writes; the run itself never inherits it.
func (m *Manager) Submit(ctx context.Context, searchTerm string, maxPages int) (*models.Job, error) {
	term, err := models.ValidateSearchRequest(searchTerm, maxPages)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(m.newID(), term, maxPages)
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	jobLog := m.log.WithField("job_id", job.ID)

	if m.queue != nil {
		if err := m.queue.Push(ctx, job.ID); err != nil {
			m.markFailed(job, err, jobLog)
			return nil, err
		}
		jobLog.Infof("Queued search for %q (%d pages)", term, maxPages)
		return job, nil
	}

	jobLog.Infof("Starting search for %q (%d pages)", term, maxPages)
	m.start(job.ID, term, maxPages)
	return job, nil
}

// start runs the job in a goroutine once a concurrency slot is free
func (m *Manager) start(jobID, term string, maxPages int) {
	runCtx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	m.running[jobID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.forget(jobID)
		m.run(runCtx, jobID, term, maxPages)
	}()
}

func (m *Manager) run(ctx context.Context, jobID, term string, maxPages int) {
	jobLog := m.log.WithField("job_id", jobID)
	if err := m.sem.Acquire(ctx, 1); err != nil {
		jobLog.Warnf("Job not started: %v", err)
		if job, getErr := m.store.GetJob(context.WithoutCancel(ctx), jobID); getErr == nil {
			m.markFailed(job, err, jobLog)
		}
		return
	}
	defer m.sem.Release(1)

	records, err := m.runner.Run(ctx, term, maxPages, jobID)
	if err != nil {
		jobLog.Errorf("Job finished with error: %v", err)
		return
	}
	jobLog.Infof("Job finished with %d products", len(records))
}

func (m *Manager) forget(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.running[jobID]; ok {
		cancel()
		delete(m.running, jobID)
	}
}

// markFailed moves a job that never got to run into failed
func (m *Manager) markFailed(job *models.Job, cause error, jobLog *logrus.Entry) {
	if err := job.Transition(models.JobStatusFailed); err != nil {
		return
	}
	job.ErrorMessage = cause.Error()
	if err := m.store.UpdateJob(context.Background(), job); err != nil {
		jobLog.Errorf("Could not mark job failed: %v", err)
	}
}

// RunWorker pops queued job ids and runs them until ctx ends. Runs already
// started keep going after it returns; Shutdown drains them.
func (m *Manager) RunWorker(ctx context.Context) error {
	if m.queue == nil {
		return errors.New("worker needs a queue")
	}
	m.log.Info("Worker waiting for jobs")

	for {
		if ctx.Err() != nil {
			return nil
		}
		jobID, err := m.queue.Pop(ctx)
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrEmpty):
			continue
		case ctx.Err() != nil:
			return nil
		default:
			m.log.Errorf("Queue pop failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		job, err := m.store.GetJob(ctx, jobID)
		if err != nil {
			m.log.WithField("job_id", jobID).Warnf("Dropping queued job: %v", err)
			continue
		}
		if job.Status != models.JobStatusPending {
			m.log.WithField("job_id", jobID).Warnf("Dropping queued job in status %s", job.Status)
			continue
		}
		// Wait for a free slot before popping the next id so the backlog stays queued
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		m.sem.Release(1)
		m.start(job.ID, job.SearchTerm, job.TotalPages)
	}
}

// Cancel stops an in-process run. The driver records the job as failed.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.running[jobID]
	if ok {
		cancel()
	}
	return ok
}

// IsRunning reports whether jobID has an in-process run
func (m *Manager) IsRunning(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[jobID]
	return ok
}

// Wait blocks until every dispatched in-process run has returned
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown lets in-flight runs finish until ctx ends, then cancels the rest
// and waits for them to record their failure.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	m.log.Warn("Grace period over, cancelling running jobs")
	m.cancelAll()
	<-done
	return fmt.Errorf("jobs cancelled at shutdown: %w", ctx.Err())
}
