package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressFunc lets a handler report incremental progress.
type ProgressFunc func(progress int, message string)

// Handler executes one kind of analysis job. Returning an error wrapped
// with Transient requeues the job with backoff until MaxAttempts.
type Handler func(ctx context.Context, job *Job, progress ProgressFunc) (json.RawMessage, error)

// ProgressSink receives job state changes, typically a websocket hub.
type ProgressSink interface {
	JobProgress(job *Job)
}

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
	defaultBackoffBase = 10 * time.Second
)

// JobQueue runs jobs on a bounded worker pool.
type JobQueue struct {
	mu        sync.RWMutex
	jobs      chan *Job
	workers   int
	wg        sync.WaitGroup
	store     JobStore
	handlers  map[string]Handler
	sink      ProgressSink
	logger    *slog.Logger
	shutdown  chan struct{}
	active    map[string]*Job
	cancelled map[string]bool

	// backoffBase scales the retry delay: base * 2^attempts.
	backoffBase time.Duration
}

// NewJobQueue creates a queue with the given worker count.
func NewJobQueue(workers int, store JobStore, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		jobs:        make(chan *Job, workers*2),
		workers:     workers,
		store:       store,
		handlers:    make(map[string]Handler),
		logger:      logger.With(slog.String("component", "jobqueue")),
		shutdown:    make(chan struct{}),
		active:      make(map[string]*Job),
		cancelled:   make(map[string]bool),
		backoffBase: defaultBackoffBase,
	}
}

// Register binds a handler to a job kind. Call before Start.
func (q *JobQueue) Register(kind string, h Handler) {
	q.handlers[kind] = h
}

// SetProgressSink wires the destination for job state broadcasts.
func (q *JobQueue) SetProgressSink(sink ProgressSink) {
	q.sink = sink
}

// SetBackoffBase overrides the retry backoff base.
func (q *JobQueue) SetBackoffBase(d time.Duration) {
	q.backoffBase = d
}

// Start launches the workers and recovers jobs left over from a previous
// run.
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.recoverJobs()
}

// Stop shuts the queue down, waiting up to timeout for in-flight jobs.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("operations: timeout waiting for workers to finish")
	}
}

// Enqueue persists the job and hands it to the pool. A full queue fails
// the job immediately rather than blocking the caller.
func (q *JobQueue) Enqueue(job *Job) error {
	if _, ok := q.handlers[job.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	job.Status = JobStatusPending
	job.CreatedAt = time.Now().UTC()

	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("operations: save job: %w", err)
	}

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("kind", job.Kind))
		return nil
	default:
		job.Status = JobStatusFailed
		job.Error = "job queue is full"
		q.store.UpdateJob(job)
		return fmt.Errorf("operations: job queue is full")
	}
}

// GetJob returns the live job if it is executing, else the stored copy.
func (q *JobQueue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	if active, ok := q.active[id]; ok {
		cp := *active
		q.mu.RUnlock()
		return &cp, nil
	}
	q.mu.RUnlock()
	return q.store.GetJob(id)
}

// CancelJob requests cancellation. Pending jobs are skipped when a worker
// picks them up; running jobs finish their current attempt but are not
// retried.
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.GetJob(id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("operations: job %s cannot be cancelled (status: %s)", id, job.Status)
	}

	q.mu.Lock()
	q.cancelled[id] = true
	q.mu.Unlock()

	if job.Status == JobStatusPending {
		job.Status = JobStatusCancelled
		now := time.Now().UTC()
		job.CompletedAt = &now
		if err := q.store.UpdateJob(job); err != nil {
			return err
		}
		q.publish(job)
	}
	return nil
}

// ListJobs returns jobs matching the filter.
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// Stats reports queue occupancy.
func (q *JobQueue) Stats() map[string]interface{} {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("kind", job.Kind),
	)

	if q.isCancelled(job.ID) {
		q.finish(job, JobStatusCancelled, "job cancelled before execution", "")
		return
	}

	// The job is shared with GetJob readers once it is in active, so
	// every field write below must hold q.mu.
	q.mu.Lock()
	q.active[job.ID] = job
	job.Status = JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	job.Attempts++
	job.Message = fmt.Sprintf("attempt %d of %d", job.Attempts, job.MaxAttempts)
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job status", slog.String("error", err.Error()))
	}
	q.publish(job)

	logger.Info("processing job", slog.Int("attempt", job.Attempts))

	result, err := q.runHandler(ctx, job, logger)
	if err == nil {
		q.mu.Lock()
		job.Result = result
		job.Progress = 100
		q.mu.Unlock()
		q.finish(job, JobStatusCompleted, "job completed", "")
		logger.Info("job completed")
		return
	}

	if q.isCancelled(job.ID) {
		q.finish(job, JobStatusCancelled, "job cancelled", err.Error())
		return
	}

	if IsTransient(err) && job.Attempts < job.MaxAttempts {
		q.retryLater(job, err, logger)
		return
	}

	q.finish(job, JobStatusFailed, "job failed", err.Error())
	logger.Error("job failed", slog.String("error", err.Error()))
}

// runHandler executes the handler with panic isolation.
func (q *JobQueue) runHandler(ctx context.Context, job *Job, logger *slog.Logger) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job handler panicked", slog.Any("panic", r))
			err = fmt.Errorf("operations: handler panicked: %v", r)
		}
	}()

	handler, ok := q.handlers[job.Kind]
	if !ok {
		return nil, fmt.Errorf("operations: no handler for kind %q", job.Kind)
	}

	progress := func(pct int, msg string) {
		q.mu.Lock()
		job.Progress = pct
		job.Message = msg
		q.mu.Unlock()
		q.store.UpdateJob(job)
		q.publish(job)
	}
	return handler(ctx, job, progress)
}

// retryLater schedules the job to requeue after the exponential backoff,
// base * 2^attempts. The timer fires off-pool so the worker is free for
// other jobs during the delay.
func (q *JobQueue) retryLater(job *Job, cause error, logger *slog.Logger) {
	delay := q.backoffBase << uint(job.Attempts)
	logger.Warn("transient failure, retrying",
		slog.String("error", cause.Error()),
		slog.Duration("delay", delay))

	q.mu.Lock()
	job.Status = JobStatusPending
	job.Message = fmt.Sprintf("retrying in %s", delay)
	job.Error = cause.Error()
	q.mu.Unlock()
	q.store.UpdateJob(job)
	q.publish(job)

	time.AfterFunc(delay, func() {
		select {
		case <-q.shutdown:
			return
		default:
		}
		select {
		case q.jobs <- job:
		default:
			q.finish(job, JobStatusFailed, "job failed", "queue full during retry")
		}
	})
}

func (q *JobQueue) finish(job *Job, status JobStatus, message, errMsg string) {
	q.mu.Lock()
	job.Status = status
	job.Message = message
	job.Error = errMsg
	now := time.Now().UTC()
	job.CompletedAt = &now
	q.mu.Unlock()
	if err := q.store.UpdateJob(job); err != nil {
		q.logger.Error("failed to update finished job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
	q.publish(job)
}

func (q *JobQueue) isCancelled(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.cancelled[id]
}

func (q *JobQueue) publish(job *Job) {
	if q.sink != nil {
		cp := *job
		q.sink.JobProgress(&cp)
	}
}

// recoverJobs requeues jobs that were pending or running when the
// previous process stopped.
func (q *JobQueue) recoverJobs() {
	running, err := q.store.ListJobs(JobFilter{Status: JobStatusRunning})
	if err != nil {
		q.logger.Error("failed to recover running jobs", slog.String("error", err.Error()))
		return
	}
	pending, err := q.store.ListJobs(JobFilter{Status: JobStatusPending})
	if err != nil {
		q.logger.Error("failed to recover pending jobs", slog.String("error", err.Error()))
	}
	jobs := append(running, pending...)

	for _, job := range jobs {
		if job.Status == JobStatusRunning {
			job.Status = JobStatusPending
			job.StartedAt = nil
			job.Progress = 0
			q.store.UpdateJob(job)
		}
		select {
		case q.jobs <- job:
			q.logger.Info("recovered job", slog.String("job_id", job.ID))
		default:
			q.logger.Warn("could not recover job, queue full", slog.String("job_id", job.ID))
		}
	}
}
