package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/google/uuid"
)

const maxBackoff = time.Minute

// DefaultBackoff doubles the wait before each retry, starting at one second
// and capped at one minute.
func DefaultBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Second << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Queue is an in-process job publisher and consumer backed by a buffered
// channel. Jobs do not survive a restart, so it fits a single instance.
type Queue struct {
	jobCh   chan *jobs.ImportStatementJob
	closeCh chan struct{}
	store   jobs.JobStore
	workers int

	// Backoff returns the wait before retry number attempt (1-based).
	Backoff func(attempt int) time.Duration

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	timers map[*time.Timer]struct{}
}

// NewQueue creates a queue holding up to bufferSize waiting jobs. A
// workerCount below 1 is treated as 1, so jobs run one at a time by default.
func NewQueue(bufferSize, workerCount int, store jobs.JobStore) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Queue{
		jobCh:   make(chan *jobs.ImportStatementJob, bufferSize),
		closeCh: make(chan struct{}),
		store:   store,
		workers: workerCount,
		Backoff: DefaultBackoff,
		timers:  make(map[*time.Timer]struct{}),
	}
}

// PublishImportStatement implements jobs.Publisher. It fills in the job id,
// status and creation time when missing, records the job and enqueues it.
func (q *Queue) PublishImportStatement(ctx context.Context, job *jobs.ImportStatementJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobCh <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeCh:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements jobs.Consumer. It launches the workers and returns.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeCh:
			return
		case job := <-q.jobCh:
			if job != nil {
				q.process(ctx, job, handler)
			}
		}
	}
}

// process runs one attempt of job and records the outcome. A failed job
// with retries left is scheduled again after the backoff.
func (q *Queue) process(ctx context.Context, job *jobs.ImportStatementJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("statement_id", job.StatementID).
		Logger()

	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	q.save(ctx, job)

	err := runHandler(ctx, job, handler)

	completed := time.Now()
	job.CompletedAt = &completed

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		wait := q.Backoff(job.RetryCount)
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", wait).Msg("Job failed, retrying")
		// The RETRYING state is recorded before the timer exists; the timer
		// owns a separate copy so nothing else touches job afterwards.
		q.save(ctx, job)
		q.retryAfter(ctx, copyJob(job), wait)
		return
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
	}

	q.save(ctx, job)
}

// runHandler calls handler, turning a panic into an error so one bad job
// cannot take a worker down.
func runHandler(ctx context.Context, job jobs.Job, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// retryAfter re-publishes job once wait has elapsed. job must not be shared
// with any other goroutine.
func (q *Queue) retryAfter(ctx context.Context, job *jobs.ImportStatementJob, wait time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.PublishImportStatement(ctx, job); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to re-enqueue job")
		}
	})
	q.timers[timer] = struct{}{}
}

func (q *Queue) save(ctx context.Context, job *jobs.ImportStatementJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements jobs.Consumer. It refuses new jobs, cancels pending
// retries and waits for in-flight jobs or ctx, whichever comes first.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeCh)
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
