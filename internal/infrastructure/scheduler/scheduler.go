package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a check job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one billing check run for a reference key
type Job struct {
	ID           uuid.UUID
	ReferenceKey string
	Status       JobStatus
	Error        string
	SubmittedAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// NewJob creates a new job instance
func NewJob(referenceKey string) *Job {
	return &Job{
		ID:           uuid.New(),
		ReferenceKey: referenceKey,
		Status:       JobStatusPending,
		SubmittedAt:  time.Now(),
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// JobExecutor runs a check job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobExecutorFunc adapts a function to JobExecutor
type JobExecutorFunc func(ctx context.Context, job *Job) error

// Execute calls f(ctx, job)
func (f JobExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	MaxConcurrentJobs int
	QueueSize         int
	// JobTimeout bounds a single job; zero means no deadline
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 4,
		QueueSize:         100,
	}
}

// Stats is a snapshot of scheduler counters
type Stats struct {
	Running   bool
	Queued    int
	Submitted int64
	Succeeded int64
	Failed    int64
}

// Scheduler runs check jobs on a fixed pool of workers.
// Failed jobs are not retried.
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = defaults.MaxConcurrentJobs
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.executor == nil {
		return ErrInvalidConfig
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.jobs = make(chan *Job, s.config.QueueSize)
	s.isRunning = true

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, s.jobs, i)
	}

	s.logger.Info("Check scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop stops accepting jobs and waits for queued jobs to drain.
// When ctx expires first, in-flight jobs are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	cancel := s.cancel
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		s.logger.Info("Check scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		s.logger.Warn("Check scheduler stop timed out, in-flight jobs cancelled")
		return ctx.Err()
	}
}

// SubmitJob queues a job without blocking
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.submitted.Add(1)
		s.logger.Debug("Job submitted", zap.String("job_id", job.ID.String()))
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Submit creates and queues a job for referenceKey
func (s *Scheduler) Submit(referenceKey string) (*Job, error) {
	job := NewJob(referenceKey)
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// IsRunning reports whether the scheduler accepts jobs
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Stats returns current counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	running := s.isRunning
	queued := len(s.jobs)
	s.mu.Unlock()

	return Stats{
		Running:   running,
		Queued:    queued,
		Submitted: s.submitted.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
}

// worker processes jobs until the queue is closed
func (s *Scheduler) worker(ctx context.Context, jobs <-chan *Job, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for job := range jobs {
		s.processJob(ctx, job, workerID)
	}

	s.logger.Debug("Job channel closed", zap.Int("worker_id", workerID))
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start()
	s.logger.Debug("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
	)

	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	if err := s.executeSafely(jobCtx, job); err != nil {
		job.Fail(err.Error())
		s.failed.Add(1)
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}

	job.Complete()
	s.succeeded.Add(1)
	s.logger.Debug("Job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.Duration("duration", job.CompletedAt.Sub(*job.StartedAt)),
	)
}

// executeSafely converts an executor panic into a job failure
func (s *Scheduler) executeSafely(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrJobPanicked
			s.logger.Error("Job panicked",
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()
	return s.executor.Execute(ctx, job)
}
