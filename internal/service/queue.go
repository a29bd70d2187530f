package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/logger"
)

// JobExecutor runs the work a job carries and produces its result. The
// orchestrator injects the pipeline here so the queue stays ignorant of
// what jobs actually do.
type JobExecutor func(ctx context.Context, job *domain.Job) (*domain.Response, error)

// JobStore persists job records. *repository.JobRepository satisfies it;
// a nil store keeps the queue purely in-memory.
type JobStore interface {
	Save(ctx context.Context, job *domain.Job) error
}

// QueueConfig holds the worker pool knobs.
type QueueConfig struct {
	Workers  int
	MaxDepth int // per priority class
}

// QueueStats is a point-in-time snapshot of queue load.
type QueueStats struct {
	InteractiveDepth int `json:"interactive_depth"`
	BatchDepth       int `json:"batch_depth"`
	Running          int `json:"running"`
}

// JobQueue accepts jobs up to a bounded depth and runs them on a fixed
// worker pool. Interactive jobs are drained before batch jobs. The
// in-memory state map is authoritative; the store, when present, mirrors
// every transition for post-restart inspection.
type JobQueue struct {
	interactive chan *domain.Job
	batch       chan *domain.Job
	execute     JobExecutor
	store       JobStore
	logger      *logger.Logger

	mu      sync.Mutex
	jobs    map[string]*domain.Job
	running int

	wg   sync.WaitGroup
	stop context.CancelFunc
}

func NewJobQueue(execute JobExecutor, store JobStore, log *logger.Logger, cfg *QueueConfig) *JobQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	depth := cfg.MaxDepth
	if depth <= 0 {
		depth = 256
	}
	return &JobQueue{
		interactive: make(chan *domain.Job, depth),
		batch:       make(chan *domain.Job, depth),
		execute:     execute,
		store:       store,
		logger:      log,
		jobs:        make(map[string]*domain.Job),
	}
}

// Start launches the worker pool. Workers run until Stop is called or the
// parent context is cancelled.
func (q *JobQueue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}
	ctx, q.stop = context.WithCancel(ctx)
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.WithField(logger.FieldCount, workers).Info("Job queue started")
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (q *JobQueue) Stop() {
	if q.stop != nil {
		q.stop()
	}
	q.wg.Wait()
}

// Enqueue registers a job and places it on its priority lane. When the lane
// is full it fails immediately with domain.ErrQueueFull; nothing blocks the
// caller.
func (q *JobQueue) Enqueue(ctx context.Context, jobType domain.JobType, priority domain.Priority, params *domain.Request) (*domain.Job, error) {
	job := &domain.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Priority:  priority,
		State:     domain.JobStateQueued,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}

	lane := q.batch
	if priority == domain.PriorityInteractive {
		lane = q.interactive
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case lane <- job:
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s lane at capacity", domain.ErrQueueFull, priority)
	}

	q.persist(ctx, job)
	q.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID: job.ID,
		"type":            job.Type,
		"priority":        job.Priority,
	}).Info("Job enqueued")
	return job, nil
}

// Status returns the externally visible state of a job.
func (q *JobQueue) Status(id string) (*domain.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return job.Status(), nil
}

// Cancel moves a queued job to failed. Jobs that already started keep
// running; cancelling them is a no-op error so callers know the work will
// still complete.
func (q *JobQueue) Cancel(ctx context.Context, id string) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if job.State != domain.JobStateQueued {
		q.mu.Unlock()
		return fmt.Errorf("cannot cancel job in state %s", job.State)
	}
	now := time.Now().UTC()
	job.State = domain.JobStateFailed
	job.Error = domain.ErrCancelled.Error()
	job.CompletedAt = &now
	q.mu.Unlock()

	q.persist(ctx, job)
	q.log(ctx).WithField(logger.FieldJobID, id).Info("Job cancelled")
	return nil
}

// Stats reports current lane depths and running worker count.
func (q *JobQueue) Stats() QueueStats {
	q.mu.Lock()
	running := q.running
	q.mu.Unlock()
	return QueueStats{
		InteractiveDepth: len(q.interactive),
		BatchDepth:       len(q.batch),
		Running:          running,
	}
}

func (q *JobQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		// Drain interactive work before touching the batch lane.
		select {
		case job := <-q.interactive:
			q.run(ctx, job)
			continue
		default:
		}

		select {
		case job := <-q.interactive:
			q.run(ctx, job)
		case job := <-q.batch:
			q.run(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (q *JobQueue) run(ctx context.Context, job *domain.Job) {
	q.mu.Lock()
	if job.State != domain.JobStateQueued {
		// Cancelled while waiting in the lane.
		q.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.State = domain.JobStateRunning
	job.StartedAt = &now
	q.running++
	q.mu.Unlock()

	ctx = logger.SetJobID(ctx, job.ID)
	q.persist(ctx, job)
	log := q.log(ctx)
	log.WithField("type", job.Type).Info("Job started")

	start := time.Now()
	result, err := q.execute(ctx, job)

	q.mu.Lock()
	done := time.Now().UTC()
	job.CompletedAt = &done
	if err != nil {
		job.State = domain.JobStateFailed
		job.Error = err.Error()
	} else {
		job.State = domain.JobStateCompleted
		job.Result = result
	}
	q.running--
	q.mu.Unlock()

	q.persist(ctx, job)
	entry := log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).Warn("Job failed")
	} else {
		entry.Info("Job completed")
	}
}

func (q *JobQueue) persist(ctx context.Context, job *domain.Job) {
	if q.store == nil {
		return
	}
	q.mu.Lock()
	snapshot := *job
	q.mu.Unlock()
	if err := q.store.Save(ctx, &snapshot); err != nil {
		q.log(ctx).WithError(err).WithField(logger.FieldJobID, job.ID).Warn("Failed to persist job state")
	}
}

func (q *JobQueue) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return q.logger
}
