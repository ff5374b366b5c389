package queue

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerPool runs queued workflows on a fixed set of worker goroutines.
// Jobs stay in the pool's registry after completion so callers can poll
// their outcome.
type WorkerPool struct {
	config Config
	runner WorkflowRunner
	logger *slog.Logger

	jobs   chan *Job
	wg     sync.WaitGroup
	stopCh chan struct{}

	mu       sync.RWMutex
	registry map[string]*Job
	cancels  map[string]context.CancelFunc
	active   int
	started  bool
}

// NewWorkerPool creates a pool over the given workflow runner.
func NewWorkerPool(cfg Config, runner WorkflowRunner) *WorkerPool {
	return &WorkerPool{
		config:   cfg,
		runner:   runner,
		logger:   slog.With("component", "worker_pool"),
		jobs:     make(chan *Job, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		registry: make(map[string]*Job),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start spawns the worker goroutines. Safe to call more than once;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		p.logger.Warn("worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool", "worker_count", p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Stop drains the pool gracefully: no new jobs are accepted, running jobs
// finish, queued jobs left behind are marked cancelled.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.logger.Info("stopping worker pool")
	close(p.stopCh)
	p.wg.Wait()

	// Anything still buffered never ran.
	for {
		select {
		case job := <-p.jobs:
			p.update(job.ID, func(j *Job) {
				j.Status = JobCancelled
				j.Error = "pool stopped before execution"
			})
		default:
			p.logger.Info("worker pool stopped")
			return
		}
	}
}

// Enqueue queues a workflow for a problem description.
func (p *WorkerPool) Enqueue(description string) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, ErrNotStarted
	}

	job := &Job{
		ID:          "job-" + uuid.NewString()[:8],
		Description: description,
		Status:      JobQueued,
		EnqueuedAt:  time.Now().UTC(),
	}
	select {
	case p.jobs <- job:
		p.registry[job.ID] = job
		return p.snapshot(job), nil
	default:
		return nil, ErrQueueFull
	}
}

// Job returns a snapshot of the job with the given ID.
func (p *WorkerPool) Job(jobID string) (*Job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.registry[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return p.snapshot(job), nil
}

// Jobs returns snapshots of every known job, newest first.
func (p *WorkerPool) Jobs() []*Job {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Job, 0, len(p.registry))
	for _, job := range p.registry {
		out = append(out, p.snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.After(out[j].EnqueuedAt)
	})
	return out
}

// Cancel aborts a running job's context. Returns true if the job was
// running on this pool.
func (p *WorkerPool) Cancel(jobID string) bool {
	p.mu.RLock()
	cancel, ok := p.cancels[jobID]
	p.mu.RUnlock()
	if ok {
		cancel()
	}
	return ok
}

// Health reports the current pool state.
func (p *WorkerPool) Health() PoolHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PoolHealth{
		Started:      p.started,
		TotalWorkers: p.config.WorkerCount,
		ActiveJobs:   p.active,
		QueueDepth:   len(p.jobs),
		QueueSize:    p.config.QueueSize,
	}
}

func (p *WorkerPool) runWorker(ctx context.Context, index int) {
	defer p.wg.Done()
	logger := p.logger.With("worker", index)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.process(ctx, logger, job)
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, logger *slog.Logger, job *Job) {
	jobCtx, cancel := context.WithTimeout(ctx, p.config.WorkflowTimeout)
	defer cancel()

	p.mu.Lock()
	p.cancels[job.ID] = cancel
	p.active++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.cancels, job.ID)
		p.active--
		p.mu.Unlock()
	}()

	started := time.Now().UTC()
	p.update(job.ID, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &started
	})
	logger.Info("workflow started", "job_id", job.ID)

	incident, verification, err := p.runner.RunFullWorkflow(
		jobCtx, job.Description, p.config.VerifyMaxAttempts, p.config.VerifyInterval)

	completed := time.Now().UTC()
	p.update(job.ID, func(j *Job) {
		j.Incident = incident
		j.Verification = verification
		j.CompletedAt = &completed
		switch {
		case err == nil:
			j.Status = JobCompleted
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			j.Status = JobCancelled
			j.Error = err.Error()
		default:
			j.Status = JobFailed
			j.Error = err.Error()
		}
	})

	if err != nil {
		logger.Warn("workflow finished with error", "job_id", job.ID, "error", err)
	} else {
		logger.Info("workflow completed", "job_id", job.ID,
			"duration", completed.Sub(started).String())
	}
}

func (p *WorkerPool) update(jobID string, fn func(*Job)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.registry[jobID]; ok {
		fn(job)
	}
}

// snapshot copies a job for safe handoff outside the lock. Caller must hold
// at least a read lock.
func (p *WorkerPool) snapshot(job *Job) *Job {
	copied := *job
	return &copied
}
