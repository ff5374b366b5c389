// Package queue runs diagnostic workflows asynchronously on a bounded
// in-memory worker pool.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/oncallops/runbookd/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the job buffer is at capacity.
	ErrQueueFull = errors.New("queue full")

	// ErrNotStarted indicates the pool has not been started.
	ErrNotStarted = errors.New("worker pool not started")

	// ErrJobNotFound indicates no job exists with the given ID.
	ErrJobNotFound = errors.New("job not found")
)

// JobStatus tracks a job through the queue.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is one queued workflow run. Fields past Description are filled in by
// the worker as the job progresses; read them through the pool's Job method,
// which returns a consistent snapshot.
type Job struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      JobStatus `json:"status"`

	Incident     *models.Incident           `json:"incident,omitempty"`
	Verification *models.VerificationResult `json:"verification,omitempty"`
	Error        string                     `json:"error,omitempty"`

	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WorkflowRunner executes one full diagnostic workflow. Satisfied by the
// orchestrator.
type WorkflowRunner interface {
	RunFullWorkflow(ctx context.Context, description string, verifyMaxAttempts int, verifyInterval time.Duration) (*models.Incident, *models.VerificationResult, error)
}

// Config controls pool sizing and per-workflow limits.
type Config struct {
	WorkerCount       int
	QueueSize         int
	WorkflowTimeout   time.Duration
	VerifyMaxAttempts int
	VerifyInterval    time.Duration
}

// DefaultConfig returns the built-in pool defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:       3,
		QueueSize:         32,
		WorkflowTimeout:   5 * time.Minute,
		VerifyMaxAttempts: 3,
		VerifyInterval:    30 * time.Second,
	}
}

// PoolHealth reports the pool's current state.
type PoolHealth struct {
	Started      bool `json:"started"`
	TotalWorkers int  `json:"total_workers"`
	ActiveJobs   int  `json:"active_jobs"`
	QueueDepth   int  `json:"queue_depth"`
	QueueSize    int  `json:"queue_size"`
}
