// Package queues decouples report persistence from knowledge-base indexing.
// Completed sessions are enqueued as indexing jobs; a worker drains the queue
// so a slow or unavailable embedding service never blocks the pipeline.
package queues

import (
	"context"
	"time"

	"github.com/google/uuid"

	renaerrors "github.com/renalabs/rena/pkg/errors"
)

// IndexJob asks the worker to (re-)index one session's report.
type IndexJob struct {
	ID         string    `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	UserID     string    `json:"user_id"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewIndexJob creates a job for the given session.
func NewIndexJob(userID string, sessionID uuid.UUID) *IndexJob {
	return &IndexJob{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is the indexing job queue. Dequeue returns (nil, nil) when no job
// became available within the wait window.
type Queue interface {
	Enqueue(ctx context.Context, job *IndexJob) error
	Dequeue(ctx context.Context, wait time.Duration) (*IndexJob, error)

	// Retry re-enqueues a failed job after its backoff delay.
	Retry(ctx context.Context, job *IndexJob, delay time.Duration) error

	// Bury moves a job to the dead-letter queue.
	Bury(ctx context.Context, job *IndexJob, cause error) error
}

// RetryPolicy defines retry behavior for failed indexing jobs.
type RetryPolicy struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Minute,
		BackoffFactor:  2.0,
	}
}

// CalculateBackoff returns the backoff duration for a given retry attempt.
func (p RetryPolicy) CalculateBackoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return p.InitialBackoff
	}
	backoff := p.InitialBackoff
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return backoff
}

// ShouldRetry reports whether a failed job should be re-enqueued. Permanent
// errors (bad input, missing report) go straight to the dead-letter queue.
func (p RetryPolicy) ShouldRetry(err error, retryCount int) bool {
	if retryCount >= p.MaxRetries {
		return false
	}
	return renaerrors.IsRetryable(err)
}
