package queues

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
)

// memQueue is an in-memory Queue for worker tests. Retried jobs become
// immediately available regardless of delay.
type memQueue struct {
	mu     sync.Mutex
	jobs   []*IndexJob
	buried []*IndexJob
	delays []time.Duration
}

func (q *memQueue) Enqueue(_ context.Context, job *IndexJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context, _ time.Duration) (*IndexJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memQueue) Retry(_ context.Context, job *IndexJob, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *memQueue) Bury(_ context.Context, job *IndexJob, _ error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buried = append(q.buried, job)
	return nil
}

func newTestWorker(q Queue, h Handler) *Worker {
	policy := RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
	}
	return NewWorker(q, h, policy, nil, logging.NewNopLogger())
}

func TestWorkerHandlesJob(t *testing.T) {
	q := &memQueue{}
	var handled []*IndexJob
	w := newTestWorker(q, func(_ context.Context, job *IndexJob) error {
		handled = append(handled, job)
		return nil
	})

	job := NewIndexJob("alice", uuid.New())
	require.NoError(t, q.Enqueue(context.Background(), job))
	require.NoError(t, w.RunOnce(context.Background()))

	require.Len(t, handled, 1)
	assert.Equal(t, job.ID, handled[0].ID)
	assert.Empty(t, q.jobs)
}

func TestWorkerRetriesRetryableError(t *testing.T) {
	q := &memQueue{}
	attempts := 0
	w := newTestWorker(q, func(_ context.Context, _ *IndexJob) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("embedding: %w", renaerrors.ErrServiceUnavailable)
		}
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), NewIndexJob("alice", uuid.New())))
	for i := 0; i < 3; i++ {
		require.NoError(t, w.RunOnce(context.Background()))
	}

	assert.Equal(t, 3, attempts)
	assert.Empty(t, q.buried)
	// Backoff grows between attempts.
	require.Len(t, q.delays, 2)
	assert.Greater(t, q.delays[1], q.delays[0])
}

func TestWorkerBuriesPermanentError(t *testing.T) {
	q := &memQueue{}
	w := newTestWorker(q, func(_ context.Context, _ *IndexJob) error {
		return errors.New("malformed report")
	})

	require.NoError(t, q.Enqueue(context.Background(), NewIndexJob("alice", uuid.New())))
	require.NoError(t, w.RunOnce(context.Background()))

	assert.Len(t, q.buried, 1)
	assert.Empty(t, q.jobs)
}

func TestWorkerBuriesAfterMaxRetries(t *testing.T) {
	q := &memQueue{}
	attempts := 0
	w := newTestWorker(q, func(_ context.Context, _ *IndexJob) error {
		attempts++
		return renaerrors.ErrTimeout
	})

	require.NoError(t, q.Enqueue(context.Background(), NewIndexJob("alice", uuid.New())))
	for i := 0; i < 4; i++ {
		require.NoError(t, w.RunOnce(context.Background()))
	}

	assert.Equal(t, 4, attempts)
	assert.Len(t, q.buried, 1)
	assert.Empty(t, q.jobs)
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, p.InitialBackoff, p.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, p.CalculateBackoff(1))
	assert.Equal(t, p.MaxBackoff, p.CalculateBackoff(20))
}

func TestRetryPolicyStopsAtMaxRetries(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.True(t, p.ShouldRetry(renaerrors.ErrServiceUnavailable, 0))
	assert.False(t, p.ShouldRetry(renaerrors.ErrServiceUnavailable, p.MaxRetries))
	assert.False(t, p.ShouldRetry(errors.New("permanent"), 0))
}
