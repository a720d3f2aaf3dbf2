package queues

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/renalabs/rena/pkg/logging"
)

// Handler processes one indexing job.
type Handler func(ctx context.Context, job *IndexJob) error

// Worker drains the indexing queue. Failed jobs are retried with backoff per
// the policy; jobs that exhaust their retries are buried.
type Worker struct {
	queue   Queue
	handle  Handler
	policy  RetryPolicy
	wait    time.Duration
	logger  logging.Logger
	handled *prometheus.CounterVec
}

// NewWorker creates an indexing worker. The registry may be nil to skip
// metric registration.
func NewWorker(queue Queue, handle Handler, policy RetryPolicy, registry prometheus.Registerer, logger logging.Logger) *Worker {
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rena",
		Subsystem: "indexing",
		Name:      "jobs_total",
		Help:      "Indexing jobs handled, by outcome.",
	}, []string{"outcome"})
	if registry != nil {
		registry.MustRegister(handled)
	}
	return &Worker{
		queue:   queue,
		handle:  handle,
		policy:  policy,
		wait:    2 * time.Second,
		logger:  logger.With(logging.F("component", "index_worker")),
		handled: handled,
	}
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Indexing worker started")
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("Indexing worker stopped")
			return err
		}
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("Queue error, backing off", logging.Err(err))
			select {
			case <-time.After(w.wait):
			case <-ctx.Done():
			}
		}
	}
}

// RunOnce dequeues and handles at most one job.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.queue.Dequeue(ctx, w.wait)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	if err := w.handle(ctx, job); err != nil {
		return w.dispose(ctx, job, err)
	}

	w.handled.WithLabelValues("ok").Inc()
	w.logger.Info("Indexing job completed",
		logging.F("job_id", job.ID),
		logging.F("session_id", job.SessionID.String()))
	return nil
}

// dispose routes a failed job to retry or the dead-letter queue.
func (w *Worker) dispose(ctx context.Context, job *IndexJob, cause error) error {
	if w.policy.ShouldRetry(cause, job.RetryCount) {
		delay := w.policy.CalculateBackoff(job.RetryCount)
		job.RetryCount++
		w.handled.WithLabelValues("retried").Inc()
		return w.queue.Retry(ctx, job, delay)
	}
	w.handled.WithLabelValues("buried").Inc()
	return w.queue.Bury(ctx, job, cause)
}
