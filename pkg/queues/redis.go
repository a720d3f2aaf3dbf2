package queues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/renalabs/rena/pkg/logging"
)

// Redis key layout. The main queue is a list consumed with BLPOP; delayed
// retries sit in a sorted set scored by their ready time.
const (
	keyQueue   = "rena:index:queue"
	keyDelayed = "rena:index:delayed"
	keyDLQ     = "rena:index:dlq"
)

// RedisQueue implements Queue on Redis lists and sorted sets.
type RedisQueue struct {
	client *redis.Client
	logger logging.Logger
}

// NewRedisQueue creates a Redis-backed indexing queue.
func NewRedisQueue(client *redis.Client, logger logging.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		logger: logger.With(logging.F("component", "index_queue")),
	}
}

// Ping verifies the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue pushes a job onto the main queue.
func (q *RedisQueue) Enqueue(ctx context.Context, job *IndexJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, keyQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.logger.Debug("Indexing job enqueued",
		logging.F("job_id", job.ID),
		logging.F("session_id", job.SessionID.String()))
	return nil
}

// Dequeue blocks up to wait for a job, first promoting any delayed retries
// whose backoff has elapsed. Returns (nil, nil) on an empty queue.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*IndexJob, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	res, err := q.client.BLPop(ctx, wait, keyQueue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of length %d", len(res))
	}

	var job IndexJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Retry schedules the job to re-enter the main queue after delay.
func (q *RedisQueue) Retry(ctx context.Context, job *IndexJob, delay time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	readyAt := time.Now().Add(delay)
	if err := q.client.ZAdd(ctx, keyDelayed, redis.Z{
		Score:  float64(readyAt.UnixNano()),
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	q.logger.Info("Indexing job scheduled for retry",
		logging.F("job_id", job.ID),
		logging.F("retry_count", job.RetryCount),
		logging.F("delay", delay))
	return nil
}

// Bury moves the job to the dead-letter queue with its final error attached.
func (q *RedisQueue) Bury(ctx context.Context, job *IndexJob, cause error) error {
	entry := struct {
		Job      *IndexJob `json:"job"`
		Error    string    `json:"error"`
		BuriedAt time.Time `json:"buried_at"`
	}{Job: job, BuriedAt: time.Now().UTC()}
	if cause != nil {
		entry.Error = cause.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter entry: %w", err)
	}
	if err := q.client.RPush(ctx, keyDLQ, data).Err(); err != nil {
		return fmt.Errorf("failed to bury job: %w", err)
	}
	q.logger.Error("Indexing job buried",
		logging.F("job_id", job.ID),
		logging.F("session_id", job.SessionID.String()),
		logging.Err(cause))
	return nil
}

// promoteDue moves delayed jobs whose backoff has elapsed back onto the main
// queue.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().UnixNano())
	due, err := q.client.ZRangeByScore(ctx, keyDelayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, keyDelayed, member)
		pipe.RPush(ctx, keyQueue, member)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to promote delayed job: %w", err)
		}
	}
	return nil
}
