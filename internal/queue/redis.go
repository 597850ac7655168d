package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-api/pkg/memorydb"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue is a Redis list backed queue. LPUSH on publish, BRPOP on
// consume, so delivery is FIFO per list and a popped job belongs to
// exactly one consumer.
type RedisQueue struct {
	redis  *memorydb.RedisClient
	name   string
	logger *zap.Logger
}

// NewRedisQueue creates a queue on the named Redis list. The name must
// match between api and worker processes.
func NewRedisQueue(client *memorydb.RedisClient, name string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		redis:  client,
		name:   name,
		logger: logger,
	}
}

// Publish appends a job to the queue. Returns ErrUnavailable when Redis
// cannot be reached; the job is durably accepted once this returns nil.
func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	if err := q.redis.LPush(ctx, q.name, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q.logger.Info("job published",
		zap.String("job_id", job.JobID),
		zap.Int64("bill_id", job.BillID),
		zap.Int("attempt", job.Attempt),
	)

	return nil
}

// Consume blocks up to timeout for the next job. (nil, nil) means the
// timeout elapsed with an empty queue. A payload that cannot be decoded is
// logged and skipped rather than failing the loop; it has already been
// popped and cannot be handed to another consumer.
func (q *RedisQueue) Consume(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.redis.BRPop(ctx, timeout, q.name)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	// BRPOP returns [key, value]
	if len(result) != 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("discarding malformed job payload", zap.Error(err))
		return nil, nil
	}

	return &job, nil
}
