// Package analysis is the post-call pipeline: a Redis-backed priority
// queue, a bounded worker pool, fan-out analyses with per-type caching,
// and batch-job tracking.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// ErrQueueFull is returned when a priority list is at its configured
// bound. Batch enqueues may partial-fail with it.
var ErrQueueFull = errors.New("analysis queue full")

// queueKeyPrefix namespaces the three priority lists.
const queueKeyPrefix = "analysis_tasks:"

// queueKeys in drain order: BRPOP pops from the first non-empty list, so
// high preempts normal preempts low.
var queueKeys = []string{
	queueKeyPrefix + string(models.PriorityHigh),
	queueKeyPrefix + string(models.PriorityNormal),
	queueKeyPrefix + string(models.PriorityLow),
}

func queueKey(p models.Priority) string { return queueKeyPrefix + string(p) }

// queueRedis is the slice of the Redis client the queue needs.
type queueRedis interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Queue is the prioritized task queue. FIFO within a priority level.
type Queue struct {
	rdb          queueRedis
	maxLen       int64
	blockTimeout time.Duration
}

// NewQueue creates a queue bounded at maxLen entries per priority list.
func NewQueue(rdb queueRedis, maxLen int64, blockTimeout time.Duration) *Queue {
	if blockTimeout <= 0 {
		blockTimeout = 2 * time.Second
	}
	return &Queue{rdb: rdb, maxLen: maxLen, blockTimeout: blockTimeout}
}

// Enqueue serializes the task onto its priority list. Tasks beyond the
// configured bound are rejected with ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, task *models.QueuedTask) error {
	if !task.Type.Valid() {
		return fmt.Errorf("enqueue: unknown task type %q", task.Type)
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("enqueue: unknown priority %q", task.Priority)
	}

	key := queueKey(task.Priority)
	if q.maxLen > 0 {
		length, err := q.rdb.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("enqueue llen %s: %w", key, err)
		}
		if length >= q.maxLen {
			return fmt.Errorf("enqueue %s: %w", key, ErrQueueFull)
		}
	}

	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("enqueue marshal: %w", err)
	}
	if err := q.rdb.LPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue lpush %s: %w", key, err)
	}
	return nil
}

// Dequeue blocks up to the configured timeout and claims the next task,
// high priority first. A timeout returns (nil, nil).
func (q *Queue) Dequeue(ctx context.Context) (*models.QueuedTask, error) {
	res, err := q.rdb.BRPop(ctx, q.blockTimeout, queueKeys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue brpop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue brpop: unexpected reply of %d elements", len(res))
	}

	var task models.QueuedTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("dequeue unmarshal: %w", err)
	}
	return &task, nil
}

// Stats returns the current length of each priority list.
func (q *Queue) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(queueKeys))
	for _, p := range []models.Priority{models.PriorityHigh, models.PriorityNormal, models.PriorityLow} {
		length, err := q.rdb.LLen(ctx, queueKey(p)).Result()
		if err != nil {
			return nil, fmt.Errorf("queue stats %s: %w", p, err)
		}
		stats[string(p)] = length
	}
	return stats, nil
}
