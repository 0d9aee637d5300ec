package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// fakeAnalysisRedis backs the queue, batch hashes, the result channel,
// and the analysis cache in tests. BRPop is non-blocking: it pops from
// the first non-empty list or reports redis.Nil immediately.
type fakeAnalysisRedis struct {
	mu        sync.Mutex
	lists     map[string][]string
	hashes    map[string]map[string]string
	kv        map[string]string
	published []string
}

func newFakeAnalysisRedis() *fakeAnalysisRedis {
	return &fakeAnalysisRedis{
		lists:  map[string][]string{},
		hashes: map[string]map[string]string{},
		kv:     map[string]string{},
	}
}

func fieldValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func (f *fakeAnalysisRedis) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append([]string{fieldValue(v)}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeAnalysisRedis) BRPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		list := f.lists[key]
		if len(list) == 0 {
			continue
		}
		v := list[len(list)-1]
		f.lists[key] = list[:len(list)-1]
		return redis.NewStringSliceResult([]string{key, v}, nil)
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeAnalysisRedis) LLen(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeAnalysisRedis) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hashes[key][fieldValue(values[i])] = fieldValue(values[i+1])
	}
	return redis.NewIntResult(int64(len(values) / 2), nil)
}

func (f *fakeAnalysisRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeAnalysisRedis) HIncrBy(_ context.Context, key, field string, incr int64) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	var cur int64
	fmt.Sscan(f.hashes[key][field], &cur)
	cur += incr
	f.hashes[key][field] = fmt.Sprint(cur)
	return redis.NewIntResult(cur, nil)
}

func (f *fakeAnalysisRedis) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (f *fakeAnalysisRedis) Publish(_ context.Context, _ string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fieldValue(message))
	return redis.NewIntResult(1, nil)
}

func (f *fakeAnalysisRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeAnalysisRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = fieldValue(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeAnalysisRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.kv, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeAnalysisRedis) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func testTask(callID string, typ models.TaskType, priority models.Priority) *models.QueuedTask {
	return &models.QueuedTask{
		ID:        "task-" + callID + "-" + string(priority),
		CallID:    callID,
		Type:      typ,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
}

func TestDequeuePriorityOrder(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("c1", models.TaskSummary, models.PriorityLow)))
	require.NoError(t, q.Enqueue(ctx, testTask("c2", models.TaskSummary, models.PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, testTask("c3", models.TaskSummary, models.PriorityHigh)))

	order := make([]models.Priority, 0, 3)
	for i := 0; i < 3; i++ {
		task, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, task)
		order = append(order, task.Priority)
	}
	assert.Equal(t, []models.Priority{models.PriorityHigh, models.PriorityNormal, models.PriorityLow}, order)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, task, "empty queue reports no task, not an error")
}

func TestDequeueFIFOWithinPriority(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("first", models.TaskSummary, models.PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, testTask("second", models.TaskSummary, models.PriorityNormal)))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", task.CallID)

	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", task.CallID)
}

func TestEnqueueBounded(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 1, time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("c1", models.TaskSummary, models.PriorityNormal)))

	err := q.Enqueue(ctx, testTask("c2", models.TaskSummary, models.PriorityNormal))
	require.ErrorIs(t, err, ErrQueueFull)

	// The bound is per priority list.
	require.NoError(t, q.Enqueue(ctx, testTask("c3", models.TaskSummary, models.PriorityHigh)))
}

func TestEnqueueValidation(t *testing.T) {
	q := NewQueue(newFakeAnalysisRedis(), 10, time.Second)
	ctx := context.Background()

	err := q.Enqueue(ctx, &models.QueuedTask{ID: "t", CallID: "c", Type: "bogus", Priority: models.PriorityHigh})
	require.Error(t, err)

	err = q.Enqueue(ctx, &models.QueuedTask{ID: "t", CallID: "c", Type: models.TaskSummary, Priority: "urgent"})
	require.Error(t, err)
}

func TestQueueStats(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("c1", models.TaskSummary, models.PriorityHigh)))
	require.NoError(t, q.Enqueue(ctx, testTask("c2", models.TaskSummary, models.PriorityHigh)))
	require.NoError(t, q.Enqueue(ctx, testTask("c3", models.TaskSummary, models.PriorityLow)))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["high"])
	assert.Equal(t, int64(0), stats["normal"])
	assert.Equal(t, int64(1), stats["low"])
}
