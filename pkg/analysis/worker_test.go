package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

func testPipelineConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		WorkerCount:             1,
		MaxConcurrentAnalyses:   2,
		TaskTimeout:             5 * time.Second,
		GracefulShutdownTimeout: 5 * time.Second,
		HighPriorityRetries:     1,
		RetryBackoffBase:        time.Millisecond,
	}
}

func (f *fakeAnalysisRedis) lastPublished(t *testing.T) *models.TaskResult {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.published)
	var result models.TaskResult
	require.NoError(t, json.Unmarshal([]byte(f.published[len(f.published)-1]), &result))
	return &result
}

func TestWorkerPoolProcessesTask(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	source := &fakeCallSource{record: loanCallRecord()}
	store := &fakeResultStore{}
	p := newTestPipeline(source, store, nil)

	pool := NewWorkerPool(q, p, nil, rdb, "analysis_results", testPipelineConfig(), nil)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("call-loan-1", models.TaskContentAnalysis, models.PriorityNormal)))

	pool.Start(ctx)
	require.Eventually(t, func() bool { return rdb.publishedCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	pool.Stop()

	result := rdb.lastPublished(t)
	assert.Equal(t, models.TaskStatusCompleted, result.Status)
	assert.Equal(t, "call-loan-1", result.CallID)
	assert.Equal(t, models.TaskContentAnalysis, result.Type)
	assert.Equal(t, models.IntentLoanOffer, result.Payload["category"])
}

func TestWorkerPoolRetriesHighPriority(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	source := &fakeCallSource{err: errors.New("record unavailable")}
	p := newTestPipeline(source, nil, nil)

	pool := NewWorkerPool(q, p, nil, rdb, "analysis_results", testPipelineConfig(), nil)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("call-gone", models.TaskSummary, models.PriorityHigh)))

	pool.Start(ctx)
	require.Eventually(t, func() bool { return rdb.publishedCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	pool.Stop()

	// Initial attempt plus one retry, then a terminal failure result.
	assert.Equal(t, 2, source.loadCount())
	result := rdb.lastPublished(t)
	assert.Equal(t, models.TaskStatusFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestWorkerPoolFailsNormalPriorityFast(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	source := &fakeCallSource{err: errors.New("record unavailable")}
	p := newTestPipeline(source, nil, nil)

	pool := NewWorkerPool(q, p, nil, rdb, "analysis_results", testPipelineConfig(), nil)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testTask("call-gone", models.TaskSummary, models.PriorityNormal)))

	pool.Start(ctx)
	require.Eventually(t, func() bool { return rdb.publishedCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	pool.Stop()

	assert.Equal(t, 1, source.loadCount(), "only high priority tasks retry")
	assert.Equal(t, models.TaskStatusFailed, rdb.lastPublished(t).Status)
}

func TestWorkerPoolSettlesBatch(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	source := &fakeCallSource{record: loanCallRecord()}
	p := newTestPipeline(source, nil, nil)
	batches := NewBatchManager(rdb, q, time.Hour, 0, nil)
	ctx := context.Background()

	job, err := batches.Submit(ctx, "user-1", []string{"call-loan-1"}, models.PriorityNormal, "")
	require.NoError(t, err)

	pool := NewWorkerPool(q, p, batches, rdb, "analysis_results", testPipelineConfig(), nil)
	pool.Start(ctx)
	require.Eventually(t, func() bool {
		got, err := batches.Get(ctx, job.ID)
		return err == nil && got.Status == models.BatchStatusCompleted
	}, 3*time.Second, 10*time.Millisecond)
	pool.Stop()

	final, err := batches.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.CompletedCalls)
}

func TestWorkerPoolStopIsIdempotent(t *testing.T) {
	rdb := newFakeAnalysisRedis()
	q := NewQueue(rdb, 100, time.Second)
	p := newTestPipeline(&fakeCallSource{record: loanCallRecord()}, nil, nil)

	pool := NewWorkerPool(q, p, nil, rdb, "", testPipelineConfig(), nil)
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()
}
