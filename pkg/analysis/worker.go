package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// resultPublisher is the slice of the Redis client the pool publishes
// results on.
type resultPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// WorkerPool claims tasks from the queue and runs them through the
// pipeline. Concurrency is bounded by a weighted semaphore so a burst of
// full analyses cannot saturate the LLM budget.
type WorkerPool struct {
	queue         *Queue
	pipeline      *Pipeline
	batches       *BatchManager // nil disables batch accounting
	publisher     resultPublisher
	resultChannel string

	workerCount   int
	taskTimeout   time.Duration
	stopTimeout   time.Duration
	maxRetries    int
	backoffBase   time.Duration
	sem           *semaphore.Weighted
	logger        *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorkerPool wires the pool from the pipeline configuration. publisher
// and batches may be nil.
func NewWorkerPool(queue *Queue, pipeline *Pipeline, batches *BatchManager, publisher resultPublisher, resultChannel string, cfg *config.PipelineConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}
	maxConcurrent := int64(cfg.MaxConcurrentAnalyses)
	if maxConcurrent <= 0 {
		maxConcurrent = int64(workerCount)
	}
	return &WorkerPool{
		queue:         queue,
		pipeline:      pipeline,
		batches:       batches,
		publisher:     publisher,
		resultChannel: resultChannel,
		workerCount:   workerCount,
		taskTimeout:   cfg.TaskTimeout,
		stopTimeout:   cfg.GracefulShutdownTimeout,
		maxRetries:    cfg.HighPriorityRetries,
		backoffBase:   cfg.RetryBackoffBase,
		sem:           semaphore.NewWeighted(maxConcurrent),
		logger:        logger.With("component", "analysis.workers"),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the worker loops.
func (w *WorkerPool) Start(ctx context.Context) {
	w.logger.Info("starting analysis workers", "count", w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop signals the loops and waits for in-flight tasks, up to the
// graceful shutdown timeout.
func (w *WorkerPool) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	timeout := w.stopTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		w.logger.Info("analysis workers stopped")
	case <-time.After(timeout):
		w.logger.Warn("analysis worker shutdown timed out", "timeout", timeout)
	}
}

func (w *WorkerPool) run(ctx context.Context, id int) {
	defer w.wg.Done()
	logger := w.logger.With("worker", id)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			logger.Error("dequeue failed", "error", err)
			select {
			case <-w.stopCh:
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		w.process(ctx, logger, task)
		w.sem.Release(1)
	}
}

func (w *WorkerPool) process(ctx context.Context, logger *slog.Logger, task *models.QueuedTask) {
	taskCtx := ctx
	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, w.taskTimeout)
		defer cancel()
	}

	started := time.Now()
	payload, err := w.pipeline.Handle(taskCtx, task)
	elapsed := time.Since(started)

	if err != nil {
		logger.Warn("task failed",
			"task_id", task.ID, "call_id", task.CallID, "type", task.Type,
			"retries", task.Retries, "elapsed", elapsed, "error", err)
		if w.maybeRetry(ctx, logger, task) {
			return
		}
		w.finish(ctx, logger, task, &models.TaskResult{
			TaskID:      task.ID,
			CallID:      task.CallID,
			Type:        task.Type,
			Status:      models.TaskStatusFailed,
			Error:       err.Error(),
			CompletedAt: time.Now(),
		})
		return
	}

	logger.Info("task completed",
		"task_id", task.ID, "call_id", task.CallID, "type", task.Type, "elapsed", elapsed)
	w.finish(ctx, logger, task, &models.TaskResult{
		TaskID:      task.ID,
		CallID:      task.CallID,
		Type:        task.Type,
		Status:      models.TaskStatusCompleted,
		Payload:     payload,
		CompletedAt: time.Now(),
	})
}

// maybeRetry re-enqueues failed high-priority work with exponential
// backoff, up to the configured retry budget. Lower priorities fail fast.
func (w *WorkerPool) maybeRetry(ctx context.Context, logger *slog.Logger, task *models.QueuedTask) bool {
	if task.Priority != models.PriorityHigh || task.Retries >= w.maxRetries {
		return false
	}

	backoff := w.backoffBase
	if backoff <= 0 {
		backoff = time.Second
	}
	backoff <<= task.Retries

	select {
	case <-time.After(backoff):
	case <-w.stopCh:
		return false
	case <-ctx.Done():
		return false
	}

	retry := *task
	retry.Retries = task.Retries + 1
	if err := w.queue.Enqueue(ctx, &retry); err != nil {
		logger.Error("retry enqueue failed", "task_id", task.ID, "error", err)
		return false
	}
	logger.Info("task requeued", "task_id", task.ID, "attempt", retry.Retries, "backoff", backoff)
	return true
}

// finish publishes the terminal result and settles batch accounting.
func (w *WorkerPool) finish(ctx context.Context, logger *slog.Logger, task *models.QueuedTask, result *models.TaskResult) {
	if w.publisher != nil && w.resultChannel != "" {
		raw, err := json.Marshal(result)
		if err == nil {
			err = w.publisher.Publish(ctx, w.resultChannel, raw).Err()
		}
		if err != nil {
			logger.Warn("result publish failed", "task_id", task.ID, "error", err)
		}
	}

	if w.batches == nil {
		return
	}
	batchID := task.Args[models.ArgBatchID]
	if batchID == "" {
		return
	}
	if err := w.batches.TaskCompleted(ctx, batchID); err != nil {
		logger.Warn("batch accounting failed", "task_id", task.ID, "batch_id", batchID, "error", err)
	}
}
