package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// ErrBatchNotFound is returned when no batch exists (or its TTL expired).
var ErrBatchNotFound = errors.New("batch not found")

// batchKeyPrefix namespaces the per-batch hashes.
const batchKeyPrefix = "batch:"

// batchRedis is the slice of the Redis client the batch manager needs.
type batchRedis interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// DurableStore mirrors batch state into Postgres so batches survive the
// Redis TTL. Nil skips mirroring.
type DurableStore interface {
	SaveBatchJob(ctx context.Context, job *models.BatchJob) error
}

// BatchManager tracks multi-call analysis jobs in Redis hashes with a
// finite TTL and fires the completion callback at least once.
type BatchManager struct {
	rdb             batchRedis
	queue           *Queue
	ttl             time.Duration
	http            *http.Client
	callbackRetries int
	durable         DurableStore
	logger          *slog.Logger
}

// SetDurableStore enables the Postgres mirror for batch state.
func (m *BatchManager) SetDurableStore(store DurableStore) { m.durable = store }

// NewBatchManager creates a manager. queue is used to enqueue child tasks.
func NewBatchManager(rdb batchRedis, queue *Queue, ttl time.Duration, callbackRetries int, logger *slog.Logger) *BatchManager {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BatchManager{
		rdb:             rdb,
		queue:           queue,
		ttl:             ttl,
		http:            &http.Client{Timeout: 10 * time.Second},
		callbackRetries: callbackRetries,
		logger:          logger.With("component", "analysis.batch"),
	}
}

func batchKey(id string) string { return batchKeyPrefix + id }

// Submit records the batch and enqueues one full_analysis task per member
// call at the requested priority. Child enqueues inherit queue
// backpressure; a partial failure is reported alongside the job.
func (m *BatchManager) Submit(ctx context.Context, userID string, callIDs []string, priority models.Priority, callbackURL string) (*models.BatchJob, error) {
	if len(callIDs) == 0 {
		return nil, fmt.Errorf("batch submit: no call ids")
	}
	if !priority.Valid() {
		priority = models.PriorityNormal
	}

	job := &models.BatchJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		CallIDs:       callIDs,
		AnalysisTypes: []models.TaskType{models.TaskFullAnalysis},
		Priority:      priority,
		TotalCalls:    len(callIDs),
		Status:        models.BatchStatusProcessing,
		CallbackURL:   callbackURL,
		CreatedAt:     time.Now(),
	}

	if err := m.write(ctx, job); err != nil {
		return nil, err
	}
	m.mirror(ctx, job)

	var enqueueErr error
	for _, callID := range callIDs {
		task := &models.QueuedTask{
			ID:        uuid.NewString(),
			CallID:    callID,
			Type:      models.TaskFullAnalysis,
			Priority:  priority,
			CreatedAt: time.Now(),
			Args: map[string]string{
				models.ArgBatchID: job.ID,
				models.ArgUserID:  userID,
			},
		}
		if err := m.queue.Enqueue(ctx, task); err != nil {
			enqueueErr = err
			m.logger.Warn("batch child enqueue failed", "batch_id", job.ID, "call_id", callID, "error", err)
		}
	}
	return job, enqueueErr
}

// Get loads the batch state.
func (m *BatchManager) Get(ctx context.Context, id string) (*models.BatchJob, error) {
	fields, err := m.rdb.HGetAll(ctx, batchKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("batch get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("batch %s: %w", id, ErrBatchNotFound)
	}
	return jobFromFields(fields)
}

// TaskCompleted records one finished child task. The counter increment is
// atomic, so each child bumps completed_calls exactly once; the worker
// that lands the final increment flips the status and fires the callback.
func (m *BatchManager) TaskCompleted(ctx context.Context, batchID string) error {
	completed, err := m.rdb.HIncrBy(ctx, batchKey(batchID), "completed", 1).Result()
	if err != nil {
		return fmt.Errorf("batch complete %s: %w", batchID, err)
	}

	job, err := m.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if int(completed) < job.TotalCalls {
		return nil
	}

	if err := m.rdb.HSet(ctx, batchKey(batchID), "status", models.BatchStatusCompleted).Err(); err != nil {
		return fmt.Errorf("batch finalize %s: %w", batchID, err)
	}
	m.logger.Info("batch completed", "batch_id", batchID, "total", job.TotalCalls)

	job.CompletedCalls = int(completed)
	job.Status = models.BatchStatusCompleted
	m.mirror(ctx, job)

	if job.CallbackURL != "" {
		m.fireCallback(ctx, job)
	}
	return nil
}

// mirror copies the batch row to durable storage; failures are logged,
// the Redis hash stays authoritative.
func (m *BatchManager) mirror(ctx context.Context, job *models.BatchJob) {
	if m.durable == nil {
		return
	}
	if err := m.durable.SaveBatchJob(ctx, job); err != nil {
		m.logger.Warn("batch mirror failed", "batch_id", job.ID, "error", err)
	}
}

// fireCallback delivers the completion notification at least once,
// retrying transport failures.
func (m *BatchManager) fireCallback(ctx context.Context, job *models.BatchJob) {
	body, err := json.Marshal(job)
	if err != nil {
		m.logger.Error("batch callback marshal failed", "batch_id", job.ID, "error", err)
		return
	}

	attempts := m.callbackRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
		if err != nil {
			m.logger.Error("batch callback request build failed", "batch_id", job.ID, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.http.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode < 300 {
				return
			}
			err = fmt.Errorf("callback status %d", resp.StatusCode)
		}
		m.logger.Warn("batch callback delivery failed",
			"batch_id", job.ID, "attempt", attempt, "error", err)
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
}

func (m *BatchManager) write(ctx context.Context, job *models.BatchJob) error {
	callIDs, _ := json.Marshal(job.CallIDs)
	types, _ := json.Marshal(job.AnalysisTypes)

	key := batchKey(job.ID)
	err := m.rdb.HSet(ctx, key,
		"id", job.ID,
		"user_id", job.UserID,
		"call_ids", callIDs,
		"analysis_types", types,
		"priority", string(job.Priority),
		"total", job.TotalCalls,
		"completed", job.CompletedCalls,
		"status", job.Status,
		"callback_url", job.CallbackURL,
		"created_at", job.CreatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("batch write %s: %w", job.ID, err)
	}
	if err := m.rdb.Expire(ctx, key, m.ttl).Err(); err != nil {
		return fmt.Errorf("batch expire %s: %w", job.ID, err)
	}
	return nil
}

func jobFromFields(fields map[string]string) (*models.BatchJob, error) {
	job := &models.BatchJob{
		ID:          fields["id"],
		UserID:      fields["user_id"],
		Priority:    models.Priority(fields["priority"]),
		Status:      fields["status"],
		CallbackURL: fields["callback_url"],
	}
	if raw := fields["call_ids"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.CallIDs); err != nil {
			return nil, fmt.Errorf("batch call_ids corrupt: %w", err)
		}
	}
	if raw := fields["analysis_types"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.AnalysisTypes); err != nil {
			return nil, fmt.Errorf("batch analysis_types corrupt: %w", err)
		}
	}
	if raw := fields["total"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("batch total corrupt: %w", err)
		}
		job.TotalCalls = n
	}
	if raw := fields["completed"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("batch completed corrupt: %w", err)
		}
		job.CompletedCalls = n
	}
	if raw := fields["created_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			job.CreatedAt = ts
		}
	}
	return job, nil
}
