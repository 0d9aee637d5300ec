package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// SaveBatchJob mirrors batch state from Redis into Postgres. The Redis
// hash stays authoritative while the batch is live; the row is what
// survives the hash TTL.
func (s *Store) SaveBatchJob(ctx context.Context, job *models.BatchJob) error {
	callIDs, err := json.Marshal(job.CallIDs)
	if err != nil {
		return fmt.Errorf("marshal batch call_ids %s: %w", job.ID, err)
	}
	types, err := json.Marshal(job.AnalysisTypes)
	if err != nil {
		return fmt.Errorf("marshal batch analysis_types %s: %w", job.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO batch_jobs
			(id, user_id, call_ids, analysis_types, priority, total_calls, completed_calls, status, callback_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			completed_calls = EXCLUDED.completed_calls,
			status = EXCLUDED.status`,
		job.ID, job.UserID, callIDs, types, string(job.Priority),
		job.TotalCalls, job.CompletedCalls, job.Status, job.CallbackURL, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save batch job %s: %w", job.ID, err)
	}
	return nil
}

// BatchJob loads one mirrored batch row.
func (s *Store) BatchJob(ctx context.Context, id string) (*models.BatchJob, error) {
	var job models.BatchJob
	var callIDs, types []byte
	var priority string
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, call_ids, analysis_types, priority, total_calls, completed_calls, status, callback_url, created_at
		FROM batch_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.UserID, &callIDs, &types, &priority,
		&job.TotalCalls, &job.CompletedCalls, &job.Status, &job.CallbackURL, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("batch job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load batch job %s: %w", id, err)
	}
	job.Priority = models.Priority(priority)

	if err := json.Unmarshal(callIDs, &job.CallIDs); err != nil {
		return nil, fmt.Errorf("decode batch call_ids %s: %w", id, err)
	}
	if err := json.Unmarshal(types, &job.AnalysisTypes); err != nil {
		return nil, fmt.Errorf("decode batch analysis_types %s: %w", id, err)
	}
	return &job, nil
}
