package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// SaveCallRecord upserts one completed call with its transcript.
func (s *Store) SaveCallRecord(ctx context.Context, record *models.CallRecord) error {
	transcript, err := json.Marshal(record.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript %s: %w", record.CallID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO call_records
			(call_id, user_id, caller_fingerprint, started_at, ended_at, end_reason, final_stage, transcript)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (call_id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			end_reason = EXCLUDED.end_reason,
			final_stage = EXCLUDED.final_stage,
			transcript = EXCLUDED.transcript`,
		record.CallID, record.UserID, record.CallerFingerprint,
		record.StartedAt, record.EndedAt, record.EndReason, record.FinalStage, transcript,
	)
	if err != nil {
		return fmt.Errorf("save call record %s: %w", record.CallID, err)
	}
	return nil
}

// CallRecord loads one call with its transcript.
func (s *Store) CallRecord(ctx context.Context, callID string) (*models.CallRecord, error) {
	var record models.CallRecord
	var transcript []byte
	err := s.pool.QueryRow(ctx, `
		SELECT call_id, user_id, caller_fingerprint, started_at, ended_at, end_reason, final_stage, transcript
		FROM call_records WHERE call_id = $1`, callID,
	).Scan(&record.CallID, &record.UserID, &record.CallerFingerprint,
		&record.StartedAt, &record.EndedAt, &record.EndReason, &record.FinalStage, &transcript)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("call record %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load call record %s: %w", callID, err)
	}

	if err := json.Unmarshal(transcript, &record.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", callID, err)
	}
	return &record, nil
}

// SaveAnalysisResult upserts one analysis payload for a call.
func (s *Store) SaveAnalysisResult(ctx context.Context, callID string, typ models.TaskType, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analysis payload %s/%s: %w", callID, typ, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analysis_results (call_id, analysis_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (call_id, analysis_type) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = now()`,
		callID, string(typ), raw,
	)
	if err != nil {
		return fmt.Errorf("save analysis result %s/%s: %w", callID, typ, err)
	}
	return nil
}

// AnalysisResults returns every stored analysis payload for a call, keyed
// by analysis type.
func (s *Store) AnalysisResults(ctx context.Context, callID string) (map[string]map[string]any, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT analysis_type, payload FROM analysis_results WHERE call_id = $1`, callID)
	if err != nil {
		return nil, fmt.Errorf("load analysis results %s: %w", callID, err)
	}
	defer rows.Close()

	out := map[string]map[string]any{}
	for rows.Next() {
		var typ string
		var raw []byte
		if err := rows.Scan(&typ, &raw); err != nil {
			return nil, fmt.Errorf("scan analysis result %s: %w", callID, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode analysis result %s/%s: %w", callID, typ, err)
		}
		out[typ] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis results %s: %w", callID, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("analysis results %s: %w", callID, ErrNotFound)
	}
	return out, nil
}
