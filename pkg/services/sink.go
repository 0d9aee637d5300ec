package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/halton/ai-answer-ninja-sub000/pkg/analysis"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// CallEndSink persists completed calls and schedules their post-call
// analysis. It sits behind the engine's end-of-call hook.
type CallEndSink struct {
	store  *Store
	queue  *analysis.Queue // nil skips scheduling
	logger *slog.Logger
}

// NewCallEndSink wires the sink.
func NewCallEndSink(store *Store, queue *analysis.Queue, logger *slog.Logger) *CallEndSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallEndSink{
		store:  store,
		queue:  queue,
		logger: logger.With("component", "call-end-sink"),
	}
}

// OnCallEnd saves the call record and enqueues a full analysis. Failures
// are logged, never propagated; the call is already over.
func (s *CallEndSink) OnCallEnd(ctx context.Context, summary *models.CallSummary, state *models.DialogueState) {
	record := &models.CallRecord{
		CallID:            summary.CallID,
		UserID:            summary.UserID,
		CallerFingerprint: state.CallerFingerprint,
		StartedAt:         summary.StartedAt,
		EndedAt:           summary.EndedAt,
		EndReason:         summary.EndReason,
		FinalStage:        summary.FinalStage,
		Transcript:        state.Turns,
	}
	if err := s.store.SaveCallRecord(ctx, record); err != nil {
		s.logger.Error("call record persistence failed", "call_id", summary.CallID, "error", err)
		return
	}

	if s.queue == nil {
		return
	}
	task := &models.QueuedTask{
		ID:        uuid.NewString(),
		CallID:    summary.CallID,
		Type:      models.TaskFullAnalysis,
		Priority:  models.PriorityNormal,
		CreatedAt: time.Now(),
		Args:      map[string]string{models.ArgUserID: summary.UserID},
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Warn("post-call analysis enqueue failed", "call_id", summary.CallID, "error", err)
		return
	}
	s.logger.Info("post-call analysis scheduled", "call_id", summary.CallID, "task_id", task.ID)
}
