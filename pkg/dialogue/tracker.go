// Package dialogue maintains the per-call DialogueState and the stage
// state machine driving the conversation.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

var (
	// ErrStateClosed is returned for operations on an ended call.
	ErrStateClosed = errors.New("dialogue state closed")
	// ErrNotFound is returned when no state exists for a call id.
	ErrNotFound = errors.New("dialogue state not found")
)

// SnapshotPrefix is the Redis key namespace for mirrored state snapshots.
const SnapshotPrefix = "dialogue_state"

// TurnUpdate carries everything recorded for one turn.
type TurnUpdate struct {
	Speaker           models.Speaker
	Text              string
	Intent            string
	IntentConfidence  float64
	Emotion           string
	EmotionConfidence float64
	LatencyMS         int64
	CacheHit          bool
	Strategy          models.Strategy
}

// callEntry serializes all access to one call's state. Per-key locking;
// the tracker-level lock only guards the map itself.
type callEntry struct {
	mu     sync.Mutex
	state  *models.DialogueState
	closed bool
}

// Tracker owns every active DialogueState.
type Tracker struct {
	mu    sync.RWMutex
	calls map[string]*callEntry

	// snapshots mirrors state to Redis so other processes can read it;
	// nil disables mirroring. Writes are best-effort.
	snapshots *cache.Cache[models.DialogueState]
	logger    *slog.Logger
}

// NewTracker creates a tracker. snapshots may be nil.
func NewTracker(snapshots *cache.Cache[models.DialogueState], logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		calls:     make(map[string]*callEntry),
		snapshots: snapshots,
		logger:    logger.With("component", "dialogue.tracker"),
	}
}

// ActiveCalls returns the number of live, un-ended calls.
func (t *Tracker) ActiveCalls() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.calls {
		if !e.closed {
			n++
		}
	}
	return n
}

// GetOrCreate returns the state for callID, creating it on first use.
// Idempotent: repeated calls with the same id return the same state.
func (t *Tracker) GetOrCreate(ctx context.Context, callID, userID, callerFingerprint string) (*models.DialogueState, error) {
	if callID == "" {
		return nil, fmt.Errorf("dialogue: call id must not be empty")
	}

	t.mu.Lock()
	entry, ok := t.calls[callID]
	if !ok {
		entry = &callEntry{state: &models.DialogueState{
			CallID:            callID,
			UserID:            userID,
			CallerFingerprint: callerFingerprint,
			Stage:             models.StageInitial,
			StartedAt:         time.Now(),
		}}
		t.calls[callID] = entry
	}
	t.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, fmt.Errorf("get_or_create %s: %w", callID, ErrStateClosed)
	}
	if !ok {
		t.mirror(ctx, entry.state)
	}
	return entry.state.Clone(), nil
}

// Update appends a TurnRecord, advances histories, applies the stage
// transition for caller turns, and extracts at most one key point.
func (t *Tracker) Update(ctx context.Context, callID string, upd TurnUpdate) (*models.DialogueState, error) {
	entry, err := t.entry(callID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, fmt.Errorf("update %s: %w", callID, ErrStateClosed)
	}

	state := entry.state
	state.Turns = append(state.Turns, models.TurnRecord{
		Speaker:           upd.Speaker,
		Text:              upd.Text,
		Timestamp:         time.Now(),
		Intent:            upd.Intent,
		IntentConfidence:  upd.IntentConfidence,
		Emotion:           upd.Emotion,
		EmotionConfidence: upd.EmotionConfidence,
		LatencyMS:         upd.LatencyMS,
		CacheHit:          upd.CacheHit,
		Strategy:          upd.Strategy,
	})
	state.TurnCount = len(state.Turns)

	if upd.Speaker == models.SpeakerCaller {
		state.IntentHistory = append(state.IntentHistory, upd.Intent)
		state.EmotionHistory = append(state.EmotionHistory, upd.Emotion)

		trigger, next := classifyAndApply(state, upd.Text, upd.Intent, upd.Emotion)
		if next != state.Stage {
			t.logger.Debug("stage transition",
				"call_id", callID, "from", state.Stage, "to", next, "trigger", trigger)
			state.Stage = next
			state.StageEnteredTurn = state.CallerTurns()
		}

		if kp := extractKeyPoint(upd.Text, upd.Intent); kp != "" {
			state.KeyPoints = append(state.KeyPoints, kp)
		}
	}

	t.mirror(ctx, state)
	return state.Clone(), nil
}

// Snapshot returns a read-only copy of the state for callID.
func (t *Tracker) Snapshot(ctx context.Context, callID string) (*models.DialogueState, error) {
	t.mu.RLock()
	entry, ok := t.calls[callID]
	t.mu.RUnlock()
	if ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.state.Clone(), nil
	}

	// Not local to this process; fall back to the mirrored snapshot.
	if t.snapshots != nil {
		mirrored, found, err := t.snapshots.Get(ctx, callID)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", callID, err)
		}
		if found {
			return &mirrored, nil
		}
	}
	return nil, fmt.Errorf("snapshot %s: %w", callID, ErrNotFound)
}

// End closes the call and returns its summary. The state becomes
// unavailable to Update afterwards.
func (t *Tracker) End(ctx context.Context, callID, reason string) (*models.CallSummary, error) {
	entry, err := t.entry(callID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, fmt.Errorf("end %s: %w", callID, ErrStateClosed)
	}
	entry.closed = true

	state := entry.state
	now := time.Now()
	summary := &models.CallSummary{
		CallID:          state.CallID,
		UserID:          state.UserID,
		EndReason:       reason,
		FinalStage:      state.Stage,
		TurnCount:       state.TurnCount,
		CallerTurns:     state.CallerTurns(),
		DurationSeconds: state.DurationSeconds(now),
		KeyPoints:       append([]string(nil), state.KeyPoints...),
		StartedAt:       state.StartedAt,
		EndedAt:         now,
	}

	if t.snapshots != nil {
		if err := t.snapshots.Delete(ctx, callID); err != nil {
			t.logger.Warn("failed to drop state snapshot", "call_id", callID, "error", err)
		}
	}

	t.logger.Info("call ended",
		"call_id", callID,
		"reason", reason,
		"final_stage", state.Stage,
		"turns", state.TurnCount,
		"duration_seconds", summary.DurationSeconds)
	return summary, nil
}

func (t *Tracker) entry(callID string) (*callEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.calls[callID]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	return entry, nil
}

// mirror writes the snapshot to Redis. Mirroring is best-effort; a failed
// write never fails the turn.
func (t *Tracker) mirror(ctx context.Context, state *models.DialogueState) {
	if t.snapshots == nil {
		return
	}
	if err := t.snapshots.Set(ctx, state.CallID, *state.Clone()); err != nil {
		t.logger.Warn("failed to mirror state snapshot", "call_id", state.CallID, "error", err)
	}
}
