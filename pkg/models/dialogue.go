// Package models holds the plain data records shared across the dialogue
// core and the post-call pipeline. Shapes only; behavior lives in the
// owning components.
package models

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAI     Speaker = "ai"
)

// Stage is a position in the dialogue state machine.
type Stage string

const (
	StageInitial            Stage = "initial"
	StageHandlingSales      Stage = "handling_sales"
	StageHandlingLoan       Stage = "handling_loan"
	StageHandlingInvestment Stage = "handling_investment"
	StageHandlingInsurance  Stage = "handling_insurance"
	StageHandlingTelecom    Stage = "handling_telecom"
	StagePoliteDecline      Stage = "polite_decline"
	StageFirmRejection      Stage = "firm_rejection"
	StageHangUpWarning      Stage = "hang_up_warning"
	StageCallEnd            Stage = "call_end"
)

// IsHandling reports whether s is one of the category-handling stages.
func (s Stage) IsHandling() bool {
	switch s {
	case StageHandlingSales, StageHandlingLoan, StageHandlingInvestment,
		StageHandlingInsurance, StageHandlingTelecom:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the conversation.
func (s Stage) IsTerminal() bool { return s == StageCallEnd }

// Strategy is a named response policy selected by the orchestrator.
type Strategy string

const (
	StrategyGentleDecline        Strategy = "gentle_decline"
	StrategyFirmDecline          Strategy = "firm_decline"
	StrategyWittyResponse        Strategy = "witty_response"
	StrategyExplainNotInterested Strategy = "explain_not_interested"
	StrategyClearRefusal         Strategy = "clear_refusal"
	StrategyDeflectWithHumor     Strategy = "deflect_with_humor"
	StrategyProfessionalResponse Strategy = "professional_response"
	StrategyFinalWarning         Strategy = "final_warning"
	StrategyImmediateHangup      Strategy = "immediate_hangup"
)

// IsTerminal reports whether the strategy ends the call by itself.
func (s Strategy) IsTerminal() bool {
	return s == StrategyFinalWarning || s == StrategyImmediateHangup
}

// TurnRecord is one speaker turn. Immutable after insertion.
type TurnRecord struct {
	Speaker           Speaker   `json:"speaker"`
	Text              string    `json:"text"`
	Timestamp         time.Time `json:"timestamp"`
	Intent            string    `json:"intent,omitempty"`
	IntentConfidence  float64   `json:"intent_confidence,omitempty"`
	Emotion           string    `json:"emotion,omitempty"`
	EmotionConfidence float64   `json:"emotion_confidence,omitempty"`
	LatencyMS         int64     `json:"latency_ms,omitempty"`
	CacheHit          bool      `json:"cache_hit,omitempty"`
	Strategy          Strategy  `json:"strategy,omitempty"`
}

// DialogueState is the per-call conversation state. One exists per live
// call id; TurnCount always equals len(Turns).
type DialogueState struct {
	CallID            string       `json:"call_id"`
	UserID            string       `json:"user_id"`
	CallerFingerprint string       `json:"caller_fingerprint"`
	Stage             Stage        `json:"stage"`
	TurnCount         int          `json:"turn_count"`
	StartedAt         time.Time    `json:"started_at"`
	Turns             []TurnRecord `json:"turns"`
	IntentHistory     []string     `json:"intent_history"`
	EmotionHistory    []string     `json:"emotion_history"`
	KeyPoints         []string     `json:"key_points"`

	// StageEnteredTurn is the caller-turn index at which the current stage
	// was entered; continued-persistence detection needs it.
	StageEnteredTurn int `json:"stage_entered_turn"`
}

// CallerTurns returns the number of caller turns recorded so far.
func (s *DialogueState) CallerTurns() int { return len(s.IntentHistory) }

// DurationSeconds returns elapsed call time at now.
func (s *DialogueState) DurationSeconds(now time.Time) float64 {
	return now.Sub(s.StartedAt).Seconds()
}

// LastTurns returns up to n most recent turns, oldest first.
func (s *DialogueState) LastTurns(n int) []TurnRecord {
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// RecentIntents returns up to n most recent caller intents, oldest first.
func (s *DialogueState) RecentIntents(n int) []string {
	if n <= 0 || len(s.IntentHistory) == 0 {
		return nil
	}
	if len(s.IntentHistory) <= n {
		return s.IntentHistory
	}
	return s.IntentHistory[len(s.IntentHistory)-n:]
}

// Clone returns a deep copy safe to hand outside the tracker's lock.
func (s *DialogueState) Clone() *DialogueState {
	cp := *s
	cp.Turns = append([]TurnRecord(nil), s.Turns...)
	cp.IntentHistory = append([]string(nil), s.IntentHistory...)
	cp.EmotionHistory = append([]string(nil), s.EmotionHistory...)
	cp.KeyPoints = append([]string(nil), s.KeyPoints...)
	return &cp
}

// CallSummary is the terminal record produced by ending a call.
type CallSummary struct {
	CallID          string    `json:"call_id"`
	UserID          string    `json:"user_id"`
	EndReason       string    `json:"end_reason"`
	FinalStage      Stage     `json:"final_stage"`
	TurnCount       int       `json:"turn_count"`
	CallerTurns     int       `json:"caller_turns"`
	DurationSeconds float64   `json:"duration_seconds"`
	KeyPoints       []string  `json:"key_points"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
}
