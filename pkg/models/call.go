package models

import "time"

// CallRecord is the persisted form of a completed call, consumed by the
// post-call pipeline.
type CallRecord struct {
	CallID            string       `json:"call_id"`
	UserID            string       `json:"user_id"`
	CallerFingerprint string       `json:"caller_fingerprint"`
	StartedAt         time.Time    `json:"started_at"`
	EndedAt           time.Time    `json:"ended_at"`
	EndReason         string       `json:"end_reason"`
	FinalStage        Stage        `json:"final_stage"`
	Transcript        []TurnRecord `json:"transcript"`
}

// DurationSeconds returns the recorded call duration.
func (r *CallRecord) DurationSeconds() float64 {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt).Seconds()
}

// CallerTurns counts the caller's turns in the transcript.
func (r *CallRecord) CallerTurns() []TurnRecord {
	var turns []TurnRecord
	for _, t := range r.Transcript {
		if t.Speaker == SpeakerCaller {
			turns = append(turns, t)
		}
	}
	return turns
}

// AITurns counts the AI's turns in the transcript.
func (r *CallRecord) AITurns() []TurnRecord {
	var turns []TurnRecord
	for _, t := range r.Transcript {
		if t.Speaker == SpeakerAI {
			turns = append(turns, t)
		}
	}
	return turns
}
