package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// Pattern kinds.
const (
	PatternSuccessful   = "successful"
	PatternFailed       = "failed"
	PatternEscalation   = "escalation"
	PatternDeEscalation = "de_escalation"
)

// Insight kinds.
const (
	InsightUnderperformingStrategy = "underperforming_strategy"
	InsightHighPerformingStrategy  = "high_performing_strategy"
	InsightEffectivePattern        = "effective_pattern"
)

// Score bands classifying a call as a success or a failure for pattern
// purposes.
const (
	patternSuccessScore = 0.7
	patternFailureScore = 0.4
)

// patternRecord is one observed strategy sequence under one kind.
type patternRecord struct {
	Kind      string  `json:"kind"`
	Sequence  string  `json:"sequence"`
	Frequency int     `json:"frequency"`
	ScoreSum  float64 `json:"score_sum"`
}

func (p *patternRecord) average() float64 {
	if p.Frequency == 0 {
		return 0
	}
	return p.ScoreSum / float64(p.Frequency)
}

func patternKey(kind, sequence string) string { return kind + "|" + sequence }

// Insight is a derived finding. Applied insights have cleared the
// confidence threshold and participate in adaptation.
type Insight struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	Detail     string    `json:"detail"`
	Confidence float64   `json:"confidence"`
	Applied    bool      `json:"applied"`
	CreatedAt  time.Time `json:"created_at"`
}

// recordPatterns classifies the call and bumps every matching pattern.
// Caller holds the lock.
func (s *System) recordPatterns(record *models.CallRecord, score float64) {
	sequence := strategySequence(record)
	if sequence == "" {
		return
	}

	var kinds []string
	if score >= patternSuccessScore {
		kinds = append(kinds, PatternSuccessful)
	}
	if score < patternFailureScore {
		kinds = append(kinds, PatternFailed)
	}
	if escalated(record) {
		kinds = append(kinds, PatternEscalation)
	}
	if deEscalated(record) {
		kinds = append(kinds, PatternDeEscalation)
	}

	for _, kind := range kinds {
		key := patternKey(kind, sequence)
		p := s.patterns[key]
		if p == nil {
			p = &patternRecord{Kind: kind, Sequence: sequence}
			s.patterns[key] = p
		}
		p.Frequency++
		p.ScoreSum += score
	}
}

// GenerateInsights derives strategy and pattern insights from the
// current aggregates. Insights at or above the confidence threshold are
// marked applied; the full set is appended to the insight log and
// returned.
func (s *System) GenerateInsights(now time.Time) []Insight {
	s.mu.Lock()
	defer s.mu.Unlock()

	var generated []Insight
	for strategy, agg := range s.strategies {
		if agg.Calls < s.minPatternFrequency {
			continue
		}
		confidence := clamp01(float64(agg.Calls) / 10)
		switch avg := agg.average(); {
		case avg < patternFailureScore:
			generated = append(generated, Insight{
				Kind:       InsightUnderperformingStrategy,
				Subject:    string(strategy),
				Detail:     fmt.Sprintf("average effectiveness %.2f over %d calls", avg, agg.Calls),
				Confidence: confidence,
			})
		case avg >= 0.75:
			generated = append(generated, Insight{
				Kind:       InsightHighPerformingStrategy,
				Subject:    string(strategy),
				Detail:     fmt.Sprintf("average effectiveness %.2f over %d calls", avg, agg.Calls),
				Confidence: confidence,
			})
		}
	}

	for _, p := range s.patterns {
		if p.Kind != PatternSuccessful || p.Frequency < s.minPatternFrequency {
			continue
		}
		generated = append(generated, Insight{
			Kind:       InsightEffectivePattern,
			Subject:    p.Sequence,
			Detail:     fmt.Sprintf("seen %d times, average effectiveness %.2f", p.Frequency, p.average()),
			Confidence: clamp01(float64(p.Frequency) / 5),
		})
	}

	for i := range generated {
		generated[i].ID = uuid.NewString()
		generated[i].CreatedAt = now
		if generated[i].Confidence >= s.insightConfidence {
			generated[i].Applied = true
			s.logger.Info("insight applied",
				"kind", generated[i].Kind,
				"subject", generated[i].Subject,
				"confidence", generated[i].Confidence)
		}
	}
	s.insights = append(s.insights, generated...)
	return generated
}

// Insights returns the accumulated insight log, newest last.
func (s *System) Insights() []Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Insight(nil), s.insights...)
}

// strategySequence renders the AI strategy path of the call, in turn
// order with consecutive repeats collapsed.
func strategySequence(record *models.CallRecord) string {
	var parts []string
	for _, turn := range record.Transcript {
		if turn.Speaker != models.SpeakerAI || turn.Strategy == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == string(turn.Strategy) {
			continue
		}
		parts = append(parts, string(turn.Strategy))
	}
	return strings.Join(parts, ">")
}

// escalated reports whether the call reached the warning ladder or was
// cut off for persistence or frustration.
func escalated(record *models.CallRecord) bool {
	switch record.EndReason {
	case models.ReasonExcessivePersistence, models.ReasonHighFrustration:
		return true
	}
	if record.FinalStage == models.StageHangUpWarning {
		return true
	}
	for _, turn := range record.Transcript {
		if turn.Speaker == models.SpeakerAI && turn.Strategy == models.StrategyFinalWarning {
			return true
		}
	}
	return false
}

// deEscalated reports whether the caller cooled down over the call:
// anger observed early, calm at the end.
func deEscalated(record *models.CallRecord) bool {
	caller := record.CallerTurns()
	if len(caller) < 2 {
		return false
	}
	sawAnger := false
	for _, turn := range caller[:len(caller)-1] {
		if turn.Emotion == "anger" || turn.Emotion == "disgust" {
			sawAnger = true
			break
		}
	}
	last := caller[len(caller)-1].Emotion
	return sawAnger && (last == "neutral" || last == "joy" || last == "")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
