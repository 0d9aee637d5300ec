// Package learning accumulates post-call evidence: per-strategy
// performance aggregates, recurring conversation patterns, intent
// accuracy samples, and the insights derived from them. The aggregates
// feed termination-threshold adaptation and strategy tuning.
package learning

import (
	"log/slog"
	"sync"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// successScoreFloor is the effectiveness score at or above which a call
// counts as a success for the adaptation inputs.
const successScoreFloor = 0.6

// maxAccuracySamples bounds the retained accuracy sample window.
const maxAccuracySamples = 1000

// strategyAggregate is the running performance record for one strategy.
type strategyAggregate struct {
	Calls        int     `json:"calls"`
	ScoreSum     float64 `json:"score_sum"`
	Terminations int     `json:"terminations"`
}

func (a *strategyAggregate) average() float64 {
	if a.Calls == 0 {
		return 0
	}
	return a.ScoreSum / float64(a.Calls)
}

// AccuracySample is one intent classification outcome reported back by
// the classifier's feedback hook.
type AccuracySample struct {
	Text       string  `json:"text"`
	Predicted  string  `json:"predicted"`
	Correct    string  `json:"correct"`
	Confidence float64 `json:"confidence"`
}

// System is the learning aggregator. All mutation goes through its lock;
// post-call workers call it concurrently.
type System struct {
	mu sync.Mutex

	strategies map[models.Strategy]*strategyAggregate
	patterns   map[string]*patternRecord
	accuracy   []AccuracySample
	insights   []Insight

	totalCalls         int
	successCalls       int
	systemTerminations int
	misclassifications int

	minPatternFrequency int
	insightConfidence   float64
	logger              *slog.Logger
}

// NewSystem creates an empty learning system from its config slice.
func NewSystem(cfg *config.LearningConfig, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	minFreq := 3
	insightConf := 0.7
	if cfg != nil {
		if cfg.MinPatternFrequency > 0 {
			minFreq = cfg.MinPatternFrequency
		}
		if cfg.InsightConfidence > 0 {
			insightConf = cfg.InsightConfidence
		}
	}
	return &System{
		strategies:          map[models.Strategy]*strategyAggregate{},
		patterns:            map[string]*patternRecord{},
		minPatternFrequency: minFreq,
		insightConfidence:   insightConf,
		logger:              logger.With("component", "learning"),
	}
}

// RecordCall folds one completed call and its effectiveness score into
// the aggregates and the pattern table.
func (s *System) RecordCall(record *models.CallRecord, score float64) {
	if record == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalCalls++
	if score >= successScoreFloor {
		s.successCalls++
	}
	systemEnded := record.EndReason != "" && record.EndReason != models.ReasonExplicitTermination
	if systemEnded {
		s.systemTerminations++
	}

	for _, strategy := range strategiesUsed(record) {
		agg := s.strategies[strategy]
		if agg == nil {
			agg = &strategyAggregate{}
			s.strategies[strategy] = agg
		}
		agg.Calls++
		agg.ScoreSum += score
		if systemEnded {
			agg.Terminations++
		}
	}

	s.recordPatterns(record, score)
}

// RecordAccuracySample satisfies the classifier's feedback contract. A
// confident misclassification is counted and surfaced as a warning.
func (s *System) RecordAccuracySample(text, predicted, correct string, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accuracy = append(s.accuracy, AccuracySample{
		Text:       text,
		Predicted:  predicted,
		Correct:    correct,
		Confidence: confidence,
	})
	if len(s.accuracy) > maxAccuracySamples {
		s.accuracy = s.accuracy[len(s.accuracy)-maxAccuracySamples:]
	}

	if predicted != correct && confidence >= 0.8 {
		s.misclassifications++
		s.logger.Warn("confident intent misclassification recorded",
			"predicted", predicted, "correct", correct, "confidence", confidence)
	}
}

// AdaptationInputs returns the observed success and termination rates
// the termination decider adapts against.
func (s *System) AdaptationInputs() (successRate, terminationRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalCalls == 0 {
		return 1, 0
	}
	return float64(s.successCalls) / float64(s.totalCalls),
		float64(s.systemTerminations) / float64(s.totalCalls)
}

// StrategyAverages returns the mean effectiveness score per strategy.
func (s *System) StrategyAverages() map[models.Strategy]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Strategy]float64, len(s.strategies))
	for strategy, agg := range s.strategies {
		out[strategy] = agg.average()
	}
	return out
}

// PerformanceMetrics is the snapshot served on the metrics endpoint.
func (s *System) PerformanceMetrics() map[string]any {
	successRate, terminationRate := s.AdaptationInputs()

	s.mu.Lock()
	defer s.mu.Unlock()

	perStrategy := make(map[string]map[string]any, len(s.strategies))
	for strategy, agg := range s.strategies {
		perStrategy[string(strategy)] = map[string]any{
			"calls":         agg.Calls,
			"average_score": agg.average(),
			"terminations":  agg.Terminations,
		}
	}

	retained := 0
	for _, p := range s.patterns {
		if p.Frequency >= s.minPatternFrequency {
			retained++
		}
	}

	return map[string]any{
		"total_calls":        s.totalCalls,
		"success_rate":       successRate,
		"termination_rate":   terminationRate,
		"strategies":         perStrategy,
		"retained_patterns":  retained,
		"insights":           len(s.insights),
		"accuracy_samples":   len(s.accuracy),
		"misclassifications": s.misclassifications,
	}
}

// strategiesUsed returns the distinct strategies on the AI side of the
// transcript, in first-use order.
func strategiesUsed(record *models.CallRecord) []models.Strategy {
	seen := map[models.Strategy]struct{}{}
	var out []models.Strategy
	for _, turn := range record.Transcript {
		if turn.Speaker != models.SpeakerAI || turn.Strategy == "" {
			continue
		}
		if _, ok := seen[turn.Strategy]; ok {
			continue
		}
		seen[turn.Strategy] = struct{}{}
		out = append(out, turn.Strategy)
	}
	return out
}
