package learning

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/version"
)

// exportedModel is the wire form of the learning state. Entries are
// sorted so an export, import, export round trip reproduces the bytes.
type exportedModel struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Totals     exportedTotals   `json:"totals"`
	Strategies []strategyEntry  `json:"strategies"`
	Patterns   []patternRecord  `json:"patterns"`
	Accuracy   []AccuracySample `json:"accuracy_samples"`
	Insights   []Insight        `json:"insights"`
}

type exportedTotals struct {
	Calls              int `json:"calls"`
	Successes          int `json:"successes"`
	Terminations       int `json:"terminations"`
	Misclassifications int `json:"misclassifications"`
}

type strategyEntry struct {
	Strategy     string  `json:"strategy"`
	Calls        int     `json:"calls"`
	ScoreSum     float64 `json:"score_sum"`
	Terminations int     `json:"terminations"`
}

// Export serializes the learning state at the given timestamp.
func (s *System) Export(now time.Time) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	model := exportedModel{
		Version:    version.Full(),
		ExportedAt: now.UTC(),
		Totals: exportedTotals{
			Calls:              s.totalCalls,
			Successes:          s.successCalls,
			Terminations:       s.systemTerminations,
			Misclassifications: s.misclassifications,
		},
		Strategies: make([]strategyEntry, 0, len(s.strategies)),
		Patterns:   make([]patternRecord, 0, len(s.patterns)),
		Accuracy:   append([]AccuracySample{}, s.accuracy...),
		Insights:   append([]Insight{}, s.insights...),
	}

	for strategy, agg := range s.strategies {
		model.Strategies = append(model.Strategies, strategyEntry{
			Strategy:     string(strategy),
			Calls:        agg.Calls,
			ScoreSum:     agg.ScoreSum,
			Terminations: agg.Terminations,
		})
	}
	sort.Slice(model.Strategies, func(i, j int) bool {
		return model.Strategies[i].Strategy < model.Strategies[j].Strategy
	})

	for _, p := range s.patterns {
		model.Patterns = append(model.Patterns, *p)
	}
	sort.Slice(model.Patterns, func(i, j int) bool {
		if model.Patterns[i].Kind != model.Patterns[j].Kind {
			return model.Patterns[i].Kind < model.Patterns[j].Kind
		}
		return model.Patterns[i].Sequence < model.Patterns[j].Sequence
	})

	raw, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("learning export: %w", err)
	}
	return raw, nil
}

// Import replaces the learning state with a previously exported model.
func (s *System) Import(data []byte) error {
	var model exportedModel
	if err := json.Unmarshal(data, &model); err != nil {
		return fmt.Errorf("learning import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalCalls = model.Totals.Calls
	s.successCalls = model.Totals.Successes
	s.systemTerminations = model.Totals.Terminations
	s.misclassifications = model.Totals.Misclassifications

	s.strategies = make(map[models.Strategy]*strategyAggregate, len(model.Strategies))
	for _, entry := range model.Strategies {
		s.strategies[models.Strategy(entry.Strategy)] = &strategyAggregate{
			Calls:        entry.Calls,
			ScoreSum:     entry.ScoreSum,
			Terminations: entry.Terminations,
		}
	}

	s.patterns = make(map[string]*patternRecord, len(model.Patterns))
	for _, p := range model.Patterns {
		cp := p
		s.patterns[patternKey(p.Kind, p.Sequence)] = &cp
	}

	s.accuracy = append([]AccuracySample{}, model.Accuracy...)
	s.insights = append([]Insight{}, model.Insights...)

	s.logger.Info("learning model imported",
		"calls", s.totalCalls,
		"strategies", len(s.strategies),
		"patterns", len(s.patterns))
	return nil
}
