package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/sentiment"
)

// Effectiveness sub-score weights, in evaluation order: response quality,
// conversation flow, caller satisfaction, termination appropriateness,
// response latency, contextual awareness.
var effectivenessWeights = []float64{0.25, 0.20, 0.20, 0.15, 0.10, 0.10}

// latencyTargetMS is the per-turn latency the latency sub-score considers
// ideal.
const latencyTargetMS = 300

var terminationScores = map[string]float64{
	models.ReasonExplicitTermination:  1.0,
	models.ReasonExcessivePersistence: 0.8,
	models.ReasonHighFrustration:      0.7,
	models.ReasonMaxTurnsExceeded:     0.6,
	models.ReasonMaxDurationExceeded:  0.5,
	models.ReasonIneffectiveResponses: 0.4,
}

var evaluationStageProgress = map[models.Stage]float64{
	models.StageInitial:            0.1,
	models.StageHandlingSales:      0.3,
	models.StageHandlingLoan:       0.3,
	models.StageHandlingInvestment: 0.3,
	models.StageHandlingInsurance:  0.3,
	models.StageHandlingTelecom:    0.3,
	models.StagePoliteDecline:      0.5,
	models.StageFirmRejection:      0.7,
	models.StageHangUpWarning:      0.9,
	models.StageCallEnd:            1.0,
}

// EffectivenessReport carries the six sub-scores and their weighted sum.
type EffectivenessReport struct {
	ResponseQuality            float64 `json:"response_quality"`
	ConversationFlow           float64 `json:"conversation_flow"`
	CallerSatisfaction         float64 `json:"caller_satisfaction"`
	TerminationAppropriateness float64 `json:"termination_appropriateness"`
	ResponseLatency            float64 `json:"response_latency"`
	ContextualAwareness        float64 `json:"contextual_awareness"`
	Overall                    float64 `json:"overall"`
}

// EvaluateEffectiveness runs the six sub-evaluations in parallel over the
// call record. Sub-evaluations are pure: no external calls.
func EvaluateEffectiveness(ctx context.Context, record *models.CallRecord) (*EffectivenessReport, error) {
	report := &EffectivenessReport{}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { report.ResponseQuality = responseQuality(record); return nil })
	g.Go(func() error { report.ConversationFlow = conversationFlow(record); return nil })
	g.Go(func() error { report.CallerSatisfaction = callerSatisfaction(record); return nil })
	g.Go(func() error { report.TerminationAppropriateness = terminationAppropriateness(record); return nil })
	g.Go(func() error { report.ResponseLatency = responseLatency(record); return nil })
	g.Go(func() error { report.ContextualAwareness = contextualAwareness(record); return nil })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subs := []float64{
		report.ResponseQuality,
		report.ConversationFlow,
		report.CallerSatisfaction,
		report.TerminationAppropriateness,
		report.ResponseLatency,
		report.ContextualAwareness,
	}
	for i, s := range subs {
		report.Overall += effectivenessWeights[i] * s
	}
	report.Overall = clamp01(report.Overall)
	return report, nil
}

// responseQuality scores the AI side: non-empty replies, reasonable
// length, and variety.
func responseQuality(record *models.CallRecord) float64 {
	turns := record.AITurns()
	if len(turns) == 0 {
		return 0
	}

	nonEmpty, reasonable := 0, 0
	unique := map[string]struct{}{}
	for _, t := range turns {
		if t.Text != "" {
			nonEmpty++
		}
		if n := len([]rune(t.Text)); n > 0 && n <= 100 {
			reasonable++
		}
		unique[t.Text] = struct{}{}
	}

	total := float64(len(turns))
	variety := float64(len(unique)) / total
	return clamp01(0.4*float64(nonEmpty)/total + 0.3*float64(reasonable)/total + 0.3*variety)
}

// conversationFlow scores stage progress and strict turn alternation.
func conversationFlow(record *models.CallRecord) float64 {
	if len(record.Transcript) == 0 {
		return 0
	}

	alternations := 0
	for i := 1; i < len(record.Transcript); i++ {
		if record.Transcript[i].Speaker != record.Transcript[i-1].Speaker {
			alternations++
		}
	}
	alternationRatio := 1.0
	if len(record.Transcript) > 1 {
		alternationRatio = float64(alternations) / float64(len(record.Transcript)-1)
	}

	return clamp01(0.6*evaluationStageProgress[record.FinalStage] + 0.4*alternationRatio)
}

// callerSatisfaction is the inverse of the caller's emotional load.
func callerSatisfaction(record *models.CallRecord) float64 {
	turns := record.CallerTurns()
	if len(turns) == 0 {
		return 0.5
	}
	var load float64
	for _, t := range turns {
		load += sentiment.Weight(t.Emotion)
	}
	return clamp01(1 - load/float64(len(turns)))
}

// terminationAppropriateness scores how the call ended.
func terminationAppropriateness(record *models.CallRecord) float64 {
	if score, ok := terminationScores[record.EndReason]; ok {
		return score
	}
	if record.FinalStage == models.StageCallEnd {
		return 0.6
	}
	return 0.5
}

// responseLatency scores recorded per-turn latencies against the target.
func responseLatency(record *models.CallRecord) float64 {
	turns := record.AITurns()
	var sum, counted float64
	for _, t := range turns {
		if t.LatencyMS <= 0 {
			continue
		}
		counted++
		if t.LatencyMS <= latencyTargetMS {
			sum += 1
		} else {
			sum += clamp01(float64(latencyTargetMS) / float64(t.LatencyMS))
		}
	}
	if counted == 0 {
		return 0.8 // nothing recorded; assume acceptable
	}
	return clamp01(sum / counted)
}

// contextualAwareness scores how much of the caller side the system
// actually understood.
func contextualAwareness(record *models.CallRecord) float64 {
	turns := record.CallerTurns()
	if len(turns) == 0 {
		return 0.5
	}
	classified := 0
	for _, t := range turns {
		if t.Intent != "" && t.Intent != models.IntentUnknown {
			classified++
		}
	}
	return clamp01(float64(classified) / float64(len(turns)))
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
