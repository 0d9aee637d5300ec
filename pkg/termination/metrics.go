package termination

import (
	"math"
	"strings"
	"time"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/sentiment"
)

// persistenceKeywords are the pushy-caller markers the keyword component
// of the persistence metric counts.
var persistenceKeywords = []string{
	"再考虑", "再想想", "最后一次", "机会难得", "听我说完", "真的", "就一分钟",
}

// stageProgress scores how far the refusal has advanced.
var stageProgress = map[models.Stage]float64{
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

// deriveMetrics computes the per-turn termination signals. Turn counting
// follows the caller: the decider's turn budget is caller turns.
func deriveMetrics(state *models.DialogueState, resp *models.AIResponse, now time.Time) models.TerminationMetrics {
	turns := state.CallerTurns()

	m := models.TerminationMetrics{
		TurnCount:       turns,
		DurationSeconds: state.DurationSeconds(now),
		RepetitionRatio: repetitionRatio(state.RecentIntents(5)),
	}
	if resp != nil {
		m.ResponseConfidence = resp.Confidence
		m.ShouldTerminate = resp.ShouldTerminate
	}

	m.Persistence = clamp01(
		0.3*math.Min(float64(turns)/10, 1) +
			0.3*m.RepetitionRatio +
			0.2*keywordScore(state) +
			0.2*resistanceScore(state))
	m.Frustration = frustration(state.EmotionHistory)
	m.Aggression = aggressionRatio(state.EmotionHistory)
	m.Effectiveness = clamp01(
		0.4*stageProgress[state.Stage] +
			0.3*math.Max(0, 1-float64(turns)/10) +
			0.3*m.ResponseConfidence)
	return m
}

// repetitionRatio = 1 − unique/total over the recent intents.
func repetitionRatio(intents []string) float64 {
	if len(intents) == 0 {
		return 0
	}
	unique := map[string]struct{}{}
	for _, it := range intents {
		unique[it] = struct{}{}
	}
	return 1 - float64(len(unique))/float64(len(intents))
}

// keywordScore rises with both pushy-marker density and raw turn count.
func keywordScore(state *models.DialogueState) float64 {
	matches := 0
	for _, turn := range state.LastTurns(10) {
		if turn.Speaker != models.SpeakerCaller {
			continue
		}
		for _, kw := range persistenceKeywords {
			if strings.Contains(turn.Text, kw) {
				matches++
			}
		}
	}
	return clamp01(0.25*float64(matches) + 0.05*float64(state.CallerTurns()))
}

// resistanceScore captures a conversation that refuses to advance: 0.8
// when stuck in an early stage past five turns, 0.6 when parked in
// polite_decline.
func resistanceScore(state *models.DialogueState) float64 {
	turns := state.CallerTurns()
	if turns > 5 && (state.Stage == models.StageInitial || state.Stage.IsHandling()) {
		return 0.8
	}
	if state.Stage == models.StagePoliteDecline && turns > 5 {
		return 0.6
	}
	return 0
}

// frustration = 0.5·mean(weights of last 3 emotions) + 0.3·max(weights of
// the whole trajectory) + 0.2·escalation delta.
func frustration(emotions []string) float64 {
	if len(emotions) == 0 {
		return 0
	}

	recent := emotions
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var recentSum float64
	for _, e := range recent {
		recentSum += sentiment.Weight(e)
	}
	recentMean := recentSum / float64(len(recent))

	var peak float64
	for _, e := range emotions {
		if w := sentiment.Weight(e); w > peak {
			peak = w
		}
	}

	delta := sentiment.Weight(emotions[len(emotions)-1]) - sentiment.Weight(emotions[0])
	if delta < 0 {
		delta = 0
	}

	return clamp01(0.5*recentMean + 0.3*peak + 0.2*delta)
}

func aggressionRatio(emotions []string) float64 {
	if len(emotions) == 0 {
		return 0
	}
	count := 0
	for _, e := range emotions {
		if e == "anger" || e == "aggressive" {
			count++
		}
	}
	return float64(count) / float64(len(emotions))
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
