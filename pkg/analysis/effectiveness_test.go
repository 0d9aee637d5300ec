package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

func TestEvaluateEffectivenessCleanCall(t *testing.T) {
	record := loanCallRecord()
	for i := range record.Transcript {
		record.Transcript[i].LatencyMS = 0
	}

	report, err := EvaluateEffectiveness(context.Background(), record)
	require.NoError(t, err)

	// Every AI turn is non-empty, short, and distinct.
	assert.InDelta(t, 1.0, report.ResponseQuality, 1e-9)
	// Perfect alternation into call_end.
	assert.InDelta(t, 1.0, report.ConversationFlow, 1e-9)
	// Neutral caller emotions carry no load.
	assert.InDelta(t, 1.0, report.CallerSatisfaction, 1e-9)
	// The caller hung up on their own.
	assert.InDelta(t, 1.0, report.TerminationAppropriateness, 1e-9)
	// No latencies recorded.
	assert.InDelta(t, 0.8, report.ResponseLatency, 1e-9)
	// One of three caller turns is unclassified.
	assert.InDelta(t, 2.0/3.0, report.ContextualAwareness, 1e-9)

	want := 0.25*1 + 0.20*1 + 0.20*1 + 0.15*1 + 0.10*0.8 + 0.10*(2.0/3.0)
	assert.InDelta(t, want, report.Overall, 1e-9)
}

func TestEvaluateEffectivenessEmptyRecord(t *testing.T) {
	record := &models.CallRecord{CallID: "empty"}

	report, err := EvaluateEffectiveness(context.Background(), record)
	require.NoError(t, err)

	assert.Zero(t, report.ResponseQuality)
	assert.Zero(t, report.ConversationFlow)
	assert.InDelta(t, 0.5, report.CallerSatisfaction, 1e-9)
	assert.InDelta(t, 0.5, report.TerminationAppropriateness, 1e-9)
	assert.InDelta(t, 0.8, report.ResponseLatency, 1e-9)
	assert.InDelta(t, 0.5, report.ContextualAwareness, 1e-9)

	want := 0.20*0.5 + 0.15*0.5 + 0.10*0.8 + 0.10*0.5
	assert.InDelta(t, want, report.Overall, 1e-9)
}

func TestResponseLatencyScoring(t *testing.T) {
	record := &models.CallRecord{
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
		Transcript: []models.TurnRecord{
			{Speaker: models.SpeakerAI, Text: "好的。", LatencyMS: 200},
			{Speaker: models.SpeakerAI, Text: "再见。", LatencyMS: 600},
		},
	}
	// 200ms is within target (1.0), 600ms scores 300/600.
	assert.InDelta(t, 0.75, responseLatency(record), 1e-9)
}

func TestCallerSatisfactionReflectsEmotion(t *testing.T) {
	angry := &models.CallRecord{Transcript: []models.TurnRecord{
		{Speaker: models.SpeakerCaller, Text: "你们烦不烦！", Emotion: "anger"},
	}}
	calm := &models.CallRecord{Transcript: []models.TurnRecord{
		{Speaker: models.SpeakerCaller, Text: "好的，谢谢。", Emotion: "neutral"},
	}}
	assert.Less(t, callerSatisfaction(angry), callerSatisfaction(calm))
}

func TestTerminationAppropriatenessTable(t *testing.T) {
	cases := []struct {
		reason string
		stage  models.Stage
		want   float64
	}{
		{models.ReasonExplicitTermination, models.StageCallEnd, 1.0},
		{models.ReasonExcessivePersistence, models.StageCallEnd, 0.8},
		{models.ReasonHighFrustration, models.StageCallEnd, 0.7},
		{models.ReasonMaxTurnsExceeded, models.StageCallEnd, 0.6},
		{models.ReasonMaxDurationExceeded, models.StageCallEnd, 0.5},
		{models.ReasonIneffectiveResponses, models.StageCallEnd, 0.4},
		{"", models.StageCallEnd, 0.6},
		{"", models.StageFirmRejection, 0.5},
	}
	for _, tc := range cases {
		record := &models.CallRecord{EndReason: tc.reason, FinalStage: tc.stage}
		assert.InDelta(t, tc.want, terminationAppropriateness(record), 1e-9, "reason %q stage %q", tc.reason, tc.stage)
	}
}

func TestResponseQualityPenalizesRepetition(t *testing.T) {
	repetitive := &models.CallRecord{Transcript: []models.TurnRecord{
		{Speaker: models.SpeakerAI, Text: "不需要。"},
		{Speaker: models.SpeakerAI, Text: "不需要。"},
		{Speaker: models.SpeakerAI, Text: "不需要。"},
	}}
	varied := &models.CallRecord{Transcript: []models.TurnRecord{
		{Speaker: models.SpeakerAI, Text: "谢谢，不需要。"},
		{Speaker: models.SpeakerAI, Text: "真的不用了。"},
		{Speaker: models.SpeakerAI, Text: "请不要再打来。"},
	}}
	assert.Less(t, responseQuality(repetitive), responseQuality(varied))
}
