package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

func newTestTracker() *Tracker {
	return NewTracker(nil, nil)
}

func callerTurn(t *testing.T, tr *Tracker, callID, text, intent, emotion string) *models.DialogueState {
	t.Helper()
	state, err := tr.Update(context.Background(), callID, TurnUpdate{
		Speaker: models.SpeakerCaller,
		Text:    text,
		Intent:  intent,
		Emotion: emotion,
	})
	require.NoError(t, err)
	return state
}

func aiTurn(t *testing.T, tr *Tracker, callID, text string) *models.DialogueState {
	t.Helper()
	state, err := tr.Update(context.Background(), callID, TurnUpdate{
		Speaker:  models.SpeakerAI,
		Text:     text,
		Strategy: models.StrategyGentleDecline,
	})
	require.NoError(t, err)
	return state
}

func TestGetOrCreateIdempotent(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	a, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageInitial, a.Stage)

	b, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, a.CallID, b.CallID)
	assert.Equal(t, a.StartedAt, b.StartedAt)
	assert.Equal(t, 1, tr.ActiveCalls())
}

func TestTurnCountMatchesRecords(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	state := callerTurn(t, tr, "call-1", "你好", models.IntentUnknown, "neutral")
	assert.Equal(t, 1, state.TurnCount)
	assert.Len(t, state.Turns, 1)

	snap, err := tr.Snapshot(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TurnCount)

	state = aiTurn(t, tr, "call-1", "您好，请问有什么事吗？")
	assert.Equal(t, 2, state.TurnCount)
	assert.Len(t, state.Turns, 2)
	assert.Equal(t, 1, state.CallerTurns())
}

func TestUpdateAfterEndFails(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)
	callerTurn(t, tr, "call-1", "你好", models.IntentUnknown, "neutral")

	summary, err := tr.End(ctx, "call-1", models.ReasonExplicitTermination)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TurnCount)
	assert.Equal(t, 0, tr.ActiveCalls())

	_, err = tr.Update(ctx, "call-1", TurnUpdate{Speaker: models.SpeakerCaller, Text: "喂"})
	require.ErrorIs(t, err, ErrStateClosed)

	_, err = tr.End(ctx, "call-1", "again")
	require.ErrorIs(t, err, ErrStateClosed)
}

func TestUpdateUnknownCall(t *testing.T) {
	tr := newTestTracker()
	_, err := tr.Update(context.Background(), "nope", TurnUpdate{Speaker: models.SpeakerCaller})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoanIntentEntersHandlingLoan(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	state := callerTurn(t, tr, "call-1", "您好，我是银行的，有贷款需求吗？", models.IntentLoanOffer, "neutral")
	assert.Equal(t, models.StageHandlingLoan, state.Stage)
	assert.Equal(t, 1, state.TurnCount)
}

func TestUnknownIntentStaysInitial(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	state := callerTurn(t, tr, "call-1", "喂，听得到么", models.IntentUnknown, "neutral")
	assert.Equal(t, models.StageInitial, state.Stage)
}

func TestPersistenceEscalation(t *testing.T) {
	// Five consecutive loan turns: firm_rejection after the third,
	// hang_up_warning after the fifth.
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	s1 := callerTurn(t, tr, "call-1", "您好，我是银行的，有贷款需求吗？", models.IntentLoanOffer, "neutral")
	assert.Equal(t, models.StageHandlingLoan, s1.Stage)

	s2 := callerTurn(t, tr, "call-1", "我们的贷款利息很低", models.IntentLoanOffer, "neutral")
	assert.Equal(t, models.StageHandlingLoan, s2.Stage)

	s3 := callerTurn(t, tr, "call-1", "真的不考虑贷款", models.IntentLoanOffer, "neutral")
	assert.Equal(t, models.StageFirmRejection, s3.Stage)

	s4 := callerTurn(t, tr, "call-1", "贷款额度很高的", models.IntentLoanOffer, "neutral")
	assert.Equal(t, models.StageFirmRejection, s4.Stage, "one turn inside firm_rejection is not yet continued persistence")

	s5 := callerTurn(t, tr, "call-1", "再给您介绍下我们的贷款产品", models.IntentLoanOffer, "neutral")
	assert.Equal(t, models.StageHangUpWarning, s5.Stage)

	s6 := callerTurn(t, tr, "call-1", "别急嘛", models.IntentUnknown, "neutral")
	assert.Equal(t, models.StageCallEnd, s6.Stage, "any turn after the warning ends the call")
}

func TestGoodbyeDominates(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	callerTurn(t, tr, "call-1", "推荐一个理财产品", models.IntentInvestmentPitch, "neutral")
	state := callerTurn(t, tr, "call-1", "好吧，再见", models.IntentInvestmentPitch, "neutral")
	assert.Equal(t, models.StageCallEnd, state.Stage)
}

func TestQuestionMovesToPoliteDecline(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	callerTurn(t, tr, "call-1", "我们有新的保险产品", models.IntentInsuranceSales, "neutral")
	state := callerTurn(t, tr, "call-1", "您现在有保障规划了没？", models.IntentInsuranceSales, "neutral")
	assert.Equal(t, models.StagePoliteDecline, state.Stage)
}

func TestEscalationFromFirmRejection(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	callerTurn(t, tr, "call-1", "了解一下我们的套餐", models.IntentTelecomPromo, "neutral")
	callerTurn(t, tr, "call-1", "套餐真的很划算", models.IntentTelecomPromo, "neutral")
	s3 := callerTurn(t, tr, "call-1", "这个套餐错过可惜", models.IntentTelecomPromo, "neutral")
	require.Equal(t, models.StageFirmRejection, s3.Stage)

	state := callerTurn(t, tr, "call-1", "你这人怎么这样", models.IntentUnknown, "anger")
	assert.Equal(t, models.StageHangUpWarning, state.Stage)
}

func TestAITurnNeverTransitions(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	callerTurn(t, tr, "call-1", "推销电话", models.IntentSalesCall, "neutral")
	state := aiTurn(t, tr, "call-1", "不需要，再见")
	assert.Equal(t, models.StageHandlingSales, state.Stage, "AI farewell text must not trigger goodbye")
	assert.Len(t, state.IntentHistory, 1, "AI turns do not extend the intent history")
}

func TestKeyPointExtraction(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)

	state := callerTurn(t, tr, "call-1", "我们最高可以批50万额度，利息特别低", models.IntentLoanOffer, "neutral")
	require.Len(t, state.KeyPoints, 1)
	assert.LessOrEqual(t, len([]rune(state.KeyPoints[0])), 20)
	assert.Contains(t, state.KeyPoints[0], "额度")
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.GetOrCreate(ctx, "call-1", "user-1", "fp-1")
	require.NoError(t, err)
	callerTurn(t, tr, "call-1", "你好", models.IntentUnknown, "neutral")

	snap, err := tr.Snapshot(ctx, "call-1")
	require.NoError(t, err)
	snap.KeyPoints = append(snap.KeyPoints, "scribble")
	snap.Turns[0].Text = "tampered"

	fresh, err := tr.Snapshot(ctx, "call-1")
	require.NoError(t, err)
	assert.Empty(t, fresh.KeyPoints)
	assert.Equal(t, "你好", fresh.Turns[0].Text)
}
