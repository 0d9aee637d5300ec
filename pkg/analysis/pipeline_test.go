package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/intent"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/sentiment"
)

type fakeCallSource struct {
	mu     sync.Mutex
	record *models.CallRecord
	err    error
	loads  int
}

func (f *fakeCallSource) CallRecord(_ context.Context, _ string) (*models.CallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *fakeCallSource) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type fakeResultStore struct {
	mu    sync.Mutex
	saves []models.TaskType
}

func (f *fakeResultStore) SaveAnalysisResult(_ context.Context, _ string, typ models.TaskType, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, typ)
	return nil
}

func (f *fakeResultStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func loanCallRecord() *models.CallRecord {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	return &models.CallRecord{
		CallID:     "call-loan-1",
		UserID:     "user-1",
		StartedAt:  start,
		EndedAt:    start.Add(90 * time.Second),
		EndReason:  models.ReasonExplicitTermination,
		FinalStage: models.StageCallEnd,
		Transcript: []models.TurnRecord{
			{Speaker: models.SpeakerCaller, Text: "您好，我是银行的，有贷款需求吗？", Intent: models.IntentLoanOffer, IntentConfidence: 0.88, Emotion: "neutral"},
			{Speaker: models.SpeakerAI, Text: "谢谢，我暂时不需要贷款。", Strategy: models.StrategyGentleDecline, LatencyMS: 220},
			{Speaker: models.SpeakerCaller, Text: "我们贷款利息很低，额度也高，再考虑一下吧。", Intent: models.IntentLoanOffer, IntentConfidence: 0.85, Emotion: "neutral"},
			{Speaker: models.SpeakerAI, Text: "真的不用了，请不要再打来。", Strategy: models.StrategyFirmDecline, LatencyMS: 240},
			{Speaker: models.SpeakerCaller, Text: "好吧，再见。", Intent: models.IntentUnknown, Emotion: "neutral"},
			{Speaker: models.SpeakerAI, Text: "再见。", Strategy: models.StrategyImmediateHangup, LatencyMS: 180},
		},
	}
}

func newTestPipeline(source *fakeCallSource, store *fakeResultStore, c *cache.Cache[map[string]any]) *Pipeline {
	classifier := intent.NewClassifier(nil, nil, nil)
	analyzer := sentiment.NewAnalyzer("", nil, "zh", nil, nil)
	summarizer := NewSummaryGenerator(nil)
	// A nil *fakeResultStore must become a nil interface, not a typed nil,
	// so the pipeline's persistence guard sees it.
	var results ResultStore
	if store != nil {
		results = store
	}
	return NewPipeline(source, results, classifier, analyzer, summarizer, c, nil)
}

func TestFullAnalysisFanOut(t *testing.T) {
	source := &fakeCallSource{record: loanCallRecord()}
	store := &fakeResultStore{}
	p := newTestPipeline(source, store, nil)

	payload, err := p.Handle(context.Background(), testTask("call-loan-1", models.TaskFullAnalysis, models.PriorityNormal))
	require.NoError(t, err)

	content, ok := payload["content_analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.IntentLoanOffer, content["category"])

	effectiveness, ok := payload["effectiveness"].(map[string]any)
	require.True(t, ok)
	overall, ok := effectiveness["overall"].(float64)
	require.True(t, ok)
	assert.Greater(t, overall, 0.0)
	assert.LessOrEqual(t, overall, 1.0)

	summary, ok := payload["summary"].(map[string]any)
	require.True(t, ok)
	text, ok := summary["text"].(string)
	require.True(t, ok)
	assert.Contains(t, text, "贷款推销")

	// Content, effectiveness, and summary each persisted once.
	assert.Equal(t, 3, store.saveCount())
}

func TestTypedAnalysisCacheShortCircuits(t *testing.T) {
	source := &fakeCallSource{record: loanCallRecord()}
	store := &fakeResultStore{}
	c := cache.New[map[string]any](newFakeAnalysisRedis(), CachePrefix, time.Hour)
	p := newTestPipeline(source, store, c)
	ctx := context.Background()

	task := testTask("call-loan-1", models.TaskContentAnalysis, models.PriorityNormal)

	first, err := p.Handle(ctx, task)
	require.NoError(t, err)
	require.Equal(t, 1, store.saveCount())

	second, err := p.Handle(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, first["category"], second["category"])
	assert.Equal(t, 1, store.saveCount(), "cached results are not recomputed or re-persisted")
}

func TestTranscriptionPayload(t *testing.T) {
	source := &fakeCallSource{record: loanCallRecord()}
	p := newTestPipeline(source, nil, nil)

	payload, err := p.Handle(context.Background(), testTask("call-loan-1", models.TaskTranscription, models.PriorityNormal))
	require.NoError(t, err)

	assert.Equal(t, 6, payload["turn_count"])
	assert.Equal(t, 3, payload["caller_turns"])
	assert.Equal(t, 3, payload["ai_turns"])
	text, ok := payload["text"].(string)
	require.True(t, ok)
	assert.Contains(t, text, "caller: 您好，我是银行的，有贷款需求吗？")
	assert.Contains(t, text, "ai: 再见。")
}

func TestHandleUnroutableType(t *testing.T) {
	source := &fakeCallSource{record: loanCallRecord()}
	p := newTestPipeline(source, nil, nil)

	_, err := p.Handle(context.Background(), &models.QueuedTask{ID: "t", CallID: "call-loan-1", Type: "bogus"})
	require.Error(t, err)
}

func TestHandleCallLoadFailure(t *testing.T) {
	source := &fakeCallSource{err: errors.New("record missing")}
	p := newTestPipeline(source, nil, nil)

	_, err := p.Handle(context.Background(), testTask("gone", models.TaskSummary, models.PriorityNormal))
	require.Error(t, err)
}
