// Package engine is the per-turn orchestrator, the only component
// exported to external callers: it coordinates classification, state
// tracking, response generation, and the termination decision.
package engine

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
	"github.com/halton/ai-answer-ninja-sub000/pkg/dialogue"
	"github.com/halton/ai-answer-ninja-sub000/pkg/fingerprint"
	"github.com/halton/ai-answer-ninja-sub000/pkg/intent"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/responder"
	"github.com/halton/ai-answer-ninja-sub000/pkg/sentiment"
	"github.com/halton/ai-answer-ninja-sub000/pkg/termination"
)

// endGrace bounds the asynchronous end-of-call work.
const endGrace = 30 * time.Second

// ProfileSource supplies user and spam profiles. The services package
// implements it; nil sources fall back to defaults.
type ProfileSource interface {
	UserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SpamProfile(ctx context.Context, fingerprint string) (*models.SpamProfile, error)
}

// EndSink consumes completed calls: persistence and post-call analysis
// scheduling live behind it.
type EndSink interface {
	OnCallEnd(ctx context.Context, summary *models.CallSummary, state *models.DialogueState)
}

// TurnInput is one caller utterance plus call identity.
type TurnInput struct {
	CallID      string
	UserID      string
	CallerPhone string              // raw; hashed immediately, never stored
	Text        string
	Profile     *models.UserProfile // optional override of the stored profile
}

// TurnOutput is the reply plus the turn's derived signals.
type TurnOutput struct {
	Response          string          `json:"response"`
	NextState         models.Stage    `json:"next_state"`
	ShouldTerminate   bool            `json:"should_terminate"`
	TerminationReason string          `json:"termination_reason,omitempty"`
	Intent            string          `json:"intent"`
	Confidence        float64         `json:"confidence"`
	EmotionalTone     string          `json:"emotional_tone"`
	TurnCount         int             `json:"turn_count"`
	ProcessingTimeMS  int64           `json:"processing_time_ms"`
	Strategy          models.Strategy `json:"strategy"`
}

// Engine wires the turn pipeline. Collaborators are injected; there are
// no process globals.
type Engine struct {
	tracker    *dialogue.Tracker
	classifier *intent.Classifier
	analyzer   *sentiment.Analyzer
	generator  *responder.Generator
	decider    *termination.Decider
	hasher     *fingerprint.Hasher

	profiles ProfileSource // nil falls back to defaults
	endSink  EndSink       // nil skips post-call scheduling

	cfg    *config.EngineConfig
	logger *slog.Logger
	locks  keyedMutex
}

// New assembles the engine.
func New(tracker *dialogue.Tracker, classifier *intent.Classifier, analyzer *sentiment.Analyzer, generator *responder.Generator, decider *termination.Decider, hasher *fingerprint.Hasher, profiles ProfileSource, endSink EndSink, cfg *config.EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tracker:    tracker,
		classifier: classifier,
		analyzer:   analyzer,
		generator:  generator,
		decider:    decider,
		hasher:     hasher,
		profiles:   profiles,
		endSink:    endSink,
		cfg:        cfg,
		logger:     logger.With("component", "engine"),
	}
}

// ActiveCalls reports the number of live conversations.
func (e *Engine) ActiveCalls() int { return e.tracker.ActiveCalls() }

// ProcessTurn runs the full per-turn pipeline. The conversation always
// receives a response: internal failures degrade, they never propagate.
func (e *Engine) ProcessTurn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	start := time.Now()

	unlock := e.locks.lock(in.CallID)
	defer unlock()

	callerFP := ""
	if in.CallerPhone != "" {
		callerFP = e.hasher.Phone(in.CallerPhone)
	}

	state, err := e.tracker.GetOrCreate(ctx, in.CallID, in.UserID, callerFP)
	if err != nil {
		return nil, err
	}

	profile := e.loadProfile(ctx, in)
	spam := e.loadSpamProfile(ctx, state.CallerFingerprint)

	// Intent and sentiment run concurrently; neither ever fails the turn.
	var intentResult models.IntentResult
	var analysis *models.ConversationAnalysis
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intentResult = e.classifier.Classify(gctx, in.Text, state, spam)
		return nil
	})
	g.Go(func() error {
		analysis = e.analyzer.Analyze(gctx, in.Text)
		return nil
	})
	_ = g.Wait()

	state, err = e.tracker.Update(ctx, in.CallID, dialogue.TurnUpdate{
		Speaker:           models.SpeakerCaller,
		Text:              in.Text,
		Intent:            intentResult.Intent,
		IntentConfidence:  intentResult.Confidence,
		Emotion:           analysis.Emotion.Primary,
		EmotionConfidence: analysis.Emotion.Confidence,
	})
	if err != nil {
		return nil, err
	}

	aggressive := analysis.Emotion.Primary == "anger" ||
		intentResult.EmotionalTone == "aggressive"
	strategy := selectStrategy(state, profile.Personality, aggressive, e.cfg.MaxTurns)

	spamCategory := intentResult.Intent
	if spam != nil && spam.Category != "" {
		spamCategory = spam.Category
	}
	response := e.generator.Generate(ctx, responder.Request{
		Strategy:     strategy,
		State:        state,
		Profile:      profile,
		Intent:       intentResult,
		SpamCategory: spamCategory,
		CallerText:   in.Text,
	})

	state, err = e.tracker.Update(ctx, in.CallID, dialogue.TurnUpdate{
		Speaker:   models.SpeakerAI,
		Text:      response.Text,
		LatencyMS: response.GenerationTimeMS,
		CacheHit:  response.Cached,
		Strategy:  strategy,
	})
	if err != nil {
		return nil, err
	}

	decision := e.decider.Decide(state, response, time.Now())

	out := &TurnOutput{
		Response:         response.Text,
		NextState:        state.Stage,
		ShouldTerminate:  decision.Terminate,
		Intent:           intentResult.Intent,
		Confidence:       intentResult.Confidence,
		EmotionalTone:    response.EmotionalTone,
		TurnCount:        state.CallerTurns(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Strategy:         strategy,
	}
	if decision.Terminate {
		out.TerminationReason = decision.Reason
		// The spoken goodbye always matches the termination reason,
		// whatever strategy produced the drafted reply.
		if decision.FinalUtterance != "" {
			out.Response = decision.FinalUtterance
		}
		e.scheduleEnd(in.CallID, decision.Reason)
	}

	if budget := e.cfg.TurnDeadline; budget > 0 && time.Since(start) > budget {
		e.logger.Warn("turn exceeded latency budget",
			"call_id", in.CallID,
			"budget_ms", budget.Milliseconds(),
			"took_ms", out.ProcessingTimeMS)
	}
	return out, nil
}

// ClassifyIntent exposes the classifier for the boundary endpoint.
func (e *Engine) ClassifyIntent(ctx context.Context, text, callID string) models.IntentResult {
	var state *models.DialogueState
	if callID != "" {
		if snap, err := e.tracker.Snapshot(ctx, callID); err == nil {
			state = snap
		}
	}
	return e.classifier.Classify(ctx, text, state, nil)
}

// ConversationSnapshot returns a copy of the call's dialogue state.
func (e *Engine) ConversationSnapshot(ctx context.Context, callID string) (*models.DialogueState, error) {
	return e.tracker.Snapshot(ctx, callID)
}

// CheckTermination exposes the decider for the boundary endpoint.
func (e *Engine) CheckTermination(ctx context.Context, callID string) (*models.TerminationDecision, error) {
	state, err := e.tracker.Snapshot(ctx, callID)
	if err != nil {
		return nil, err
	}
	decision := e.decider.Decide(state, nil, time.Now())
	return &decision, nil
}

// EndCall terminates a call synchronously (boundary use).
func (e *Engine) EndCall(ctx context.Context, callID, reason string) (*models.CallSummary, error) {
	state, err := e.tracker.Snapshot(ctx, callID)
	if err != nil {
		return nil, err
	}
	summary, err := e.tracker.End(ctx, callID, reason)
	if err != nil {
		return nil, err
	}
	if e.endSink != nil {
		e.endSink.OnCallEnd(ctx, summary, state)
	}
	return summary, nil
}

// scheduleEnd finishes the call off the request path. The reply has
// already been produced; ending must not delay it.
func (e *Engine) scheduleEnd(callID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), endGrace)
		defer cancel()
		if _, err := e.EndCall(ctx, callID, reason); err != nil {
			e.logger.Error("async call end failed", "call_id", callID, "error", err)
		}
	}()
}

func (e *Engine) loadProfile(ctx context.Context, in TurnInput) *models.UserProfile {
	if in.Profile != nil {
		return in.Profile
	}
	if e.profiles != nil {
		if p, err := e.profiles.UserProfile(ctx, in.UserID); err == nil && p != nil {
			return p
		}
	}
	return models.DefaultUserProfile(in.UserID)
}

func (e *Engine) loadSpamProfile(ctx context.Context, fp string) *models.SpamProfile {
	if fp == "" || e.profiles == nil {
		return nil
	}
	p, err := e.profiles.SpamProfile(ctx, fp)
	if err != nil {
		return nil
	}
	return p
}

// keyedMutex is a sharded per-call lock; turns of one call serialize,
// distinct calls proceed in parallel.
type keyedMutex struct {
	shards [64]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.shards[h.Sum32()%uint32(len(k.shards))]
	m.Lock()
	return m.Unlock
}
