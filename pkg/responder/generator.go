// Package responder generates the AI side of the conversation: strategy-
// and persona-conditioned text, produced from a fingerprint-keyed cache,
// the LLM, or the template bank, in that order.
package responder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/llm"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// CachePrefix is the Redis namespace for cached responses.
const CachePrefix = "response"

// maxResponseRunes is the hard output ceiling.
const maxResponseRunes = 500

// fallbackTerminateTurns: when generation itself failed, terminate on
// doubt once the caller has pushed this far.
const fallbackTerminateTurns = 6

// CachedResponse is the response-cache value.
type CachedResponse struct {
	Text          string          `json:"text"`
	Confidence    float64         `json:"confidence"`
	Strategy      models.Strategy `json:"strategy"`
	EmotionalTone string          `json:"emotional_tone"`
}

// Request carries everything one generation needs.
type Request struct {
	Strategy     models.Strategy
	State        *models.DialogueState
	Profile      *models.UserProfile
	Intent       models.IntentResult
	SpamCategory string
	CallerText   string
}

// Generator produces AIResponses. All failures resolve internally; it
// never returns an error.
type Generator struct {
	llm    llm.Completer                // nil forces the template bank
	cache  *cache.Cache[CachedResponse] // nil disables caching
	logger *slog.Logger

	maxTurns           int
	cacheConfidenceMin float64
}

// NewGenerator creates a Generator. completer and c may be nil.
func NewGenerator(completer llm.Completer, c *cache.Cache[CachedResponse], maxTurns int, cacheConfidenceMin float64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTurns <= 0 {
		maxTurns = 8
	}
	return &Generator{
		llm:                completer,
		cache:              c,
		logger:             logger.With("component", "responder.generator"),
		maxTurns:           maxTurns,
		cacheConfidenceMin: cacheConfidenceMin,
	}
}

// Fingerprint is the content address of a response: identical fingerprints
// resolve to identical text within the cache TTL.
func Fingerprint(strategy models.Strategy, stage models.Stage, callerTurns int, personality models.Personality, style models.SpeechStyle, spamCategory string) string {
	raw := fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		strategy, stage, callerTurns/3, personality, style, spamCategory)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate runs the response pipeline for one turn.
func (g *Generator) Generate(ctx context.Context, req Request) *models.AIResponse {
	start := time.Now()
	state := req.State
	profile := req.Profile
	if profile == nil {
		profile = models.DefaultUserProfile(state.UserID)
	}

	fp := Fingerprint(req.Strategy, state.Stage, state.CallerTurns(), profile.Personality, profile.SpeechStyle, req.SpamCategory)

	if g.cache != nil {
		hit, found, err := g.cache.Get(ctx, fp)
		if err != nil {
			g.logger.Warn("response cache read failed", "error", err)
		} else if found {
			return g.finish(req, state, hit.Text, hit.Confidence, hit.EmotionalTone, fp, true, start)
		}
	}

	text, confidence, fromTemplate := g.produce(ctx, req, state, profile)
	text = personalityFilter(text, profile.Personality)
	text = emotionController(text, req.Intent.EmotionalTone)
	text = truncate(text, maxResponseRunes)
	tone := responseTone(text)

	if !fromTemplate {
		confidence = g.blendConfidence(confidence, req)
	}

	if g.cache != nil && confidence >= g.cacheConfidenceMin {
		if err := g.cache.Set(ctx, fp, CachedResponse{
			Text:          text,
			Confidence:    confidence,
			Strategy:      req.Strategy,
			EmotionalTone: tone,
		}); err != nil {
			g.logger.Warn("response cache write failed", "error", err)
		}
	}

	return g.finish(req, state, text, confidence, tone, fp, false, start)
}

// produce returns text, a base confidence, and whether the template bank
// served it (the degraded path, pinned at confidence 0.5).
func (g *Generator) produce(ctx context.Context, req Request, state *models.DialogueState, profile *models.UserProfile) (string, float64, bool) {
	if g.llm != nil {
		resp, err := g.llm.Complete(ctx, llm.Request{
			Messages:    buildPrompt(state, profile, req.CallerText),
			Temperature: temperatureFor(profile.Personality),
			MaxTokens:   maxTokensFor(profile.SpeechStyle),
			Stop:        stopSequences,
		})
		if err == nil && resp.Content != "" {
			return resp.Content, 0.8, false
		}
		if err != nil {
			g.logger.Warn("llm generation failed, using template bank", "error", err)
		}
	}
	return templateResponse(state.Stage, req.SpamCategory, state.CallerTurns()/3), 0.5, true
}

// blendConfidence mixes the base generation confidence with the intent
// confidence, with a small boost for terminal strategies.
func (g *Generator) blendConfidence(base float64, req Request) float64 {
	confidence := base
	if req.Intent.Confidence > 0 {
		confidence = (base + req.Intent.Confidence) / 2
	}
	if req.Strategy.IsTerminal() {
		confidence += 0.1
	}
	return clamp01(confidence)
}

func (g *Generator) finish(req Request, state *models.DialogueState, text string, confidence float64, tone, fp string, cached bool, start time.Time) *models.AIResponse {
	return &models.AIResponse{
		Text:             text,
		Intent:           req.Intent.Intent,
		Confidence:       confidence,
		EmotionalTone:    tone,
		Strategy:         req.Strategy,
		ShouldTerminate:  g.shouldTerminate(req.Strategy, state),
		NextStage:        nextStageFor(req.Strategy, state.Stage),
		GenerationTimeMS: time.Since(start).Milliseconds(),
		Cached:           cached,
		ContextHash:      fp,
	}
}

// shouldTerminate: terminal strategies end the call outright; otherwise
// the caller exhausting the turn budget does.
func (g *Generator) shouldTerminate(strategy models.Strategy, state *models.DialogueState) bool {
	if strategy.IsTerminal() {
		return true
	}
	return state.CallerTurns() > g.maxTurns
}

// nextStageFor maps the chosen strategy onto the stage the conversation
// should settle in.
func nextStageFor(strategy models.Strategy, current models.Stage) models.Stage {
	switch strategy {
	case models.StrategyImmediateHangup:
		return models.StageCallEnd
	case models.StrategyFinalWarning:
		return models.StageHangUpWarning
	case models.StrategyFirmDecline, models.StrategyClearRefusal:
		return models.StageFirmRejection
	case models.StrategyGentleDecline, models.StrategyExplainNotInterested:
		return models.StagePoliteDecline
	}
	return current
}

// Fallback is the deterministic degraded response used when generation is
// impossible (for instance the turn deadline already expired).
func (g *Generator) Fallback(req Request) *models.AIResponse {
	state := req.State
	text := templateResponse(state.Stage, req.SpamCategory, state.CallerTurns()/3)
	return &models.AIResponse{
		Text:            text,
		Intent:          req.Intent.Intent,
		Confidence:      0.5,
		EmotionalTone:   responseTone(text),
		Strategy:        req.Strategy,
		ShouldTerminate: req.Strategy.IsTerminal() || state.CallerTurns() >= fallbackTerminateTurns,
		NextStage:       nextStageFor(req.Strategy, state.Stage),
	}
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
