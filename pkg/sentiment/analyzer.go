// Package sentiment produces the combined sentiment/emotion analysis for
// one caller utterance. Backends are tried in order (local model, remote
// text analytics, lexicon fallback); the first success wins, and a
// fully-neutral analysis covers total failure.
package sentiment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
	"github.com/halton/ai-answer-ninja-sub000/pkg/textanalytics"
)

// CachePrefix is the Redis namespace for cached analyses.
const CachePrefix = "sentiment"

// Backend sources.
const (
	SourceLocal    = "local"
	SourceRemote   = "remote"
	SourceFallback = "fallback"
	SourceNeutral  = "neutral"
)

// Analyzer runs the backend chain behind a read-through cache.
type Analyzer struct {
	local  *localModel            // nil when no model path configured
	remote textanalytics.Analyzer // nil when no endpoint configured
	lang   string

	cache  *cache.Cache[models.ConversationAnalysis] // nil disables caching
	logger *slog.Logger
}

// NewAnalyzer wires the chain. localModelPath may be empty; remote may be
// nil; cache may be nil. Call Warmup to arm the local backend.
func NewAnalyzer(localModelPath string, remote textanalytics.Analyzer, lang string, c *cache.Cache[models.ConversationAnalysis], logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sentiment.analyzer")
	if lang == "" {
		lang = "zh-Hans"
	}

	a := &Analyzer{remote: remote, lang: lang, cache: c, logger: logger}
	if localModelPath != "" {
		a.local = newLocalModel(localModelPath, logger)
	}
	return a
}

// Warmup loads the local model in the background. Safe to skip; requests
// route to the remote backend until it completes.
func (a *Analyzer) Warmup() {
	if a.local == nil {
		return
	}
	go a.local.Warmup()
}

// Ready reports whether the local backend is warmed.
func (a *Analyzer) Ready() bool { return a.local != nil && a.local.Ready() }

// Analyze never fails: any backend error falls through the chain, and a
// neutral analysis with confidence 0.5 covers everything failing.
func (a *Analyzer) Analyze(ctx context.Context, text string) *models.ConversationAnalysis {
	text = strings.TrimSpace(text)
	if text == "" {
		return neutralAnalysis()
	}

	key := cache.TextKey(text)
	if a.cache != nil {
		cached, found, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("sentiment cache read failed", "error", err)
		} else if found {
			return &cached
		}
	}

	sent, emo, source := a.runChain(ctx, text)
	analysis := a.compose(text, sent, emo, source)

	if a.cache != nil && source != SourceNeutral {
		if err := a.cache.Set(ctx, key, *analysis); err != nil {
			a.logger.Warn("sentiment cache write failed", "error", err)
		}
	}
	return analysis
}

func (a *Analyzer) runChain(ctx context.Context, text string) (models.SentimentScore, models.EmotionScore, string) {
	if a.local != nil && a.local.Ready() {
		sent, emo, err := a.local.Analyze(ctx, text)
		if err == nil {
			return sent, emo, SourceLocal
		}
		a.logger.Warn("local sentiment backend failed", "error", err)
	}

	if a.remote != nil {
		sent, err := a.analyzeRemote(ctx, text)
		if err == nil {
			// The remote service scores polarity only; the emotion label
			// still comes from the lexicon.
			_, emo := lexiconAnalyze(text)
			return sent, emo, SourceRemote
		}
		a.logger.Warn("remote sentiment backend failed", "error", err)
	}

	sent, emo := lexiconAnalyze(text)
	return sent, emo, SourceFallback
}

func (a *Analyzer) analyzeRemote(ctx context.Context, text string) (models.SentimentScore, error) {
	docs := []textanalytics.Document{{ID: uuid.NewString(), Text: text, Language: a.lang}}
	results, err := a.remote.AnalyzeSentiment(ctx, docs)
	if err != nil {
		return models.SentimentScore{}, err
	}
	if len(results) == 0 {
		return models.SentimentScore{Label: "neutral", Confidence: 0.5}, nil
	}

	r := results[0]
	label := r.Sentiment
	if label == "mixed" {
		label = "neutral"
	}
	return models.SentimentScore{
		Label:      label,
		Confidence: r.ConfidenceScores[r.Sentiment],
		Scores:     r.ConfidenceScores,
	}, nil
}

// lexiconAnalyze is the last-resort backend: per-emotion score is
// min(1, 0.3 + 0.2·matches), ties broken by declaration order.
func lexiconAnalyze(text string) (models.SentimentScore, models.EmotionScore) {
	scores := map[string]float64{}
	for _, emotion := range emotionOrder {
		matches := 0
		for _, w := range emotionLexicons[emotion] {
			if strings.Contains(text, w) {
				matches++
			}
		}
		if matches > 0 {
			scores[emotion] = clamp01(0.3 + 0.2*float64(matches))
		}
	}

	emo := models.EmotionScore{Primary: "neutral", Confidence: 0.5, Scores: scores}
	var best float64
	for _, emotion := range emotionOrder {
		if scores[emotion] > best {
			best = scores[emotion]
			emo.Primary = emotion
			emo.Confidence = best
		}
	}

	pos, neg := 0, 0
	for _, w := range positiveLexicon {
		if strings.Contains(text, w) {
			pos++
		}
	}
	for _, w := range negativeLexicon {
		if strings.Contains(text, w) {
			neg++
		}
	}
	sent := models.SentimentScore{Label: "neutral", Confidence: 0.5}
	switch {
	case neg > pos:
		sent = models.SentimentScore{Label: "negative", Confidence: clamp01(0.3 + 0.2*float64(neg))}
	case pos > neg:
		sent = models.SentimentScore{Label: "positive", Confidence: clamp01(0.3 + 0.2*float64(pos))}
	}
	return sent, emo
}

// compose fills the analysis fields shared by every backend.
func (a *Analyzer) compose(text string, sent models.SentimentScore, emo models.EmotionScore, source string) *models.ConversationAnalysis {
	return &models.ConversationAnalysis{
		Sentiment:             sent,
		Emotion:               emo,
		IntentSignals:         matchAll(text, intentSignalLexicon),
		PersistenceIndicators: matchAll(text, persistenceLexicon),
		TerminationSignals:    matchAll(text, terminationLexicon),
		EmotionalIntensity:    intensity(emo.Scores),
		StagePrediction:       predictStage(text),
		Source:                source,
	}
}

func matchAll(text string, lexicon []string) []string {
	var matched []string
	for _, w := range lexicon {
		if strings.Contains(text, w) {
			matched = append(matched, w)
		}
	}
	return matched
}

// intensity is the weighted sum of emotion scores under the fixed
// per-emotion weights, clamped to [0,1].
func intensity(scores map[string]float64) float64 {
	var total float64
	for emotion, score := range scores {
		total += intensityWeights[emotion] * score
	}
	return clamp01(total)
}

// predictStage first-matches the stage keyword sets; unknown otherwise.
func predictStage(text string) string {
	for _, s := range stageLexicons {
		for _, marker := range s.markers {
			if strings.Contains(text, marker) {
				return s.stage
			}
		}
	}
	return "unknown"
}

// Weight returns the intensity weight for an emotion label; unknown
// labels weigh zero. The termination decider uses it for frustration.
func Weight(emotion string) float64 { return intensityWeights[emotion] }

func neutralAnalysis() *models.ConversationAnalysis {
	return &models.ConversationAnalysis{
		Sentiment:       models.SentimentScore{Label: "neutral", Confidence: 0.5},
		Emotion:         models.EmotionScore{Primary: "neutral", Confidence: 0.5},
		StagePrediction: "unknown",
		Source:          SourceNeutral,
	}
}
