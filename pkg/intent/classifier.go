// Package intent classifies caller utterances into spam-call categories
// by fusing three independent layers: keyword matching, a small semantic
// feature model, and conversation context.
package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/cache"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// Layer fusion weights.
const (
	weightKeyword  = 0.3
	weightSemantic = 0.4
	weightContext  = 0.3
)

// spamPriorBoost skews the keyword layer toward the category a caller's
// spam profile already suggests.
const spamPriorBoost = 1.2

// CachePrefix is the Redis namespace for cached classifications.
const CachePrefix = "intent"

// FeedbackSink receives accuracy samples from LearnFromFeedback. The
// learning system implements it.
type FeedbackSink interface {
	RecordAccuracySample(text, predicted, correct string, confidence float64)
}

// Classifier fuses the three layers behind a read-through cache.
type Classifier struct {
	cache    *cache.Cache[models.IntentResult] // nil disables caching
	feedback FeedbackSink                      // nil discards feedback
	logger   *slog.Logger
}

// NewClassifier creates a Classifier. Both cache and feedback may be nil.
func NewClassifier(c *cache.Cache[models.IntentResult], feedback FeedbackSink, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		cache:    c,
		feedback: feedback,
		logger:   logger.With("component", "intent.classifier"),
	}
}

// Classify maps an utterance to an IntentResult. state and spam are
// optional context. On a cache hit no layer runs.
func (c *Classifier) Classify(ctx context.Context, text string, state *models.DialogueState, spam *models.SpamProfile) models.IntentResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.IntentResult{Intent: models.IntentUnknown, EmotionalTone: "neutral"}
	}

	key := cache.TextKey(text)
	if c.cache != nil {
		cached, found, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("intent cache read failed", "error", err)
		} else if found {
			return cached
		}
	}

	priors := map[string]float64{}
	if spam != nil && spam.Category != "" {
		priors[spam.Category] = spamPriorBoost
	}

	result := c.fuse(
		keywordLayer(text, priors),
		semanticLayer(text),
		contextLayer(state),
	)
	result.EmotionalTone = emotionalTone(text)
	if result.Intent != models.IntentUnknown {
		result.SubCategory = subCategory(text, result.Intent)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, result); err != nil {
			c.logger.Warn("intent cache write failed", "error", err)
		}
	}
	return result
}

// fuse runs the weighted vote. Scores accumulate as confidence·weight per
// proposed intent; the final confidence is the winning score divided by
// the weight mass of the layers that proposed a known intent, so a silent
// layer does not drag a unanimous verdict down.
func (c *Classifier) fuse(keyword, semantic, contextual models.IntentResult) models.IntentResult {
	type vote struct {
		res    models.IntentResult
		weight float64
	}
	votes := []vote{
		{keyword, weightKeyword},
		{semantic, weightSemantic},
		{contextual, weightContext},
	}

	scores := map[string]float64{}
	var participating float64
	for _, v := range votes {
		if v.res.Intent == models.IntentUnknown || v.res.Intent == "" {
			continue
		}
		scores[v.res.Intent] += v.res.Confidence * v.weight
		participating += v.weight
	}
	if len(scores) == 0 {
		return models.IntentResult{Intent: models.IntentUnknown}
	}

	var winner string
	var winnerScore float64
	for _, category := range models.KnownIntents {
		if scores[category] > winnerScore {
			winner = category
			winnerScore = scores[category]
		}
	}

	confidence := winnerScore / participating
	if confidence > 1 {
		confidence = 1
	}
	return models.IntentResult{
		Intent:            winner,
		Confidence:        confidence,
		KeywordsMatched:   keyword.KeywordsMatched,
		ContextInfluenced: contextual.ContextInfluenced && contextual.Intent == winner,
	}
}

// LearnFromFeedback records an accuracy sample and logs a warning when a
// high-confidence prediction turns out wrong.
func (c *Classifier) LearnFromFeedback(text, predicted, correct string, confidence float64) {
	if c.feedback != nil {
		c.feedback.RecordAccuracySample(text, predicted, correct, confidence)
	}
	if predicted != correct && confidence >= 0.8 {
		c.logger.Warn("high-confidence misclassification",
			"predicted", predicted, "correct", correct, "confidence", confidence)
	}
}
