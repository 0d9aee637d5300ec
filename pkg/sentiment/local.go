package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// localModel is the on-box term-weight sentiment model behind a readiness
// gate: until Warmup finishes, Ready reports false and the analyzer routes
// to the next backend.
type localModel struct {
	path   string
	logger *slog.Logger
	ready  atomic.Bool

	terms modelFile
}

// modelFile is the serialized model: per-emotion term weights plus
// polarity weights for the sentiment label.
type modelFile struct {
	Emotions map[string]map[string]float64 `json:"emotions"`
	Polarity map[string]float64            `json:"polarity"` // term → weight, sign is polarity
}

func newLocalModel(path string, logger *slog.Logger) *localModel {
	return &localModel{path: path, logger: logger}
}

// Warmup loads the model file. Run it in a background goroutine; requests
// arriving before it finishes fall through to the remote backend.
func (m *localModel) Warmup() {
	if m.path == "" {
		return
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		m.logger.Warn("local sentiment model unavailable", "path", m.path, "error", err)
		return
	}
	var parsed modelFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		m.logger.Warn("local sentiment model corrupt", "path", m.path, "error", err)
		return
	}
	m.terms = parsed
	m.ready.Store(true)
	m.logger.Info("local sentiment model warmed",
		"emotions", len(parsed.Emotions), "polarity_terms", len(parsed.Polarity))
}

func (m *localModel) Ready() bool { return m.ready.Load() }

// Analyze runs term-weight inference off the request goroutine so a large
// model never blocks the turn directly.
func (m *localModel) Analyze(ctx context.Context, text string) (models.SentimentScore, models.EmotionScore, error) {
	if !m.Ready() {
		return models.SentimentScore{}, models.EmotionScore{}, fmt.Errorf("local model not warmed")
	}

	type out struct {
		sent models.SentimentScore
		emo  models.EmotionScore
	}
	ch := make(chan out, 1)
	go func() {
		sent, emo := m.score(text)
		ch <- out{sent, emo}
	}()

	select {
	case <-ctx.Done():
		return models.SentimentScore{}, models.EmotionScore{}, ctx.Err()
	case result := <-ch:
		return result.sent, result.emo, nil
	}
}

func (m *localModel) score(text string) (models.SentimentScore, models.EmotionScore) {
	var polarity float64
	for term, weight := range m.terms.Polarity {
		if strings.Contains(text, term) {
			polarity += weight
		}
	}
	sent := models.SentimentScore{Label: "neutral", Confidence: 0.6}
	switch {
	case polarity > 0.2:
		sent = models.SentimentScore{Label: "positive", Confidence: clamp01(0.5 + polarity/2)}
	case polarity < -0.2:
		sent = models.SentimentScore{Label: "negative", Confidence: clamp01(0.5 - polarity/2)}
	}

	scores := map[string]float64{}
	for emotion, terms := range m.terms.Emotions {
		var s float64
		for term, weight := range terms {
			if strings.Contains(text, term) {
				s += weight
			}
		}
		if s > 0 {
			scores[emotion] = clamp01(s)
		}
	}
	emo := models.EmotionScore{Primary: "neutral", Confidence: 0.6, Scores: scores}
	var best float64
	for _, emotion := range emotionOrder {
		if scores[emotion] > best {
			best = scores[emotion]
			emo.Primary = emotion
			emo.Confidence = best
		}
	}
	return sent, emo
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
