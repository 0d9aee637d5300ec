package intent

import (
	"math"
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// keywordLayer scores each category as
// 0.6·keyword_match_ratio + 0.4·pattern_match_ratio, weighted by the
// category prior, and reports the winner with confidence min(1, 1.5·score).
func keywordLayer(text string, priors map[string]float64) models.IntentResult {
	best := models.IntentResult{Intent: models.IntentUnknown}
	var bestScore float64
	var bestMatched []string

	for _, category := range models.KnownIntents {
		lex := categoryLexicons[category]
		var matched []string
		for _, kw := range lex.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		patternHits := 0
		for _, p := range lex.patterns {
			if p.MatchString(text) {
				patternHits++
			}
		}
		if len(matched) == 0 && patternHits == 0 {
			continue
		}

		kwRatio := float64(len(matched)) / float64(len(lex.keywords))
		patRatio := float64(patternHits) / float64(len(lex.patterns))
		prior := lex.prior
		if p, ok := priors[category]; ok {
			prior *= p
		}
		score := (0.6*kwRatio + 0.4*patRatio) * prior
		if score > bestScore {
			bestScore = score
			best.Intent = category
			bestMatched = matched
		}
	}

	if best.Intent == models.IntentUnknown {
		return best
	}
	best.Confidence = math.Min(1, 1.5*bestScore)
	best.KeywordsMatched = bestMatched
	return best
}

// semanticFeatures reduces an utterance to a fixed-length vector: one
// length feature followed by a per-category keyword density.
func semanticFeatures(text string) []float64 {
	features := make([]float64, 1+len(models.KnownIntents))
	features[0] = math.Min(1, float64(len([]rune(text)))/20)
	for i, category := range models.KnownIntents {
		hits := 0
		for _, kw := range categoryLexicons[category].keywords {
			hits += strings.Count(text, kw)
		}
		features[1+i] = math.Min(1, 0.5*float64(hits))
	}
	return features
}

// semanticReference returns the fixed reference vector for a category:
// mid-range length, full density in its own slot.
func semanticReference(categoryIdx int) []float64 {
	ref := make([]float64, 1+len(models.KnownIntents))
	ref[0] = 0.5
	ref[1+categoryIdx] = 1
	return ref
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// semanticLayer picks the category whose reference vector is closest to
// the utterance's feature vector; confidence is the similarity itself.
func semanticLayer(text string) models.IntentResult {
	features := semanticFeatures(text)

	hasSignal := false
	for _, d := range features[1:] {
		if d > 0 {
			hasSignal = true
			break
		}
	}
	if !hasSignal {
		return models.IntentResult{Intent: models.IntentUnknown}
	}

	best := models.IntentResult{Intent: models.IntentUnknown}
	for i, category := range models.KnownIntents {
		sim := cosine(features, semanticReference(i))
		if sim > best.Confidence {
			best.Intent = category
			best.Confidence = sim
		}
	}
	return best
}

// contextLayer reports the dominant recent intent when the history is
// deep enough. Share ≥ 0.7 is reported as-is with context_influenced set;
// a weaker majority is damped to 0.8·share.
func contextLayer(state *models.DialogueState) models.IntentResult {
	if state == nil || len(state.IntentHistory) < 3 {
		return models.IntentResult{Intent: models.IntentUnknown}
	}

	recent := state.RecentIntents(5)
	counts := make(map[string]int, len(recent))
	for _, it := range recent {
		if it != models.IntentUnknown && it != "" {
			counts[it]++
		}
	}

	var winner string
	var winnerCount int
	for _, category := range models.KnownIntents {
		if counts[category] > winnerCount {
			winner = category
			winnerCount = counts[category]
		}
	}
	if winner == "" {
		return models.IntentResult{Intent: models.IntentUnknown}
	}

	share := float64(winnerCount) / float64(len(recent))
	if share >= 0.7 {
		return models.IntentResult{Intent: winner, Confidence: share, ContextInfluenced: true}
	}
	return models.IntentResult{Intent: winner, Confidence: 0.8 * share}
}

// emotionalTone counts tone-lexicon matches and picks the densest
// category; neutral when nothing clears the threshold.
func emotionalTone(text string) string {
	const threshold = 1
	bestTone := "neutral"
	bestCount := threshold - 1
	for _, tone := range []string{"aggressive", "persistent", "friendly"} {
		count := 0
		for _, w := range toneLexicons[tone] {
			if strings.Contains(text, w) {
				count++
			}
		}
		if count > bestCount {
			bestTone = tone
			bestCount = count
		}
	}
	return bestTone
}

// subCategory reports the first configured sub-category whose markers
// match the utterance.
func subCategory(text, category string) string {
	for _, sub := range subCategoryLexicons[category] {
		for _, marker := range sub.markers {
			if strings.Contains(text, marker) {
				return sub.name
			}
		}
	}
	return ""
}
