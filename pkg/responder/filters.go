package responder

import (
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

var hedges = []string{"不好意思，", "抱歉，", "可能", "或许", "大概"}

var gratitudeOpenings = []string{"谢谢您的来电，", "感谢来电，", "谢谢您，"}

// personalityFilter applies per-personality rewrite rules to the raw
// response text.
func personalityFilter(text string, p models.Personality) string {
	switch p {
	case models.PersonalityPolite:
		if !strings.HasPrefix(text, "不好意思") && !strings.HasPrefix(text, "抱歉") &&
			!strings.HasPrefix(text, "谢谢") {
			return "不好意思，" + text
		}
	case models.PersonalityDirect:
		for _, h := range hedges {
			text = strings.ReplaceAll(text, h, "")
		}
	case models.PersonalityHumorous:
		if !strings.HasPrefix(text, "哈哈") {
			return "哈哈，" + text
		}
	case models.PersonalityProfessional:
		replacer := strings.NewReplacer(
			"不要", "请勿",
			"挺好的", "足以满足需求",
			"哈哈，", "",
		)
		text = replacer.Replace(text)
	}
	return text
}

// emotionController adjusts the response for the caller's emotional tone.
func emotionController(text, tone string) string {
	switch tone {
	case "aggressive":
		// Stay calm and drop hedging so the refusal reads steady.
		for _, h := range hedges {
			text = strings.ReplaceAll(text, h, "")
		}
	case "persistent":
		for _, g := range gratitudeOpenings {
			text = strings.TrimPrefix(text, g)
		}
	case "friendly":
		if !strings.Contains(text, "谢谢") && !strings.Contains(text, "感谢") {
			text = "谢谢您的来电，" + text
		}
	}
	return text
}

// responseTone derives the final emotional tone from lexical markers of
// the generated text.
func responseTone(text string) string {
	switch {
	case strings.Contains(text, "请勿") || strings.Contains(text, "请不要") ||
		strings.Contains(text, "不要再") || strings.Contains(text, "挂断"):
		return "firm"
	case strings.Contains(text, "哈哈"):
		return "humorous"
	case strings.Contains(text, "谢谢") || strings.Contains(text, "不好意思") ||
		strings.Contains(text, "抱歉"):
		return "polite"
	}
	return "neutral"
}

// truncate enforces the hard output ceiling in runes.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
