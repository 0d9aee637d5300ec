package responder

import (
	"fmt"
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/llm"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// promptHistoryTurns bounds how many past turns enter the prompt.
const promptHistoryTurns = 6

var stopSequences = []string{"\n\n", "USER:", "AI:"}

var personaDescriptions = map[models.Personality]string{
	models.PersonalityPolite:       "你的语气礼貌克制，委婉但明确地拒绝",
	models.PersonalityDirect:       "你的语气直接干脆，不绕弯子",
	models.PersonalityHumorous:     "你的语气轻松幽默，用玩笑化解推销",
	models.PersonalityProfessional: "你的语气正式专业，用词严谨",
}

var styleDescriptions = map[models.SpeechStyle]string{
	models.StyleBrief:    "回答尽量简短，一句话以内",
	models.StyleNormal:   "回答保持简洁自然",
	models.StyleDetailed: "回答可以稍作解释",
	models.StyleFormal:   "用书面化的表达",
	models.StyleFriendly: "语气友好温和",
}

var stageDirectives = map[models.Stage]string{
	models.StageInitial:            "先弄清对方来意，不要透露个人信息",
	models.StageHandlingSales:      "明确表示不需要推销的产品",
	models.StageHandlingLoan:       "明确表示没有贷款需求",
	models.StageHandlingInvestment: "明确表示不参与投资理财",
	models.StageHandlingInsurance:  "明确表示不需要保险",
	models.StageHandlingTelecom:    "明确表示不更换套餐",
	models.StagePoliteDecline:      "礼貌但坚定地拒绝",
	models.StageFirmRejection:      "坚决拒绝，要求对方不要再来电",
	models.StageHangUpWarning:      "警告对方再继续就挂断电话",
	models.StageCallEnd:            "简短道别并结束通话",
}

// buildPrompt assembles the system message, the last ≤6 turns as
// role-tagged history, and the current caller utterance.
func buildPrompt(state *models.DialogueState, profile *models.UserProfile, callerText string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("你在替手机主人接听一个疑似骚扰电话。")
	if d, ok := personaDescriptions[profile.Personality]; ok {
		sb.WriteString(d)
		sb.WriteString("。")
	}
	if d, ok := styleDescriptions[profile.SpeechStyle]; ok {
		sb.WriteString(d)
		sb.WriteString("。")
	}
	if d, ok := stageDirectives[state.Stage]; ok {
		sb.WriteString(d)
		sb.WriteString("。")
	}
	sb.WriteString(fmt.Sprintf("这是通话的第%d轮。", state.TurnCount+1))

	// The current caller turn is already the tail of the recorded state;
	// it goes in as the explicit final user message, not as history.
	history := state.LastTurns(promptHistoryTurns)
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Speaker == models.SpeakerCaller && last.Text == callerText {
			history = history[:n-1]
		}
	}

	messages := []llm.Message{{Role: "system", Content: sb.String()}}
	for _, turn := range history {
		role := "user"
		if turn.Speaker == models.SpeakerAI {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: "user", Content: callerText})
	return messages
}

// temperatureFor derives the sampling temperature from the personality.
func temperatureFor(p models.Personality) float64 {
	const base = 0.7
	switch p {
	case models.PersonalityHumorous:
		return base + 0.2
	case models.PersonalityProfessional:
		return base - 0.2
	}
	return base
}

// maxTokensFor derives the token cap from the speech style: brief halves
// the normal budget, detailed doubles it.
func maxTokensFor(s models.SpeechStyle) int {
	const normal = 40
	switch s {
	case models.StyleBrief:
		return normal / 2
	case models.StyleDetailed:
		return normal * 2
	}
	return normal
}
