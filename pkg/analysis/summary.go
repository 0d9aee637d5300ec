package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/llm"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// SummaryStyle selects prompt template and token cap.
type SummaryStyle string

const (
	SummaryBrief         SummaryStyle = "brief"
	SummaryComprehensive SummaryStyle = "comprehensive"
	SummaryDetailed      SummaryStyle = "detailed"
)

var summaryTokenCaps = map[SummaryStyle]int{
	SummaryBrief:         80,
	SummaryComprehensive: 200,
	SummaryDetailed:      400,
}

var summaryDirectives = map[SummaryStyle]string{
	SummaryBrief:         "用一两句话概括这通电话。",
	SummaryComprehensive: "总结这通电话的来意、应答过程和结局。",
	SummaryDetailed:      "详细总结这通电话：来电目的、对话走向、应答策略的效果、结束原因。",
}

// SummaryGenerator produces the natural-language call summary, with a
// deterministic template fallback when the LLM is unavailable.
type SummaryGenerator struct {
	llm llm.Completer // nil forces the template path
}

// NewSummaryGenerator creates a generator. completer may be nil.
func NewSummaryGenerator(completer llm.Completer) *SummaryGenerator {
	return &SummaryGenerator{llm: completer}
}

// Summarize builds the prompt from call metadata, the formatted
// conversation, content findings, and effectiveness metrics.
func (s *SummaryGenerator) Summarize(ctx context.Context, record *models.CallRecord, content map[string]any, effectiveness *EffectivenessReport, style SummaryStyle) string {
	if _, ok := summaryTokenCaps[style]; !ok {
		style = SummaryComprehensive
	}

	if s.llm != nil {
		resp, err := s.llm.Complete(ctx, llm.Request{
			Messages: []llm.Message{
				{Role: "system", Content: "你是通话记录分析助手。" + summaryDirectives[style]},
				{Role: "user", Content: s.promptBody(record, content, effectiveness)},
			},
			Temperature: 0.3,
			MaxTokens:   summaryTokenCaps[style],
		})
		if err == nil && strings.TrimSpace(resp.Content) != "" {
			return strings.TrimSpace(resp.Content)
		}
	}
	return s.templateSummary(record, content, effectiveness)
}

func (s *SummaryGenerator) promptBody(record *models.CallRecord, content map[string]any, effectiveness *EffectivenessReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "通话ID：%s，时长%.0f秒，共%d轮，结束原因：%s。\n",
		record.CallID, record.DurationSeconds(), len(record.Transcript), record.EndReason)

	sb.WriteString("对话内容：\n")
	for _, turn := range record.Transcript {
		role := "来电者"
		if turn.Speaker == models.SpeakerAI {
			role = "助手"
		}
		fmt.Fprintf(&sb, "%s：%s\n", role, turn.Text)
	}

	if category, ok := content["category"].(string); ok && category != "" {
		fmt.Fprintf(&sb, "识别类别：%s。\n", category)
	}
	if effectiveness != nil {
		fmt.Fprintf(&sb, "应答效果评分：%.2f。\n", effectiveness.Overall)
	}
	return sb.String()
}

// templateSummary is the deterministic fallback built from the same
// inputs as the prompt.
func (s *SummaryGenerator) templateSummary(record *models.CallRecord, content map[string]any, effectiveness *EffectivenessReport) string {
	category := "未知类型"
	if c, ok := content["category"].(string); ok && c != "" {
		category = categoryLabel(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "一通%s来电，共%d轮对话，持续%.0f秒。",
		category, len(record.Transcript), record.DurationSeconds())
	if record.EndReason != "" {
		fmt.Fprintf(&sb, "通话因%s结束。", reasonLabel(record.EndReason))
	}
	if effectiveness != nil {
		fmt.Fprintf(&sb, "应答效果评分%.2f。", effectiveness.Overall)
	}
	return sb.String()
}

func categoryLabel(category string) string {
	labels := map[string]string{
		models.IntentSalesCall:       "产品推销",
		models.IntentLoanOffer:       "贷款推销",
		models.IntentInvestmentPitch: "投资理财推销",
		models.IntentInsuranceSales:  "保险推销",
		models.IntentTelecomPromo:    "运营商促销",
	}
	if l, ok := labels[category]; ok {
		return l
	}
	return "未知类型"
}

func reasonLabel(reason string) string {
	labels := map[string]string{
		models.ReasonExplicitTermination:  "对方告别",
		models.ReasonMaxTurnsExceeded:     "轮数达到上限",
		models.ReasonMaxDurationExceeded:  "时长达到上限",
		models.ReasonExcessivePersistence: "对方过度纠缠",
		models.ReasonHighFrustration:      "对方情绪激动",
		models.ReasonIneffectiveResponses: "应答无效",
	}
	if l, ok := labels[reason]; ok {
		return l
	}
	return reason
}
