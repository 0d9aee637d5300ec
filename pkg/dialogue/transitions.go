package dialogue

import (
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// Trigger is a classified condition observed at a turn boundary.
type Trigger string

// Triggers, in dominance order. goodbye dominates, then escalation, then
// question, then persistence, then intent. A candidate only fires when the
// transition table defines a rule for the current stage.
const (
	TriggerGoodbye              Trigger = "goodbye"
	TriggerEscalation           Trigger = "escalation"
	TriggerQuestion             Trigger = "question"
	TriggerContinuedPersistence Trigger = "continued_persistence"
	TriggerPersistence          Trigger = "persistence"
	TriggerIntent               Trigger = "intent"
	TriggerAny                  Trigger = "any"
	TriggerNone                 Trigger = ""
)

// minPersistenceRun is how many identical consecutive caller intents count
// as persistence.
const minPersistenceRun = 3

// minTurnsInFirmRejection is how many caller turns must pass inside
// firm_rejection before renewed pitching counts as continued persistence.
const minTurnsInFirmRejection = 2

var goodbyeLexicon = []string{
	"再见", "拜拜", "挂了", "不聊了", "先这样", "打扰了", "回聊", "下次再说", "goodbye", "bye",
}

var pitchLexicon = []string{
	"贷款", "利息", "额度", "利率", "优惠", "活动", "产品", "投资", "理财",
	"收益", "保险", "保障", "套餐", "流量", "了解一下", "考虑一下", "机会",
}

var aggressiveEmotions = map[string]bool{
	"anger":      true,
	"aggressive": true,
}

var interrogativeMarkers = []string{
	"吗", "呢", "什么", "怎么", "为什么", "多少", "哪", "几", "能不能", "可不可以",
}

// intentStages maps known intent categories to their handling stage.
var intentStages = map[string]models.Stage{
	models.IntentSalesCall:       models.StageHandlingSales,
	models.IntentLoanOffer:       models.StageHandlingLoan,
	models.IntentInvestmentPitch: models.StageHandlingInvestment,
	models.IntentInsuranceSales:  models.StageHandlingInsurance,
	models.IntentTelecomPromo:    models.StageHandlingTelecom,
}

// matchAny returns the first lexicon entry contained in text, or "".
func matchAny(text string, lexicon []string) string {
	for _, w := range lexicon {
		if strings.Contains(text, w) {
			return w
		}
	}
	return ""
}

func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "？") || strings.HasSuffix(trimmed, "?") {
		return true
	}
	return matchAny(trimmed, interrogativeMarkers) != ""
}

// repeatedIntent reports whether the last minPersistenceRun caller intents
// are all equal to a single known category.
func repeatedIntent(history []string) bool {
	if len(history) < minPersistenceRun {
		return false
	}
	recent := history[len(history)-minPersistenceRun:]
	first := recent[0]
	if first == models.IntentUnknown || first == "" {
		return false
	}
	for _, it := range recent[1:] {
		if it != first {
			return false
		}
	}
	return true
}

// nextStage applies the transition table for (stage, trigger, intent).
// The second return is false when no rule exists for the pair.
func nextStage(stage models.Stage, trigger Trigger, intent string) (models.Stage, bool) {
	switch trigger {
	case TriggerAny:
		if stage == models.StageHangUpWarning {
			return models.StageCallEnd, true
		}
	case TriggerGoodbye:
		if stage != models.StageCallEnd {
			return models.StageCallEnd, true
		}
	case TriggerEscalation:
		if stage == models.StageFirmRejection {
			return models.StageHangUpWarning, true
		}
	case TriggerQuestion:
		if stage.IsHandling() {
			return models.StagePoliteDecline, true
		}
	case TriggerContinuedPersistence:
		if stage == models.StageFirmRejection {
			return models.StageHangUpWarning, true
		}
	case TriggerPersistence:
		if stage.IsHandling() || stage == models.StagePoliteDecline {
			return models.StageFirmRejection, true
		}
	case TriggerIntent:
		if stage == models.StageInitial {
			if next, ok := intentStages[intent]; ok {
				return next, true
			}
		}
	}
	return stage, false
}

// classifyAndApply evaluates trigger candidates in dominance order against
// the current state and returns the fired trigger plus the resulting stage.
// Stage is unchanged when no rule matches.
func classifyAndApply(state *models.DialogueState, text, intent, emotion string) (Trigger, models.Stage) {
	callerTurns := state.CallerTurns()

	candidates := make([]Trigger, 0, 6)
	if state.Stage == models.StageHangUpWarning {
		candidates = append(candidates, TriggerAny)
	}
	if matchAny(text, goodbyeLexicon) != "" {
		candidates = append(candidates, TriggerGoodbye)
	}
	if aggressiveEmotions[emotion] {
		candidates = append(candidates, TriggerEscalation)
	}
	if isQuestion(text) {
		candidates = append(candidates, TriggerQuestion)
	}
	if state.Stage == models.StageFirmRejection &&
		matchAny(text, pitchLexicon) != "" &&
		callerTurns-state.StageEnteredTurn >= minTurnsInFirmRejection {
		candidates = append(candidates, TriggerContinuedPersistence)
	}
	if repeatedIntent(state.IntentHistory) {
		candidates = append(candidates, TriggerPersistence)
	}
	candidates = append(candidates, TriggerIntent)

	for _, trigger := range candidates {
		if next, ok := nextStage(state.Stage, trigger, intent); ok {
			return trigger, next
		}
	}
	return TriggerNone, state.Stage
}
