package engine

import "github.com/halton/ai-answer-ninja-sub000/pkg/models"

// Strategy selection: base table indexed by (stage, personality), then
// turn-count and aggression overrides.

var handlingStrategies = map[models.Personality]models.Strategy{
	models.PersonalityPolite:       models.StrategyExplainNotInterested,
	models.PersonalityDirect:       models.StrategyFirmDecline,
	models.PersonalityHumorous:     models.StrategyDeflectWithHumor,
	models.PersonalityProfessional: models.StrategyProfessionalResponse,
}

var strategyTable = map[models.Stage]map[models.Personality]models.Strategy{
	models.StageInitial: {
		models.PersonalityPolite:       models.StrategyGentleDecline,
		models.PersonalityDirect:       models.StrategyClearRefusal,
		models.PersonalityHumorous:     models.StrategyWittyResponse,
		models.PersonalityProfessional: models.StrategyProfessionalResponse,
	},
	models.StageHandlingSales:      handlingStrategies,
	models.StageHandlingLoan:       handlingStrategies,
	models.StageHandlingInvestment: handlingStrategies,
	models.StageHandlingInsurance:  handlingStrategies,
	models.StageHandlingTelecom:    handlingStrategies,
	models.StagePoliteDecline: {
		models.PersonalityPolite:       models.StrategyExplainNotInterested,
		models.PersonalityDirect:       models.StrategyClearRefusal,
		models.PersonalityHumorous:     models.StrategyWittyResponse,
		models.PersonalityProfessional: models.StrategyProfessionalResponse,
	},
	models.StageFirmRejection: {
		models.PersonalityPolite:       models.StrategyFirmDecline,
		models.PersonalityDirect:       models.StrategyClearRefusal,
		models.PersonalityHumorous:     models.StrategyFirmDecline,
		models.PersonalityProfessional: models.StrategyFirmDecline,
	},
	models.StageHangUpWarning: {
		models.PersonalityPolite:       models.StrategyFinalWarning,
		models.PersonalityDirect:       models.StrategyFinalWarning,
		models.PersonalityHumorous:     models.StrategyFinalWarning,
		models.PersonalityProfessional: models.StrategyFinalWarning,
	},
	models.StageCallEnd: {
		models.PersonalityPolite:       models.StrategyImmediateHangup,
		models.PersonalityDirect:       models.StrategyImmediateHangup,
		models.PersonalityHumorous:     models.StrategyImmediateHangup,
		models.PersonalityProfessional: models.StrategyImmediateHangup,
	},
}

// selectStrategy picks the response strategy for the updated state.
func selectStrategy(state *models.DialogueState, personality models.Personality, aggressive bool, maxTurns int) models.Strategy {
	if state.Stage == models.StageCallEnd {
		return models.StrategyImmediateHangup
	}
	if state.CallerTurns() > maxTurns {
		return models.StrategyFinalWarning
	}
	if state.CallerTurns() > 5 && aggressive {
		return models.StrategyFirmDecline
	}

	byPersonality, ok := strategyTable[state.Stage]
	if !ok {
		return models.StrategyGentleDecline
	}
	if strategy, ok := byPersonality[personality]; ok {
		return strategy
	}
	return byPersonality[models.PersonalityPolite]
}
