package responder

import "github.com/halton/ai-answer-ninja-sub000/pkg/models"

// templateBank is the deterministic fallback when the LLM is unavailable,
// indexed by (stage, spam category). Lookup order: exact pair, stage
// default, global default; the bank always yields a non-empty string.
var templateBank = map[models.Stage]map[string][]string{
	models.StageInitial: {
		"": {
			"您好，请问有什么事吗？",
			"您好，哪位？",
		},
	},
	models.StageHandlingSales: {
		models.IntentSalesCall: {
			"谢谢，我对这类产品不感兴趣。",
			"我不需要，谢谢您的介绍。",
		},
		"": {"谢谢，我不需要。"},
	},
	models.StageHandlingLoan: {
		models.IntentLoanOffer: {
			"谢谢，我目前没有贷款需求。",
			"我不需要贷款，请不要再推荐了。",
		},
		"": {"我没有资金方面的需求，谢谢。"},
	},
	models.StageHandlingInvestment: {
		models.IntentInvestmentPitch: {
			"我不做这类投资，谢谢。",
			"理财的事我自己有安排，不用了。",
		},
		"": {"我对投资理财不感兴趣。"},
	},
	models.StageHandlingInsurance: {
		models.IntentInsuranceSales: {
			"保险我已经配置好了，不需要了。",
			"谢谢，我不考虑新的保险。",
		},
		"": {"我不需要保险产品，谢谢。"},
	},
	models.StageHandlingTelecom: {
		models.IntentTelecomPromo: {
			"我的套餐够用，不换了，谢谢。",
			"不用了，现在的资费挺好的。",
		},
		"": {"我不需要换套餐，谢谢。"},
	},
	models.StagePoliteDecline: {
		"": {
			"真的不需要，谢谢您的好意。",
			"不好意思，我对这个没有兴趣。",
		},
	},
	models.StageFirmRejection: {
		"": {
			"我已经说得很清楚了，不需要。",
			"请不要再打这个电话了。",
		},
	},
	models.StageHangUpWarning: {
		"": {
			"如果您继续这样，我只能挂断电话了。",
			"请停止骚扰，否则我将挂断并举报。",
		},
	},
	models.StageCallEnd: {
		"": {
			"再见。",
			"就这样，再见。",
		},
	},
}

const defaultTemplate = "谢谢，我不需要，再见。"

// templateResponse picks a deterministic variant for the fingerprint's
// turn bucket so identical fingerprints produce byte-identical text.
func templateResponse(stage models.Stage, spamCategory string, turnBucket int) string {
	byCategory, ok := templateBank[stage]
	if !ok {
		return defaultTemplate
	}
	variants, ok := byCategory[spamCategory]
	if !ok || len(variants) == 0 {
		variants = byCategory[""]
	}
	if len(variants) == 0 {
		return defaultTemplate
	}
	return variants[turnBucket%len(variants)]
}
