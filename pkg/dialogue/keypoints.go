package dialogue

import (
	"strings"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// keyPointWindow is the rune width of the window recorded around a marker.
const keyPointWindow = 20

// keyPointMarkers maps each intent category to the markers worth recording
// (amounts and terms for loans, rates and returns for investments, and so
// on). Only the first occurrence per turn is kept.
var keyPointMarkers = map[string][]string{
	models.IntentLoanOffer:       {"万", "额度", "利息", "利率", "期限", "分期", "年化"},
	models.IntentInvestmentPitch: {"收益", "回报", "年化", "涨", "股票", "基金", "翻倍"},
	models.IntentInsuranceSales:  {"保费", "保额", "理赔", "保障", "重疾", "年缴"},
	models.IntentSalesCall:       {"价格", "折扣", "优惠", "促销", "限时", "免费"},
	models.IntentTelecomPromo:    {"套餐", "流量", "话费", "宽带", "月租", "资费"},
}

// extractKeyPoint returns a ≤20-character window around the first category
// marker found in text, or "" when none matches.
func extractKeyPoint(text, intent string) string {
	markers, ok := keyPointMarkers[intent]
	if !ok {
		return ""
	}
	runes := []rune(text)
	for _, marker := range markers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		center := len([]rune(text[:idx]))
		half := keyPointWindow / 2
		start := center - half
		if start < 0 {
			start = 0
		}
		end := start + keyPointWindow
		if end > len(runes) {
			end = len(runes)
			if start = end - keyPointWindow; start < 0 {
				start = 0
			}
		}
		return string(runes[start:end])
	}
	return ""
}
