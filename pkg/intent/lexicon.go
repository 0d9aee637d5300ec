package intent

import (
	"regexp"

	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// categoryLexicon is the keyword layer's configuration for one intent
// category. The prior skews borderline scores toward categories the
// caller's spam profile already suggests.
type categoryLexicon struct {
	keywords []string
	patterns []*regexp.Regexp
	prior    float64
}

var categoryLexicons = map[string]categoryLexicon{
	models.IntentSalesCall: {
		keywords: []string{"推销", "促销", "优惠", "活动", "产品", "免费"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(限时|特价|折扣)`),
			regexp.MustCompile(`(了解|介绍)一下.{0,6}(产品|服务)`),
		},
		prior: 1.0,
	},
	models.IntentLoanOffer: {
		keywords: []string{"贷款", "借款", "利息", "额度", "银行"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(贷款|借款|放款)`),
			regexp.MustCompile(`(利[息率]|额度|征信)`),
			regexp.MustCompile(`(银行|金融|信贷).{0,8}(贷|借|款)`),
		},
		prior: 1.0,
	},
	models.IntentInvestmentPitch: {
		keywords: []string{"投资", "理财", "收益", "股票", "基金"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(投资|理财)`),
			regexp.MustCompile(`(收益|回报|年化)`),
			regexp.MustCompile(`(股票|基金|期货|内幕)`),
		},
		prior: 1.0,
	},
	models.IntentInsuranceSales: {
		keywords: []string{"保险", "保障", "保费", "理赔", "重疾"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(保险|保单)`),
			regexp.MustCompile(`(保费|保额|理赔)`),
		},
		prior: 1.0,
	},
	models.IntentTelecomPromo: {
		keywords: []string{"套餐", "流量", "话费", "宽带", "运营商"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(套餐|资费|月租)`),
			regexp.MustCompile(`(流量|话费|宽带)`),
		},
		prior: 1.0,
	},
}

// subCategoryLexicons maps category → sub-category → markers. The first
// sub-category whose lexicon matches the utterance is reported.
var subCategoryLexicons = map[string][]struct {
	name    string
	markers []string
}{
	models.IntentLoanOffer: {
		{"mortgage", []string{"房贷", "按揭", "房产抵押"}},
		{"consumer_loan", []string{"消费贷", "现金贷", "信用贷"}},
		{"business_loan", []string{"经营贷", "企业贷"}},
	},
	models.IntentInvestmentPitch: {
		{"stocks", []string{"股票", "牛股", "内幕"}},
		{"funds", []string{"基金", "定投"}},
		{"crypto", []string{"币", "区块链"}},
	},
	models.IntentInsuranceSales: {
		{"health", []string{"重疾", "医疗险", "健康险"}},
		{"life", []string{"寿险", "人寿"}},
		{"property", []string{"车险", "财产险"}},
	},
	models.IntentTelecomPromo: {
		{"data_plan", []string{"流量", "套餐"}},
		{"broadband", []string{"宽带", "光纤"}},
	},
	models.IntentSalesCall: {
		{"product", []string{"产品", "货"}},
		{"service", []string{"服务", "会员"}},
	},
}

// Tone lexicons, used for the emotional-tone hint only; the sentiment
// analyzer owns the authoritative emotion.
var toneLexicons = map[string][]string{
	"aggressive": {"必须", "马上", "赶紧", "你怎么", "听我说完", "别挂"},
	"persistent": {"再考虑", "真的", "机会难得", "最后一次", "就一分钟", "错过"},
	"friendly":   {"您好", "打扰了", "谢谢", "麻烦您", "祝您"},
}
