package sentiment

// The closed emotion set, in declaration order. Declaration order breaks
// ties in the lexicon fallback.
var emotionOrder = []string{"anger", "disgust", "fear", "sadness", "joy", "surprise", "neutral"}

// intensityWeights convert emotion scores into the emotional-intensity
// scalar.
var intensityWeights = map[string]float64{
	"anger":    1.0,
	"disgust":  0.9,
	"fear":     0.8,
	"sadness":  0.7,
	"joy":      0.6,
	"surprise": 0.5,
	"neutral":  0,
}

var emotionLexicons = map[string][]string{
	"anger":    {"烦死", "滚", "闭嘴", "讨厌", "气死", "你怎么回事", "有毛病"},
	"disgust":  {"恶心", "无聊", "别再", "够了", "骚扰"},
	"fear":     {"害怕", "担心", "不敢", "吓"},
	"sadness":  {"唉", "难过", "算了", "失望"},
	"joy":      {"哈哈", "太好了", "开心", "不错", "谢谢"},
	"surprise": {"真的吗", "居然", "竟然", "没想到"},
}

var positiveLexicon = []string{"好的", "谢谢", "不错", "可以", "愿意", "有兴趣", "太好了"}

var negativeLexicon = []string{"不要", "不需要", "别打", "烦", "讨厌", "骚扰", "拒绝", "没兴趣", "滚"}

// persistenceLexicon marks caller utterances that push past a refusal.
var persistenceLexicon = []string{
	"再考虑", "再想想", "最后一次", "就一分钟", "机会难得", "真的很划算", "听我说完", "别急着拒绝",
}

// terminationLexicon marks utterances that signal the caller is wrapping up.
var terminationLexicon = []string{
	"再见", "拜拜", "不打扰", "挂了", "先这样", "下次再说", "祝您",
}

var intentSignalLexicon = []string{
	"贷款", "投资", "理财", "保险", "套餐", "优惠", "促销", "免费", "活动",
}

// stageLexicons drive the first-match stage prediction.
var stageLexicons = []struct {
	stage   string
	markers []string
}{
	{"opening", []string{"您好", "你好", "请问是", "打扰一下"}},
	{"presentation", []string{"介绍", "了解一下", "我们的产品", "推荐", "活动"}},
	{"objection", []string{"不需要", "没兴趣", "不用了", "别打了"}},
	{"closing", []string{"考虑一下", "加个微信", "发您资料", "约个时间"}},
	{"termination", []string{"再见", "拜拜", "挂了", "不打扰"}},
}
