package models

// Known intent categories. IntentUnknown is never cached as a win and
// never participates in fusion scoring.
const (
	IntentUnknown         = "unknown"
	IntentSalesCall       = "sales_call"
	IntentLoanOffer       = "loan_offer"
	IntentInvestmentPitch = "investment_pitch"
	IntentInsuranceSales  = "insurance_sales"
	IntentTelecomPromo    = "telecom_promo"
)

// KnownIntents lists the classifiable categories in declaration order.
var KnownIntents = []string{
	IntentSalesCall,
	IntentLoanOffer,
	IntentInvestmentPitch,
	IntentInsuranceSales,
	IntentTelecomPromo,
}

// IntentResult is the classifier's verdict for one utterance.
type IntentResult struct {
	Intent            string   `json:"intent"`
	Confidence        float64  `json:"confidence"`
	SubCategory       string   `json:"sub_category,omitempty"`
	EmotionalTone     string   `json:"emotional_tone"`
	KeywordsMatched   []string `json:"keywords_matched,omitempty"`
	ContextInfluenced bool     `json:"context_influenced"`
}

// SentimentScore is the document-level polarity verdict.
type SentimentScore struct {
	Label      string             `json:"label"` // positive, negative, neutral
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// EmotionScore is the primary-emotion verdict.
type EmotionScore struct {
	Primary    string             `json:"primary"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// ConversationAnalysis is the combined sentiment/emotion analysis for one
// utterance.
type ConversationAnalysis struct {
	Sentiment             SentimentScore `json:"sentiment"`
	Emotion               EmotionScore   `json:"emotion"`
	IntentSignals         []string       `json:"intent_signals,omitempty"`
	PersistenceIndicators []string       `json:"persistence_indicators,omitempty"`
	TerminationSignals    []string       `json:"termination_signals,omitempty"`
	EmotionalIntensity    float64        `json:"emotional_intensity"`
	StagePrediction       string         `json:"stage_prediction"`

	// Source records which backend produced the analysis: "local",
	// "remote", "fallback", or "neutral" when every backend failed.
	Source string `json:"source"`
}

// AIResponse is the response generator's output for one turn.
type AIResponse struct {
	Text             string   `json:"text"`
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	EmotionalTone    string   `json:"emotional_tone"`
	Strategy         Strategy `json:"strategy"`
	ShouldTerminate  bool     `json:"should_terminate"`
	NextStage        Stage    `json:"next_stage"`
	GenerationTimeMS int64    `json:"generation_time_ms"`
	Cached           bool     `json:"cached"`
	ContextHash      string   `json:"context_hash"`
}

// TerminationMetrics are the derived per-turn signals the decider rules
// evaluate against.
type TerminationMetrics struct {
	TurnCount          int     `json:"turn_count"`
	DurationSeconds    float64 `json:"duration_seconds"`
	Persistence        float64 `json:"persistence"`
	Frustration        float64 `json:"frustration"`
	Effectiveness      float64 `json:"effectiveness"`
	Aggression         float64 `json:"aggression"`
	RepetitionRatio    float64 `json:"repetition_ratio"`
	ResponseConfidence float64 `json:"response_confidence"`
	ShouldTerminate    bool    `json:"should_terminate"`
}

// Termination reasons, in rule order.
const (
	ReasonExplicitTermination  = "explicit_termination"
	ReasonMaxTurnsExceeded     = "max_turns_exceeded"
	ReasonMaxDurationExceeded  = "max_duration_exceeded"
	ReasonExcessivePersistence = "excessive_persistence"
	ReasonHighFrustration      = "high_frustration"
	ReasonIneffectiveResponses = "ineffective_responses"
)

// Continuation suggestions returned when no termination rule fires.
const (
	ContinueEscalateFirmness = "escalate_firmness"
	ContinueDeEscalate       = "de_escalate"
	ContinueChangeApproach   = "change_approach"
	ContinueMaintainCurrent  = "maintain_current"
)

// TerminationDecision is the decider's output.
type TerminationDecision struct {
	Terminate            bool               `json:"terminate"`
	Reason               string             `json:"reason,omitempty"`
	FinalUtterance       string             `json:"final_utterance,omitempty"`
	ContinuationStrategy string             `json:"continuation_strategy,omitempty"`
	Metrics              TerminationMetrics `json:"metrics"`
}
