// Package termination decides, each turn, whether the call should end
// and with which final utterance.
package termination

import (
	"log/slog"
	"sync"
	"time"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
	"github.com/halton/ai-answer-ninja-sub000/pkg/models"
)

// Rule thresholds not exposed through configuration.
const (
	ineffectivenessThreshold = 0.3
	ineffectivenessMinTurns  = 4
)

// finalUtterances maps each termination reason to its closing line.
var finalUtterances = map[string]string{
	models.ReasonExplicitTermination:  "好的，就到这里，再见。",
	models.ReasonMaxTurnsExceeded:     "我们已经聊了很久了，就到这里吧，再见。",
	models.ReasonMaxDurationExceeded:  "不好意思，我还有事，先挂了，再见。",
	models.ReasonExcessivePersistence: "我已经说得很清楚了，请不要再打来，再见。",
	models.ReasonHighFrustration:      "这通电话到此为止，再见。",
	models.ReasonIneffectiveResponses: "看来我们谈不到一起，就这样吧，再见。",
}

// Decider evaluates the ordered termination rules. Thresholds adapt at
// most once per adaptation window.
type Decider struct {
	mu                   sync.Mutex
	maxTurns             int
	maxDuration          time.Duration
	persistenceThreshold float64
	frustrationThreshold float64
	adaptationWindow     time.Duration
	lastAdaptation       time.Time

	logger *slog.Logger
}

// NewDecider builds a Decider from engine configuration.
func NewDecider(cfg *config.EngineConfig, adaptationWindow time.Duration, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		maxTurns:             cfg.MaxTurns,
		maxDuration:          cfg.MaxDuration,
		persistenceThreshold: cfg.PersistenceThreshold,
		frustrationThreshold: cfg.FrustrationThreshold,
		adaptationWindow:     adaptationWindow,
		logger:               logger.With("component", "termination.decider"),
	}
}

// Decide runs the rule table against the state and the current response.
func (d *Decider) Decide(state *models.DialogueState, resp *models.AIResponse, now time.Time) models.TerminationDecision {
	metrics := deriveMetrics(state, resp, now)

	d.mu.Lock()
	maxTurns := d.maxTurns
	maxDuration := d.maxDuration
	persistenceThreshold := d.persistenceThreshold
	frustrationThreshold := d.frustrationThreshold
	d.mu.Unlock()

	if reason, ok := applyRules(metrics, maxTurns, maxDuration, persistenceThreshold, frustrationThreshold); ok {
		return models.TerminationDecision{
			Terminate:      true,
			Reason:         reason,
			FinalUtterance: finalUtterances[reason],
			Metrics:        metrics,
		}
	}

	return models.TerminationDecision{
		Terminate:            false,
		ContinuationStrategy: continuation(metrics),
		Metrics:              metrics,
	}
}

// applyRules evaluates the termination rules in their fixed order; the
// first match wins.
func applyRules(m models.TerminationMetrics, maxTurns int, maxDuration time.Duration, persistenceThreshold, frustrationThreshold float64) (string, bool) {
	switch {
	case m.ShouldTerminate:
		return models.ReasonExplicitTermination, true
	case m.TurnCount >= maxTurns:
		return models.ReasonMaxTurnsExceeded, true
	case m.DurationSeconds >= maxDuration.Seconds():
		return models.ReasonMaxDurationExceeded, true
	case m.Persistence >= persistenceThreshold:
		return models.ReasonExcessivePersistence, true
	case m.Frustration >= frustrationThreshold:
		return models.ReasonHighFrustration, true
	case m.Effectiveness < ineffectivenessThreshold && m.TurnCount > ineffectivenessMinTurns:
		return models.ReasonIneffectiveResponses, true
	}
	return "", false
}

// continuation suggests how to steer the next turn when the call goes on.
func continuation(m models.TerminationMetrics) string {
	switch {
	case m.Persistence > 0.6:
		return models.ContinueEscalateFirmness
	case m.Frustration > 0.6:
		return models.ContinueDeEscalate
	case m.Effectiveness < 0.5:
		return models.ContinueChangeApproach
	}
	return models.ContinueMaintainCurrent
}

// Adapt nudges thresholds based on observed outcomes: a low success rate
// loosens one step, an excessive termination rate tightens one. At most
// one adjustment per adaptation window.
func (d *Decider) Adapt(successRate, terminationRate float64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.adaptationWindow > 0 && now.Sub(d.lastAdaptation) < d.adaptationWindow {
		return false
	}

	switch {
	case successRate < 0.8:
		d.maxTurns++
		d.persistenceThreshold = clamp01(d.persistenceThreshold + 0.05)
	case terminationRate > 0.7:
		if d.maxTurns > 2 {
			d.maxTurns--
		}
		d.persistenceThreshold = clamp01(d.persistenceThreshold - 0.05)
	default:
		return false
	}

	d.lastAdaptation = now
	d.logger.Info("termination thresholds adapted",
		"max_turns", d.maxTurns,
		"persistence_threshold", d.persistenceThreshold,
		"success_rate", successRate,
		"termination_rate", terminationRate)
	return true
}

// Thresholds returns the current (possibly adapted) rule thresholds.
func (d *Decider) Thresholds() (maxTurns int, persistenceThreshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxTurns, d.persistenceThreshold
}
