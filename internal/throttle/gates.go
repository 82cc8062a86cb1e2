// Package throttle implements the throttler and risk gate (C9): daily
// alert cap, per-ticker cooldown (time + minimum score improvement),
// and portfolio risk gating, as an ordered list of named checks that
// each contribute a pass/fail/message/metrics record so a rejection is
// always explainable. Grounded on internal/domain/gates/evaluate.go's
// GateReason / EvaluateAllGates pattern, generalised from per-ticker
// entry gates to this engine's admission checks.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// GateReason is the result of one named admission check.
type GateReason struct {
	Name    string
	Passed  bool
	Message string
	Metrics map[string]float64
}

// Result is the outcome of evaluating every gate for one candidate.
type Result struct {
	Admitted      bool
	OverallReason string
	Reasons       []GateReason
}

// Config bounds the throttler's behaviour.
type Config struct {
	DailyCap              int
	CooldownDuration       time.Duration
	MinScoreImprovement    float64
	MaxConcentrationPct    float64 // per-ticker notional as a % of portfolio value
	MarginGateThresholdPct float64 // required margin as a % of margin_available above which the gate rejects
	CashGateThresholdPct   float64 // required cash as a % of cash_available above which the gate rejects
}

// Inputs bundles everything Evaluate needs for one candidate.
type Inputs struct {
	Ticker          domain.Ticker
	FinalScore      float64
	Now             time.Time
	DailyCount      int
	Cooldown        *domain.CooldownRecord
	Account         *domain.AccountState
	UnderlyingPrice *float64 // from the candidate's FeatureSet, nil if absent
}

// optionsContractMultiplier is the standard equity-option shares-per-
// contract multiplier used to turn an underlying price into a notional.
const optionsContractMultiplier = 100

// naiveMarginRatePct estimates the Reg-T-style initial margin a single
// naked short contract ties up, as a percentage of its notional. There is
// no options-pricing-derived margin model here; this is a deliberately
// crude proxy used only to exercise the margin gate.
const naiveMarginRatePct = 20

// Evaluate runs the daily-cap, cooldown and risk-concentration gates
// in order, collecting every reason even after the first failure, so
// a rejected candidate's full picture is always available for the
// alert lifecycle's audit trail.
func Evaluate(ctx context.Context, cfg Config, in Inputs) Result {
	result := Result{Admitted: true, Reasons: make([]GateReason, 0, 3)}

	dailyReason := evaluateDailyCap(cfg, in)
	result.Reasons = append(result.Reasons, dailyReason)
	if !dailyReason.Passed {
		result.Admitted = false
		result.OverallReason = "blocked_by_daily_cap: " + dailyReason.Message
	}

	cooldownReason := evaluateCooldown(cfg, in)
	result.Reasons = append(result.Reasons, cooldownReason)
	if !cooldownReason.Passed {
		result.Admitted = false
		if result.OverallReason == "" {
			result.OverallReason = "blocked_by_cooldown: " + cooldownReason.Message
		}
	}

	riskReason := evaluateRisk(cfg, in)
	result.Reasons = append(result.Reasons, riskReason)
	if !riskReason.Passed {
		result.Admitted = false
		if result.OverallReason == "" {
			result.OverallReason = "blocked_by_risk: " + riskReason.Message
		}
	}

	return result
}

func evaluateDailyCap(cfg Config, in Inputs) GateReason {
	passed := in.DailyCount < cfg.DailyCap
	msg := "within daily cap"
	if !passed {
		msg = fmt.Sprintf("daily cap of %d alerts reached", cfg.DailyCap)
	}
	return GateReason{
		Name:   "daily_cap",
		Passed: passed,
		Message: msg,
		Metrics: map[string]float64{
			"daily_count": float64(in.DailyCount),
			"daily_cap":   float64(cfg.DailyCap),
		},
	}
}

func evaluateCooldown(cfg Config, in Inputs) GateReason {
	if in.Cooldown == nil {
		return GateReason{Name: "cooldown", Passed: true, Message: "no prior alert for ticker", Metrics: map[string]float64{}}
	}
	elapsed := in.Now.Sub(in.Cooldown.LastAlertTS)
	timeOK := elapsed >= cfg.CooldownDuration
	improvement := in.FinalScore - in.Cooldown.LastScore
	improvementOK := improvement >= cfg.MinScoreImprovement

	passed := timeOK || improvementOK
	msg := "cooldown satisfied"
	if !passed {
		msg = fmt.Sprintf("last alert %s ago, score improvement %.2f below required %.2f",
			elapsed.Round(time.Second), improvement, cfg.MinScoreImprovement)
	}
	return GateReason{
		Name:   "cooldown",
		Passed: passed,
		Message: msg,
		Metrics: map[string]float64{
			"elapsed_seconds":     elapsed.Seconds(),
			"score_improvement":   improvement,
			"min_improvement":     cfg.MinScoreImprovement,
		},
	}
}

func evaluateRisk(cfg Config, in Inputs) GateReason {
	if in.Account == nil {
		// No account configured: defaults permit the alert, with the
		// pass recorded as a warning-equivalent message.
		return GateReason{
			Name:   "risk",
			Passed: true,
			Message: "no account state configured, risk gate not evaluated",
			Metrics: map[string]float64{},
		}
	}

	total := in.Account.TotalPortfolioValue()
	if total <= 0 {
		return GateReason{Name: "risk", Passed: true, Message: "portfolio value is zero, risk gate skipped", Metrics: map[string]float64{}}
	}

	var notional float64
	if in.UnderlyingPrice != nil {
		notional = *in.UnderlyingPrice * optionsContractMultiplier
	}
	requiredMargin := notional * naiveMarginRatePct / 100
	requiredCash := notional

	marginOK := requiredMargin <= cfg.MarginGateThresholdPct/100*in.Account.MarginAvailable
	cashOK := requiredCash <= cfg.CashGateThresholdPct/100*in.Account.CashAvailable

	var existingNotional float64
	for _, p := range in.Account.Positions {
		if p.Ticker == in.Ticker {
			existingNotional += p.Notional
		}
	}
	concentrationPct := (existingNotional + notional) / total * 100
	concentrationOK := concentrationPct <= cfg.MaxConcentrationPct

	passed := marginOK && cashOK && concentrationOK
	msg := "within margin, cash and concentration limits"
	switch {
	case !marginOK:
		msg = fmt.Sprintf("required margin %.2f exceeds %.1f%% of available margin %.2f", requiredMargin, cfg.MarginGateThresholdPct, in.Account.MarginAvailable)
	case !cashOK:
		msg = fmt.Sprintf("required cash %.2f exceeds %.1f%% of available cash %.2f", requiredCash, cfg.CashGateThresholdPct, in.Account.CashAvailable)
	case !concentrationOK:
		msg = fmt.Sprintf("position would be %.1f%% of portfolio, limit is %.1f%%", concentrationPct, cfg.MaxConcentrationPct)
	}
	return GateReason{
		Name:   "risk",
		Passed: passed,
		Message: msg,
		Metrics: map[string]float64{
			"required_margin":   requiredMargin,
			"required_cash":     requiredCash,
			"concentration_pct": concentrationPct,
			"max_concentration": cfg.MaxConcentrationPct,
		},
	}
}
