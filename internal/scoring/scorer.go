// Package scoring implements the scorer and explanation builder (C8):
// a multiplicative modifier stack applied to each detector's raw
// score, plus a deterministic, data-driven explanation record.
// Grounded on internal/domain/scoring/composite.go's weighted
// component-then-attribution shape, collapsed from a multi-factor
// composite score to a single modifier-stack multiplier per alert
// candidate.
package scoring

import (
	"fmt"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// Modifier adjusts a candidate's raw score by a bounded multiplier,
// given the full feature set it was detected from. Every modifier
// must return a value in [0.5, 1.5]; Scorer clamps defensively if one
// doesn't.
type Modifier struct {
	Name string
	Fn   func(cand domain.AlertCandidate, fs domain.FeatureSet) float64
}

// LiquidityModifier discounts candidates on illiquid chains (wide
// near-the-money spreads) and rewards tight ones.
func LiquidityModifier() Modifier {
	return Modifier{
		Name: "liquidity",
		Fn: func(_ domain.AlertCandidate, fs domain.FeatureSet) float64 {
			if fs.Liquidity.MeanSpreadPctNearMoney == nil {
				return 1.0
			}
			spread := *fs.Liquidity.MeanSpreadPctNearMoney
			switch {
			case spread <= 3:
				return 1.15
			case spread <= 8:
				return 1.0
			case spread <= 15:
				return 0.85
			default:
				return 0.6
			}
		},
	}
}

// TrendAlignmentModifier adjusts only regime_shift candidates, by the
// 20/50-day trend: 1.1 when SMA20 is above SMA50, 0.95 otherwise.
// Every other detector gets 1.0; a candidate's own direction is not
// compared with the trend.
func TrendAlignmentModifier() Modifier {
	return Modifier{
		Name: "trend_alignment",
		Fn: func(cand domain.AlertCandidate, fs domain.FeatureSet) float64 {
			if fs.Technicals.SMA20 == nil || fs.Technicals.SMA50 == nil {
				return 1.0
			}
			uptrend := *fs.Technicals.SMA20 > *fs.Technicals.SMA50
			switch cand.DetectorName {
			case "rich_premium", "term_kink":
				return 1.0 // direction-neutral detectors
			case "regime_shift":
				if uptrend {
					return 1.1
				}
				return 0.95
			default:
				_ = uptrend
				return 1.0
			}
		},
	}
}

// EventProximityModifier rewards candidates close to a known earnings
// date, where IV dynamics are most actionable.
func EventProximityModifier() Modifier {
	return Modifier{
		Name: "event_proximity",
		Fn: func(_ domain.AlertCandidate, fs domain.FeatureSet) float64 {
			if fs.Event.DaysToEarnings == nil {
				return 1.0
			}
			d := *fs.Event.DaysToEarnings
			if d >= 0 && d <= 3 {
				return 1.2
			}
			if d >= 0 && d <= 10 {
				return 1.05
			}
			return 1.0
		},
	}
}

// DefaultModifiers returns the standard modifier stack applied to
// every candidate.
func DefaultModifiers() []Modifier {
	return []Modifier{LiquidityModifier(), TrendAlignmentModifier(), EventProximityModifier()}
}

// Scorer applies a modifier stack to raw detector scores and builds
// the deterministic explanation attached to each admitted alert.
type Scorer struct {
	modifiers []Modifier
}

// NewScorer builds a Scorer with the given modifier stack.
func NewScorer(modifiers []Modifier) *Scorer {
	return &Scorer{modifiers: modifiers}
}

// ScoreResult is one candidate's final score plus the per-modifier
// multipliers that produced it, for explanation and debugging.
type ScoreResult struct {
	FinalScore    float64
	Multipliers   map[string]float64
}

// Score applies every modifier in order, multiplicatively, clamping
// each modifier's contribution to [0.5, 1.5] before combining.
func (s *Scorer) Score(cand domain.AlertCandidate, fs domain.FeatureSet) ScoreResult {
	final := cand.RawScore
	mults := make(map[string]float64, len(s.modifiers))
	for _, m := range s.modifiers {
		mult := domain.Clip(m.Fn(cand, fs), 0.5, 1.5)
		mults[m.Name] = mult
		final *= mult
	}
	final = domain.Clip(final, 0, 100)
	return ScoreResult{FinalScore: final, Multipliers: mults}
}

// Explain builds the deterministic, data-driven explanation record for
// an admitted alert.
func (s *Scorer) Explain(cand domain.AlertCandidate, fs domain.FeatureSet, result ScoreResult, now time.Time) domain.Explanation {
	summary, rationale, bias := explanationText(cand, fs)

	keyMetrics := make([]domain.KeyMetric, 0, len(cand.Metrics))
	for name, v := range cand.Metrics {
		keyMetrics = append(keyMetrics, domain.KeyMetric{Name: name, Value: v, Unit: unitFor(name)})
	}

	var risks, opportunities, monitoring []string
	switch cand.DetectorName {
	case "low_iv":
		opportunities = append(opportunities, "long volatility structures are priced favourably relative to realised moves")
		risks = append(risks, "low IV can persist for extended periods without a catalyst")
		monitoring = append(monitoring, "watch for an upcoming catalyst that could repricing implied volatility higher")
	case "rich_premium":
		opportunities = append(opportunities, "premium-selling structures collect elevated time value")
		risks = append(risks, "a large realised move would outrun the premium collected")
		monitoring = append(monitoring, "reassess if implied volatility continues climbing past the current percentile")
	case "earnings_crush":
		opportunities = append(opportunities, "post-earnings IV collapse favours short-vol structures into the print")
		risks = append(risks, "an earnings surprise can produce a realised move that exceeds the crush benefit")
		monitoring = append(monitoring, "confirm the earnings date has not moved before acting")
	case "term_kink":
		opportunities = append(opportunities, "calendar structures can monetise the term-structure inversion")
		risks = append(risks, "backwardation often reflects a real near-term risk, not a mispricing")
		monitoring = append(monitoring, "watch whether the term structure normalises or steepens further")
	case "skew_anomaly":
		opportunities = append(opportunities, "skew-relative-value structures (risk reversals, ratio spreads) are favourably priced")
		risks = append(risks, "skew can remain anomalous for a long stretch without mean-reverting")
		monitoring = append(monitoring, "track whether skew moves back toward its typical range")
	case "regime_shift":
		opportunities = append(opportunities, "directional structures aligned with the new regime may benefit from continuation")
		risks = append(risks, "a moving-average cross can reverse quickly in choppy conditions")
		monitoring = append(monitoring, "confirm the cross holds over the next few sessions before sizing up")
	}

	return domain.Explanation{
		Summary:              summary,
		Rationale:            rationale,
		KeyMetrics:           keyMetrics,
		DirectionalBias:       bias,
		RiskFactors:           risks,
		Opportunities:         opportunities,
		Timeframe:             "0-30 days",
		NextMonitoringPoints:  monitoring,
		Timestamp:             now,
	}
}

func explanationText(cand domain.AlertCandidate, fs domain.FeatureSet) (summary, rationale string, bias domain.DirectionalBias) {
	switch cand.DetectorName {
	case "low_iv":
		return fmt.Sprintf("%s implied volatility is unusually low", fs.Ticker),
			fmt.Sprintf("front-month ATM IV sits at the %.0fth percentile of its trailing window while realised volatility has stayed higher", valueOr(fs.IV.IVPercentile)),
			domain.Neutral
	case "rich_premium":
		return fmt.Sprintf("%s options are pricing rich relative to realised volatility", fs.Ticker),
			fmt.Sprintf("front-month ATM IV sits at the %.0fth percentile of its trailing window", valueOr(fs.IV.IVPercentile)),
			domain.Neutral
	case "earnings_crush":
		return fmt.Sprintf("%s has an earnings-driven IV crush setup", fs.Ticker),
			fmt.Sprintf("earnings are %d days away with IV rank at %.0f", intOr(fs.Event.DaysToEarnings), valueOr(fs.IV.IVRank)),
			domain.Neutral
	case "term_kink":
		return fmt.Sprintf("%s's implied-volatility term structure is inverted", fs.Ticker),
			fmt.Sprintf("term slope is %.4f vol points per day, front richer than back", valueOr(fs.IV.TermSlope)),
			domain.Neutral
	case "skew_anomaly":
		bias := domain.Bearish
		if fs.IV.Skew25D != nil && *fs.IV.Skew25D < 0 {
			bias = domain.Bullish
		}
		return fmt.Sprintf("%s's 25-delta skew is anomalous", fs.Ticker),
			fmt.Sprintf("25-delta put/call skew is %.4f, outside the typical range", valueOr(fs.IV.Skew25D)),
			bias
	case "regime_shift":
		bias := domain.Bearish
		if fs.Technicals.SMA50 != nil && fs.Technicals.SMA200 != nil && *fs.Technicals.SMA50 > *fs.Technicals.SMA200 {
			bias = domain.Bullish
		}
		return fmt.Sprintf("%s is showing a trend regime shift", fs.Ticker),
			"the 50-day and 200-day moving averages have crossed with RSI confirming momentum",
			bias
	default:
		return fmt.Sprintf("%s triggered %s", fs.Ticker, cand.DetectorName), "", domain.Neutral
	}
}

func valueOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOr(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func unitFor(name string) string {
	switch name {
	case "iv_percentile", "iv_rank", "sma_gap_pct":
		return "pct"
	case "days_to_earnings":
		return "days"
	default:
		return ""
	}
}
