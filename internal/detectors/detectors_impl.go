package detectors

import (
	"math"

	"github.com/sawpanic/optionsignal/internal/config"
	"github.com/sawpanic/optionsignal/internal/domain"
)

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LowIV fires when implied-vol percentile has collapsed to the bottom
// of its trailing window.
type LowIV struct{ Lo float64 }

// NewLowIV builds LowIV with its configured (or default) threshold.
func NewLowIV(cfg *config.Config) LowIV {
	return LowIV{Lo: cfg.DetectorThreshold("low_iv", "lo", 25)}
}

func (d LowIV) Name() string { return "low_iv" }

func (d LowIV) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	if fs.IV.IVPercentile == nil || d.Lo <= 0 {
		return nil, nil
	}
	ivp := *fs.IV.IVPercentile
	if ivp > d.Lo {
		return nil, nil
	}
	score := clip(100*(d.Lo-ivp)/d.Lo, 0, 100)
	return &domain.AlertCandidate{
		DetectorName: d.Name(),
		Ticker:       fs.Ticker,
		RawScore:     score,
		Metrics:      map[string]float64{"iv_percentile": ivp, "lo": d.Lo},
		RationaleKey: domain.RationaleLowIV,
	}, nil
}

// RichPremium fires when implied-vol percentile has blown out to the
// top of its trailing window — options are pricing in outsized moves.
type RichPremium struct{ Hi float64 }

// NewRichPremium builds RichPremium with its configured (or default)
// threshold.
func NewRichPremium(cfg *config.Config) RichPremium {
	return RichPremium{Hi: cfg.DetectorThreshold("rich_premium", "hi", 75)}
}

func (d RichPremium) Name() string { return "rich_premium" }

func (d RichPremium) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	if fs.IV.IVPercentile == nil || d.Hi >= 100 {
		return nil, nil
	}
	ivp := *fs.IV.IVPercentile
	if ivp < d.Hi {
		return nil, nil
	}
	score := clip(100*(ivp-d.Hi)/(100-d.Hi), 0, 100)
	return &domain.AlertCandidate{
		DetectorName: d.Name(),
		Ticker:       fs.Ticker,
		RawScore:     score,
		Metrics:      map[string]float64{"iv_percentile": ivp, "hi": d.Hi},
		RationaleKey: domain.RationaleRichPremium,
	}, nil
}

// EarningsCrush fires when an earnings print is imminent and implied
// vol rank is already elevated — the setup for a post-print vol crush.
type EarningsCrush struct{ HiEarn float64 }

// NewEarningsCrush builds EarningsCrush with its configured (or
// default) threshold.
func NewEarningsCrush(cfg *config.Config) EarningsCrush {
	return EarningsCrush{HiEarn: cfg.DetectorThreshold("earnings_crush", "hi_earn", 60)}
}

func (d EarningsCrush) Name() string { return "earnings_crush" }

func (d EarningsCrush) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	if fs.Event.DaysToEarnings == nil || fs.IV.IVRank == nil {
		return nil, nil
	}
	days := *fs.Event.DaysToEarnings
	if days < 1 || days > 7 {
		return nil, nil
	}
	ivRank := *fs.IV.IVRank
	if ivRank < d.HiEarn {
		return nil, nil
	}
	// Proximity weight: 1.0 the day before earnings, decaying to 1/7 at
	// the 7-day edge of the window.
	proximity := (8 - float64(days)) / 7
	score := clip(ivRank*proximity, 0, 100)
	return &domain.AlertCandidate{
		DetectorName: d.Name(),
		Ticker:       fs.Ticker,
		RawScore:     score,
		Metrics: map[string]float64{
			"iv_rank":          ivRank,
			"days_to_earnings": float64(days),
			"hi_earn":          d.HiEarn,
		},
		RationaleKey: domain.RationaleEarningsCrush,
	}, nil
}

// TermKink fires when the IV term structure's slope between front and
// back expirations has inverted or steepened past a threshold, in
// either direction.
type TermKink struct{ SlopeThreshold float64 }

// NewTermKink builds TermKink with its configured (or default)
// threshold.
func NewTermKink(cfg *config.Config) TermKink {
	return TermKink{SlopeThreshold: cfg.DetectorThreshold("term_kink", "slope_threshold", 0.002)}
}

func (d TermKink) Name() string { return "term_kink" }

func (d TermKink) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	if fs.IV.TermSlope == nil || d.SlopeThreshold <= 0 {
		return nil, nil
	}
	slope := *fs.IV.TermSlope
	if math.Abs(slope) < d.SlopeThreshold {
		return nil, nil
	}
	score := clip(100*math.Abs(slope)/d.SlopeThreshold, 0, 100)
	return &domain.AlertCandidate{
		DetectorName: d.Name(),
		Ticker:       fs.Ticker,
		RawScore:     score,
		Metrics:      map[string]float64{"term_slope": slope, "slope_threshold": d.SlopeThreshold},
		RationaleKey: domain.RationaleTermKink,
	}, nil
}

// SkewAnomaly fires when the 25-delta skew has moved more than k
// standard deviations away from its trailing 60-day mean.
type SkewAnomaly struct{ K float64 }

// NewSkewAnomaly builds SkewAnomaly with its configured (or default)
// z-score multiplier.
func NewSkewAnomaly(cfg *config.Config) SkewAnomaly {
	return SkewAnomaly{K: cfg.DetectorThreshold("skew_anomaly", "k", 2.0)}
}

func (d SkewAnomaly) Name() string { return "skew_anomaly" }

func (d SkewAnomaly) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	if fs.IV.SkewZScore60D == nil || d.K <= 0 {
		return nil, nil
	}
	z := *fs.IV.SkewZScore60D
	if math.Abs(z) < d.K {
		return nil, nil
	}
	score := clip(math.Abs(z)*25, 0, 100)
	return &domain.AlertCandidate{
		DetectorName: d.Name(),
		Ticker:       fs.Ticker,
		RawScore:     score,
		Metrics:      map[string]float64{"skew_zscore_60d": z, "k": d.K},
		RationaleKey: domain.RationaleSkewAnomaly,
	}, nil
}

// RegimeShift fires on a SMA50/SMA200 crossover within the last few
// sessions, or on RSI crossing its overbought/oversold thresholds.
type RegimeShift struct{}

// NewRegimeShift builds RegimeShift. It carries no tunable thresholds
// of its own — the crossover lookback and RSI levels live in the
// technicals computation that feeds it.
func NewRegimeShift(cfg *config.Config) RegimeShift {
	return RegimeShift{}
}

func (d RegimeShift) Name() string { return "regime_shift" }

func (d RegimeShift) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	t := fs.Technicals
	if t.SMACrossSignal == nil && t.RSICrossSignal == nil {
		return nil, nil
	}

	var score float64
	metrics := map[string]float64{}

	if t.SMA50 != nil && t.SMA200 != nil && *t.SMA200 != 0 {
		gapPct := (*t.SMA50 - *t.SMA200) / *t.SMA200 * 100
		metrics["sma_gap_pct"] = gapPct
		score += math.Abs(gapPct) * 10
	}
	if t.RSI14 != nil {
		metrics["rsi14"] = *t.RSI14
		score += math.Abs(*t.RSI14 - 50)
	}

	metrics["sma_cross"] = crossSignalValue(t.SMACrossSignal, "bullish")
	metrics["rsi_cross"] = crossSignalValue(t.RSICrossSignal, "overbought")

	return &domain.AlertCandidate{
		DetectorName: d.Name(),
		Ticker:       fs.Ticker,
		RawScore:     clip(score, 0, 100),
		Metrics:      metrics,
		RationaleKey: domain.RationaleRegimeShift,
	}, nil
}

// crossSignalValue maps an optional direction string to +1/-1/0 for the
// metrics bag: +1 when it equals up, -1 for the other direction, 0 when absent.
func crossSignalValue(signal *string, up string) float64 {
	if signal == nil {
		return 0
	}
	if *signal == up {
		return 1
	}
	return -1
}
