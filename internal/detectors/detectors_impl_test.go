package detectors

import (
	"math"
	"testing"

	"github.com/sawpanic/optionsignal/internal/domain"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }
func sp(v string) *string   { return &v }

func TestLowIV_FiresAtSpecScenario(t *testing.T) {
	// End-to-end scenario: lo=25, iv_percentile=12 -> raw_score=52.
	d := LowIV{Lo: 25}
	fs := domain.FeatureSet{Ticker: "AAPL", IV: domain.IVMetrics{IVPercentile: fp(12)}}
	cand, err := d.Detect(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cand == nil {
		t.Fatal("expected LowIV to fire")
	}
	if math.Abs(cand.RawScore-52) > 1e-9 {
		t.Errorf("expected raw_score=52, got %.4f", cand.RawScore)
	}
}

func TestLowIV_DoesNotFireAboveLo(t *testing.T) {
	d := LowIV{Lo: 25}
	cand, _ := d.Detect(domain.FeatureSet{IV: domain.IVMetrics{IVPercentile: fp(26)}})
	if cand != nil {
		t.Error("expected LowIV not to fire above lo")
	}
}

func TestLowIV_DoesNotFireWithMissingInput(t *testing.T) {
	d := LowIV{Lo: 25}
	cand, err := d.Detect(domain.FeatureSet{})
	if err != nil || cand != nil {
		t.Error("expected LowIV to abstain when iv_percentile is absent")
	}
}

func TestRichPremium_FiresAboveHiWithSpecFormula(t *testing.T) {
	d := RichPremium{Hi: 90}
	fs := domain.FeatureSet{IV: domain.IVMetrics{IVPercentile: fp(95)}}
	cand, _ := d.Detect(fs)
	if cand == nil {
		t.Fatal("expected RichPremium to fire above hi")
	}
	want := 100 * (95.0 - 90) / (100 - 90)
	if math.Abs(cand.RawScore-want) > 1e-9 {
		t.Errorf("expected raw_score=%.2f, got %.2f", want, cand.RawScore)
	}
}

func TestRichPremium_DoesNotFireBelowHi(t *testing.T) {
	d := RichPremium{Hi: 90}
	cand, _ := d.Detect(domain.FeatureSet{IV: domain.IVMetrics{IVPercentile: fp(50)}})
	if cand != nil {
		t.Error("expected RichPremium not to fire below hi")
	}
}

func TestEarningsCrush_RequiresWindowAndRank(t *testing.T) {
	d := EarningsCrush{HiEarn: 60}

	fires := domain.FeatureSet{Event: domain.EventFeatures{DaysToEarnings: ip(2)}, IV: domain.IVMetrics{IVRank: fp(80)}}
	cand, _ := d.Detect(fires)
	if cand == nil {
		t.Fatal("expected EarningsCrush to fire with earnings in 2 days and iv_rank 80")
	}

	zeroDays := domain.FeatureSet{Event: domain.EventFeatures{DaysToEarnings: ip(0)}, IV: domain.IVMetrics{IVRank: fp(80)}}
	if cand, _ := d.Detect(zeroDays); cand != nil {
		t.Error("expected EarningsCrush not to fire for days_to_earnings=0 (window is [1,7])")
	}

	eightDays := domain.FeatureSet{Event: domain.EventFeatures{DaysToEarnings: ip(8)}, IV: domain.IVMetrics{IVRank: fp(80)}}
	if cand, _ := d.Detect(eightDays); cand != nil {
		t.Error("expected EarningsCrush not to fire for days_to_earnings=8")
	}

	lowRank := domain.FeatureSet{Event: domain.EventFeatures{DaysToEarnings: ip(2)}, IV: domain.IVMetrics{IVRank: fp(40)}}
	if cand, _ := d.Detect(lowRank); cand != nil {
		t.Error("expected EarningsCrush not to fire below hi_earn")
	}
}

func TestEarningsCrush_ScoreWeightedByProximity(t *testing.T) {
	d := EarningsCrush{HiEarn: 60}
	near := domain.FeatureSet{Event: domain.EventFeatures{DaysToEarnings: ip(1)}, IV: domain.IVMetrics{IVRank: fp(70)}}
	far := domain.FeatureSet{Event: domain.EventFeatures{DaysToEarnings: ip(7)}, IV: domain.IVMetrics{IVRank: fp(70)}}
	nearCand, _ := d.Detect(near)
	farCand, _ := d.Detect(far)
	if nearCand == nil || farCand == nil {
		t.Fatal("expected both to fire")
	}
	if nearCand.RawScore <= farCand.RawScore {
		t.Errorf("expected earnings-tomorrow score > earnings-in-a-week score, got %.2f vs %.2f", nearCand.RawScore, farCand.RawScore)
	}
}

func TestTermKink_FiresOnEitherDirection(t *testing.T) {
	d := TermKink{SlopeThreshold: 0.002}

	back := domain.FeatureSet{IV: domain.IVMetrics{TermSlope: fp(-0.01)}}
	if cand, _ := d.Detect(back); cand == nil {
		t.Error("expected TermKink to fire on a sharply negative term slope")
	}

	steep := domain.FeatureSet{IV: domain.IVMetrics{TermSlope: fp(0.01)}}
	if cand, _ := d.Detect(steep); cand == nil {
		t.Error("expected TermKink to fire on a sharply positive term slope")
	}

	flat := domain.FeatureSet{IV: domain.IVMetrics{TermSlope: fp(0.001)}}
	if cand, _ := d.Detect(flat); cand != nil {
		t.Error("expected TermKink not to fire within the threshold")
	}
}

func TestSkewAnomaly_FiresPastKStdevFromZScore(t *testing.T) {
	d := SkewAnomaly{K: 2.0}

	high := domain.FeatureSet{IV: domain.IVMetrics{SkewZScore60D: fp(2.5)}}
	if cand, _ := d.Detect(high); cand == nil {
		t.Error("expected SkewAnomaly to fire above +k stdev")
	}

	low := domain.FeatureSet{IV: domain.IVMetrics{SkewZScore60D: fp(-3.0)}}
	if cand, _ := d.Detect(low); cand == nil {
		t.Error("expected SkewAnomaly to fire below -k stdev")
	}

	normal := domain.FeatureSet{IV: domain.IVMetrics{SkewZScore60D: fp(0.5)}}
	if cand, _ := d.Detect(normal); cand != nil {
		t.Error("expected SkewAnomaly not to fire within k stdev")
	}
}

func TestSkewAnomaly_AbsentWithoutHistory(t *testing.T) {
	d := SkewAnomaly{K: 2.0}
	cand, err := d.Detect(domain.FeatureSet{IV: domain.IVMetrics{Skew25D: fp(0.2)}})
	if err != nil || cand != nil {
		t.Error("expected SkewAnomaly to abstain without a z-score")
	}
}

func TestRegimeShift_FiresOnSMACrossSignal(t *testing.T) {
	fs := domain.FeatureSet{
		Technicals: domain.Technicals{SMACrossSignal: sp("bullish"), SMA50: fp(110), SMA200: fp(100)},
	}
	cand, _ := RegimeShift{}.Detect(fs)
	if cand == nil {
		t.Fatal("expected RegimeShift to fire on a recent SMA crossover")
	}
}

func TestRegimeShift_FiresOnRSICrossSignal(t *testing.T) {
	fs := domain.FeatureSet{
		Technicals: domain.Technicals{RSICrossSignal: sp("overbought"), RSI14: fp(72)},
	}
	cand, _ := RegimeShift{}.Detect(fs)
	if cand == nil {
		t.Fatal("expected RegimeShift to fire on a recent RSI crossing")
	}
}

func TestRegimeShift_DoesNotFireWithoutASignal(t *testing.T) {
	fs := domain.FeatureSet{
		Technicals: domain.Technicals{SMA50: fp(110), SMA200: fp(100), RSI14: fp(55)},
	}
	cand, _ := RegimeShift{}.Detect(fs)
	if cand != nil {
		t.Error("expected RegimeShift not to fire without a crossover/crossing signal, regardless of current levels")
	}
}
