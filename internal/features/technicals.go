// Package features implements the feature engine (C6): technicals,
// realised-volatility estimators, implied-volatility metrics, Greeks
// and the Brent's-method IV solver, liquidity and event features.
// Every exported Compute* function is a pure function of its inputs;
// all of it returns nil for a field whenever the input series is too
// short, rather than a zero or NaN value.
//
// Technicals are grounded on internal/domain/indicators/technical.go's
// RSI (Wilder's smoothing) and ATR (true-range) implementations,
// generalised to SMA/EMA/MACD alongside them.
package features

import (
	"math"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// ptr is a small helper turning a computed float into the *float64
// the FeatureSet's "absent means nil" convention requires.
func ptr(v float64) *float64 { return &v }

// sma returns the simple moving average of the last period values of
// closes, or nil if closes is shorter than period.
func sma(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return ptr(sum / float64(period))
}

// emaSeries returns the full EMA series seeded by an SMA of the first
// period values, or nil if closes is shorter than period.
func emaSeries(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	out := make([]float64, len(closes))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += closes[i]
	}
	seed /= float64(period)
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	out[period-1] = seed
	alpha := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		out[i] = closes[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

func ema(closes []float64, period int) *float64 {
	series := emaSeries(closes, period)
	if series == nil {
		return nil
	}
	return ptr(series[len(series)-1])
}

// rsi14 computes the Relative Strength Index with Wilder's smoothing.
func rsi14(closes []float64, period int) *float64 {
	if len(closes) < period+1 {
		return nil
	}
	changes := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes[i-1] = closes[i] - closes[i-1]
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		return ptr(100.0)
	}
	rs := avgGain / avgLoss
	return ptr(100.0 - (100.0 / (1.0 + rs)))
}

// macd returns the MACD line, signal line and histogram from the
// standard 12/26/9 EMA configuration.
func macd(closes []float64) (line, signal, hist *float64) {
	fast := emaSeries(closes, 12)
	slow := emaSeries(closes, 26)
	if fast == nil || slow == nil {
		return nil, nil, nil
	}
	macdSeries := make([]float64, len(closes))
	for i := range closes {
		if i < 25 {
			macdSeries[i] = math.NaN()
			continue
		}
		macdSeries[i] = fast[i] - slow[i]
	}
	valid := macdSeries[25:]
	if len(valid) < 9 {
		l := macdSeries[len(macdSeries)-1]
		return ptr(l), nil, nil
	}
	sigSeries := emaSeries(valid, 9)
	l := macdSeries[len(macdSeries)-1]
	s := sigSeries[len(sigSeries)-1]
	return ptr(l), ptr(s), ptr(l - s)
}

// atr computes the Average True Range from high/low/close triples.
func atr(highs, lows, closes []float64, period int) *float64 {
	n := len(closes)
	if n < period+1 {
		return nil
	}
	trueRanges := make([]float64, n-1)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	avg := 0.0
	for i := 0; i < period; i++ {
		avg += trueRanges[i]
	}
	avg /= float64(period)
	for i := period; i < len(trueRanges); i++ {
		avg = (avg*float64(period-1) + trueRanges[i]) / float64(period)
	}
	return ptr(avg)
}

// smaSeries returns the full simple-moving-average series (NaN before
// the window fills), or nil if closes is shorter than period.
func smaSeries(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	out := make([]float64, len(closes))
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// rsiSeries returns the full Wilder's-smoothed RSI series (NaN before
// the window fills), or nil if closes is too short.
func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return nil
	}
	rsiAt := func(avgGain, avgLoss float64) float64 {
		if avgLoss == 0 {
			return 100.0
		}
		rs := avgGain / avgLoss
		return 100.0 - (100.0 / (1.0 + rs))
	}

	changes := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes[i-1] = closes[i] - closes[i-1]
	}

	out := make([]float64, len(closes))
	for i := 0; i <= period; i++ {
		out[i] = math.NaN()
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiAt(avgGain, avgLoss)

	alpha := 1.0 / float64(period)
	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
		out[i+1] = rsiAt(avgGain, avgLoss)
	}
	return out
}

// crossoverLookbackSessions is the spec's "within the last 3 sessions"
// window for both the SMA crossover and the RSI threshold crossing.
const crossoverLookbackSessions = 3

// smaCrossSignal reports whether shortSeries crossed longSeries within
// the trailing crossoverLookbackSessions bars: "bullish" crossing up,
// "bearish" crossing down, nil if no cross occurred in the window.
func smaCrossSignal(shortSeries, longSeries []float64) *string {
	n := len(shortSeries)
	if n == 0 || len(longSeries) != n {
		return nil
	}
	start := n - crossoverLookbackSessions - 1
	if start < 0 {
		start = 0
	}
	var prevDiff float64
	havePrev := false
	for i := start; i < n; i++ {
		s, l := shortSeries[i], longSeries[i]
		if math.IsNaN(s) || math.IsNaN(l) {
			continue
		}
		diff := s - l
		if havePrev && prevDiff != 0 {
			if prevDiff < 0 && diff > 0 {
				return strPtr("bullish")
			}
			if prevDiff > 0 && diff < 0 {
				return strPtr("bearish")
			}
		}
		prevDiff = diff
		havePrev = true
	}
	return nil
}

// rsiCrossSignal reports whether series crossed the 30/70 thresholds
// within the trailing crossoverLookbackSessions bars.
func rsiCrossSignal(series []float64) *string {
	n := len(series)
	if n == 0 {
		return nil
	}
	const oversold, overbought = 30.0, 70.0
	start := n - crossoverLookbackSessions - 1
	if start < 0 {
		start = 0
	}
	var prev float64
	havePrev := false
	for i := start; i < n; i++ {
		v := series[i]
		if math.IsNaN(v) {
			continue
		}
		if havePrev {
			if prev < overbought && v >= overbought {
				return strPtr("overbought")
			}
			if prev > oversold && v <= oversold {
				return strPtr("oversold")
			}
		}
		prev = v
		havePrev = true
	}
	return nil
}

func strPtr(s string) *string { return &s }

func returnOverN(closes []float64, n int) *float64 {
	if len(closes) <= n {
		return nil
	}
	last := closes[len(closes)-1]
	prior := closes[len(closes)-1-n]
	if prior == 0 {
		return nil
	}
	return ptr((last - prior) / prior)
}

// ComputeTechnicals derives the moving-average, momentum and trend
// features from a price history's OHLC bars. Bars must be ordered
// oldest-first.
func ComputeTechnicals(closes, highs, lows []float64) domain.Technicals {
	line, signal, hist := macd(closes)
	return domain.Technicals{
		SMA20:          sma(closes, 20),
		SMA50:          sma(closes, 50),
		SMA200:         sma(closes, 200),
		EMA12:          ema(closes, 12),
		EMA26:          ema(closes, 26),
		RSI14:          rsi14(closes, 14),
		MACDLine:       line,
		MACDSignal:     signal,
		MACDHist:       hist,
		ATR14:          atr(highs, lows, closes, 14),
		Return1d:       returnOverN(closes, 1),
		Return5d:       returnOverN(closes, 5),
		Return20d:      returnOverN(closes, 20),
		SMACrossSignal: smaCrossSignal(smaSeries(closes, 50), smaSeries(closes, 200)),
		RSICrossSignal: rsiCrossSignal(rsiSeries(closes, 14)),
	}
}
