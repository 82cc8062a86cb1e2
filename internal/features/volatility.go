package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// tradingDaysPerYear annualises daily log-return standard deviation
// into the realised-volatility estimators below.
const tradingDaysPerYear = 252.0

// logReturns converts a closing-price series into daily log returns.
func logReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			out[i-1] = 0
			continue
		}
		out[i-1] = math.Log(closes[i] / closes[i-1])
	}
	return out
}

// historicalVol returns the annualised standard deviation of the
// trailing window daily log returns, using gonum/stat for the
// mean/variance computation rather than a hand-rolled accumulator.
func historicalVol(closes []float64, window int) *float64 {
	rets := logReturns(closes)
	if len(rets) < window {
		return nil
	}
	tail := rets[len(rets)-window:]
	_, variance := stat.MeanVariance(tail, nil)
	return ptr(math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear))
}

// parkinson estimates annualised volatility from the high/low range,
// which is more efficient than close-to-close for a given sample size.
func parkinson(highs, lows []float64, window int) *float64 {
	if len(highs) < window || len(lows) < window {
		return nil
	}
	h := highs[len(highs)-window:]
	l := lows[len(lows)-window:]
	sum := 0.0
	for i := range h {
		if l[i] <= 0 || h[i] <= 0 {
			continue
		}
		r := math.Log(h[i] / l[i])
		sum += r * r
	}
	factor := 1.0 / (4.0 * math.Log(2.0))
	variance := factor * sum / float64(window)
	return ptr(math.Sqrt(variance * tradingDaysPerYear))
}

// garmanKlass estimates annualised volatility using the
// Garman-Klass OHLC estimator.
func garmanKlass(opens, highs, lows, closes []float64, window int) *float64 {
	n := len(closes)
	if n < window || len(opens) < window || len(highs) < window || len(lows) < window {
		return nil
	}
	o := opens[n-window:]
	h := highs[n-window:]
	l := lows[n-window:]
	c := closes[n-window:]

	sum := 0.0
	for i := range c {
		if o[i] <= 0 || h[i] <= 0 || l[i] <= 0 || c[i] <= 0 {
			continue
		}
		hl := math.Log(h[i] / l[i])
		co := math.Log(c[i] / o[i])
		sum += 0.5*hl*hl - (2*math.Log(2)-1)*co*co
	}
	variance := sum / float64(window)
	if variance < 0 {
		variance = 0
	}
	return ptr(math.Sqrt(variance * tradingDaysPerYear))
}

func dailyRange(highs, lows []float64) *float64 {
	n := len(highs)
	if n == 0 || len(lows) != n {
		return nil
	}
	last := n - 1
	if lows[last] <= 0 {
		return nil
	}
	return ptr((highs[last] - lows[last]) / lows[last])
}

func weeklyRange(highs, lows []float64) *float64 {
	n := len(highs)
	if n < 5 || len(lows) != n {
		return nil
	}
	window := highs[n-5:]
	lowWindow := lows[n-5:]
	maxHigh, minLow := window[0], lowWindow[0]
	for i := range window {
		if window[i] > maxHigh {
			maxHigh = window[i]
		}
		if lowWindow[i] < minLow {
			minLow = lowWindow[i]
		}
	}
	if minLow <= 0 {
		return nil
	}
	return ptr((maxHigh - minLow) / minLow)
}

// ComputeVolFeatures derives realised-volatility features from daily
// OHLC series, all ordered oldest-first.
func ComputeVolFeatures(opens, highs, lows, closes []float64) domain.VolFeatures {
	return domain.VolFeatures{
		HV10:          historicalVol(closes, 10),
		HV20:          historicalVol(closes, 20),
		HV60:          historicalVol(closes, 60),
		Parkinson20:   parkinson(highs, lows, 20),
		GarmanKlass20: garmanKlass(opens, highs, lows, closes, 20),
		DailyRange:    dailyRange(highs, lows),
		WeeklyRange:   weeklyRange(highs, lows),
	}
}
