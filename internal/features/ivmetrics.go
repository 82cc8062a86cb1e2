package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// atmContract finds the contract in exp whose strike is closest to
// underlying among calls (ties broken by call, since ATM IV is
// conventionally read off the call side).
func atmContract(exp domain.ExpirationChain, underlying float64) (domain.OptionContract, bool) {
	best := -1
	bestDiff := math.MaxFloat64
	for i, c := range exp.Calls {
		diff := math.Abs(c.Strike - underlying)
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	if best < 0 {
		return domain.OptionContract{}, false
	}
	return exp.Calls[best], true
}

// deltaContract finds the contract nearest the target absolute delta
// within a slice, used for skew_25d.
func deltaContract(contracts []domain.OptionContract, targetAbsDelta float64) (domain.OptionContract, bool) {
	best := -1
	bestDiff := math.MaxFloat64
	for i, c := range contracts {
		if c.Delta == nil {
			continue
		}
		diff := math.Abs(math.Abs(*c.Delta) - targetAbsDelta)
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	if best < 0 {
		return domain.OptionContract{}, false
	}
	return contracts[best], true
}

// sortedExpirations returns chain's expirations sorted ascending.
func sortedExpirations(chain domain.ChainSnapshot) []domain.ExpirationChain {
	out := make([]domain.ExpirationChain, len(chain.ByExpiration))
	copy(out, chain.ByExpiration)
	sort.Slice(out, func(i, j int) bool { return out[i].Expiration.Before(out[j].Expiration) })
	return out
}

// ComputeIVMetrics derives implied-volatility features from a chain
// snapshot, the ticker's trailing ATM-IV history (oldest-first) and its
// trailing 25-delta skew history (oldest-first).
func ComputeIVMetrics(chain domain.ChainSnapshot, history []domain.IVHistoryPoint, skewHistory []domain.SkewHistoryPoint) domain.IVMetrics {
	exps := sortedExpirations(chain)
	if len(exps) == 0 {
		return domain.IVMetrics{}
	}

	var m domain.IVMetrics

	front := exps[0]
	if c, ok := atmContract(front, chain.UnderlyingPrice); ok && c.ImpliedVol > 0 {
		m.ATMIVFront = ptr(c.ImpliedVol)
	}

	if len(exps) > 1 {
		back := exps[len(exps)-1]
		if c, ok := atmContract(back, chain.UnderlyingPrice); ok && c.ImpliedVol > 0 {
			m.ATMIVBack = ptr(c.ImpliedVol)
		}
	}

	if m.ATMIVFront != nil && m.ATMIVBack != nil {
		frontDays := front.Expiration.Sub(chain.CapturedAt).Hours() / 24
		backDays := exps[len(exps)-1].Expiration.Sub(chain.CapturedAt).Hours() / 24
		if backDays > frontDays && frontDays > 0 {
			m.TermSlope = ptr((*m.ATMIVBack - *m.ATMIVFront) / (backDays - frontDays))
		}
	}

	if put25, ok := deltaContract(front.Puts, 0.25); ok && put25.ImpliedVol > 0 {
		if call25, ok := deltaContract(front.Calls, 0.25); ok && call25.ImpliedVol > 0 {
			m.Skew25D = ptr(put25.ImpliedVol - call25.ImpliedVol)
		}
	}

	if m.ATMIVFront != nil && len(history) > 0 {
		samples := make([]float64, len(history))
		for i, h := range history {
			samples[i] = h.ATMIV
		}
		m.IVPercentile = ptr(percentileRank(samples, *m.ATMIVFront))
		m.IVRank = ptr(rangeRank(samples, *m.ATMIVFront))
	}

	if m.Skew25D != nil && len(skewHistory) > 1 {
		samples := make([]float64, len(skewHistory))
		for i, h := range skewHistory {
			samples[i] = h.Skew25D
		}
		mean, variance := stat.MeanVariance(samples, nil)
		if stdev := math.Sqrt(variance); stdev > 0 {
			m.SkewZScore60D = ptr((*m.Skew25D - mean) / stdev)
		}
	}

	return m
}

// percentileRank returns the fraction of samples strictly below v,
// expressed in [0, 100]. This resolves the "iv_percentile" Open
// Question: percentile rank within the trailing window, not a
// parametric normal-CDF estimate.
func percentileRank(samples []float64, v float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	below := sort.SearchFloat64s(sorted, v)
	return 100 * float64(below) / float64(len(sorted))
}

// rangeRank returns v's position between the trailing window's min
// and max, expressed in [0, 100]. This resolves the "iv_rank" Open
// Question as (v - min) / (max - min), clipped to [0, 100] when v lies
// outside the window. A flat window (max == min) gives 50.
func rangeRank(samples []float64, v float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	lo, hi := samples[0], samples[0]
	for _, s := range samples {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if hi == lo {
		return 50
	}
	return domain.Clip(100*(v-lo)/(hi-lo), 0, 100)
}
