package features

import (
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// Engine computes a full FeatureSet for one ticker from its raw
// market-data inputs. It holds no state of its own beyond what's
// passed in per call, so a single Engine value is safe to share
// across goroutines and across scan cycles.
type Engine struct{}

// NewEngine constructs a feature Engine.
func NewEngine() *Engine { return &Engine{} }

// Compute assembles a FeatureSet from the ticker's price history,
// current chain snapshot, trailing ATM-IV and skew history and
// days-to-earnings lookup. asOf is stamped onto the result;
// daysToEarnings is carried into the event section as given.
func (e *Engine) Compute(
	ticker domain.Ticker,
	scanID string,
	asOf time.Time,
	hist domain.PriceHistory,
	chain domain.ChainSnapshot,
	ivHistory []domain.IVHistoryPoint,
	skewHistory []domain.SkewHistoryPoint,
	daysToEarnings *int,
) domain.FeatureSet {
	closes := make([]float64, len(hist.Bars))
	opens := make([]float64, len(hist.Bars))
	highs := make([]float64, len(hist.Bars))
	lows := make([]float64, len(hist.Bars))
	for i, b := range hist.Bars {
		closes[i] = b.Close
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
	}

	var underlyingPrice *float64
	if chain.UnderlyingPrice > 0 {
		underlyingPrice = ptr(chain.UnderlyingPrice)
	}

	return domain.FeatureSet{
		Ticker:          ticker,
		ScanID:          scanID,
		AsOf:            asOf,
		UnderlyingPrice: underlyingPrice,
		Technicals:      ComputeTechnicals(closes, highs, lows),
		Vol:             ComputeVolFeatures(opens, highs, lows, closes),
		IV:              ComputeIVMetrics(chain, ivHistory, skewHistory),
		Liquidity:       ComputeLiquidity(chain),
		Event:           domain.EventFeatures{DaysToEarnings: daysToEarnings},
	}
}
