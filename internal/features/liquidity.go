package features

import "github.com/sawpanic/optionsignal/internal/domain"

// ComputeLiquidity derives liquidity features from the chain's
// near-the-money contracts (within 10% of the underlying) across all
// expirations, and total open interest across the whole chain.
func ComputeLiquidity(chain domain.ChainSnapshot) domain.LiquidityFeatures {
	var spreadSum float64
	var spreadCount int
	var oiCalls, oiPuts float64

	band := chain.UnderlyingPrice * 0.10

	for _, exp := range chain.ByExpiration {
		for _, c := range exp.Calls {
			oiCalls += float64(c.OpenInterest)
			if band > 0 && absf(c.Strike-chain.UnderlyingPrice) <= band {
				spreadSum += c.SpreadPct()
				spreadCount++
			}
		}
		for _, p := range exp.Puts {
			oiPuts += float64(p.OpenInterest)
			if band > 0 && absf(p.Strike-chain.UnderlyingPrice) <= band {
				spreadSum += p.SpreadPct()
				spreadCount++
			}
		}
	}

	var out domain.LiquidityFeatures
	if spreadCount > 0 {
		out.MeanSpreadPctNearMoney = ptr(spreadSum / float64(spreadCount))
	}
	if oiCalls > 0 || oiPuts > 0 {
		out.TotalOICalls = ptr(oiCalls)
		out.TotalOIPuts = ptr(oiPuts)
		if oiCalls > 0 {
			out.PutCallOIRatio = ptr(oiPuts / oiCalls)
		}
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
