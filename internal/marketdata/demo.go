package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
	"github.com/sawpanic/optionsignal/internal/features"
)

// DemoProvider synthesises plausible chains and price histories from a
// per-ticker seeded RNG, selected when the configuration option
// demo_mode is true. It lives entirely behind Provider so it is
// swappable without touching the façade.
type DemoProvider struct {
	riskFreeRate float64
}

// NewDemoProvider builds a demo provider with a flat risk-free rate
// used for its synthetic Black-Scholes pricing.
func NewDemoProvider(riskFreeRate float64) *DemoProvider {
	return &DemoProvider{riskFreeRate: riskFreeRate}
}

func (d *DemoProvider) Name() string { return "demo" }

// seed derives a stable per-ticker RNG seed so repeated calls for the
// same ticker within a process produce a coherent, non-jumping series.
func seed(ticker domain.Ticker) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	return int64(h.Sum64())
}

func basePrice(ticker domain.Ticker) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	return 20 + float64(h.Sum64()%48000)/100 // $20-$500
}

func (d *DemoProvider) GetCurrentPrice(ctx context.Context, ticker domain.Ticker) (float64, error) {
	rng := rand.New(rand.NewSource(seed(ticker) ^ time.Now().Truncate(time.Hour).Unix()))
	base := basePrice(ticker)
	drift := (rng.Float64() - 0.5) * 0.04
	return base * (1 + drift), nil
}

func (d *DemoProvider) GetPriceHistory(ctx context.Context, ticker domain.Ticker, lookback time.Duration) (domain.PriceHistory, error) {
	days := int(lookback.Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	rng := rand.New(rand.NewSource(seed(ticker)))
	price := basePrice(ticker)
	bars := make([]domain.PriceBar, 0, days)
	start := time.Now().UTC().AddDate(0, 0, -days)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}
		logReturn := rng.NormFloat64() * 0.018
		open := price
		price = price * math.Exp(logReturn)
		high := math.Max(open, price) * (1 + rng.Float64()*0.006)
		low := math.Min(open, price) * (1 - rng.Float64()*0.006)
		bars = append(bars, domain.PriceBar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: int64(500000 + rng.Intn(4500000)),
		})
	}
	return domain.PriceHistory{Ticker: ticker, Bars: bars}, nil
}

func (d *DemoProvider) GetDaysToEarnings(ctx context.Context, ticker domain.Ticker) (*int, error) {
	rng := rand.New(rand.NewSource(seed(ticker) ^ time.Now().Truncate(24*time.Hour).Unix()))
	days := rng.Intn(90) - 10 // -10..79, negative means just passed
	return &days, nil
}

// GetChainSnapshot builds a synthetic chain: a strike ladder at 2.5%
// increments out to +/-30% of the synthetic spot, two expirations (a
// near-dated "front" and a longer-dated "back"), priced from a flat
// ATM vol perturbed by a skew term and term-structure slope.
func (d *DemoProvider) GetChainSnapshot(ctx context.Context, ticker domain.Ticker) (domain.ChainSnapshot, error) {
	rng := rand.New(rand.NewSource(seed(ticker) ^ time.Now().Truncate(time.Hour).Unix()))
	spot := basePrice(ticker) * (1 + (rng.Float64()-0.5)*0.02)

	atmVol := 0.18 + rng.Float64()*0.25      // 18%-43%
	termSlope := (rng.Float64() - 0.5) * 0.1 // back richer or cheaper
	now := time.Now().UTC()

	front := now.AddDate(0, 0, 30)
	back := now.AddDate(0, 0, 75)

	byExp := []domain.ExpirationChain{
		d.buildExpiration(rng, spot, front, atmVol, now),
		d.buildExpiration(rng, spot, back, atmVol+termSlope, now),
	}

	return domain.ChainSnapshot{
		Ticker:          ticker,
		CapturedAt:      now,
		UnderlyingPrice: spot,
		ByExpiration:    byExp,
	}, nil
}

func (d *DemoProvider) buildExpiration(rng *rand.Rand, spot float64, expiration time.Time, atmVol float64, now time.Time) domain.ExpirationChain {
	t := expiration.Sub(now).Hours() / 24 / 365.25
	if t <= 0 {
		t = 1.0 / 365.25
	}

	const step = 0.025
	var calls, puts []domain.OptionContract
	for m := -0.30; m <= 0.30+1e-9; m += step {
		strike := math.Round(spot*(1+m)/0.5) * 0.5
		// simple linear skew: further OTM puts richer, OTM calls cheaper
		skew := -m * 0.35
		vol := math.Max(0.05, atmVol+skew)

		callPrice := features.BSPrice(spot, strike, d.riskFreeRate, vol, t, true)
		putPrice := features.BSPrice(spot, strike, d.riskFreeRate, vol, t, false)

		callGreeks := features.ComputeGreeks(spot, strike, d.riskFreeRate, vol, t, true)
		putGreeks := features.ComputeGreeks(spot, strike, d.riskFreeRate, vol, t, false)

		spread := math.Max(0.02, callPrice*0.03)
		calls = append(calls, contract(domain.Call, expiration, strike, callPrice, spread, vol, callGreeks, rng))

		spreadP := math.Max(0.02, putPrice*0.03)
		puts = append(puts, contract(domain.Put, expiration, strike, putPrice, spreadP, vol, putGreeks, rng))
	}

	return domain.ExpirationChain{Expiration: expiration, Calls: calls, Puts: puts}
}

func contract(typ domain.OptionType, expiration time.Time, strike, mid, spread, vol float64, g features.Greeks, rng *rand.Rand) domain.OptionContract {
	bid := math.Max(0.01, mid-spread/2)
	ask := mid + spread/2
	delta, gamma, vega, theta, rho := g.Delta, g.Gamma, g.Vega, g.Theta, g.Rho
	return domain.OptionContract{
		Expiration:   expiration,
		Type:         typ,
		Strike:       strike,
		Bid:          round2(bid),
		Ask:          round2(ask),
		Last:         round2(mid),
		Volume:       int64(rng.Intn(5000)),
		OpenInterest: int64(rng.Intn(20000)),
		ImpliedVol:   vol,
		Delta:        &delta,
		Gamma:        &gamma,
		Vega:         &vega,
		Theta:        &theta,
		Rho:          &rho,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
