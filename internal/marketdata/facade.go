package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sawpanic/optionsignal/internal/cache"
	"github.com/sawpanic/optionsignal/internal/circuit"
	"github.com/sawpanic/optionsignal/internal/domain"
	"github.com/sawpanic/optionsignal/internal/engineerr"
	"github.com/sawpanic/optionsignal/internal/ratelimit"
	"github.com/vmihailenco/msgpack/v5"
)

// TTLs for the four cache tiers the facade manages, grounded on the
// teacher's multi-tier TTL cache idiom (hot/warm/cold price tiers)
// collapsed into named per-kind TTLs for this domain.
const (
	ChainTTL      = 60 * time.Second
	PriceTTL      = 15 * time.Second
	HistoryTTL    = 6 * time.Hour
	EarningsTTL   = 24 * time.Hour
)

// Facade composes the cache, breaker registry and rate/budget manager
// in front of a Provider, classifying every failure per spec.md §6.
type Facade struct {
	provider Provider
	cache    *cache.Cache
	breakers *circuit.Registry
	limits   *ratelimit.Manager
}

// New builds a Facade for provider, wiring it to the shared cache,
// breaker registry and rate/budget manager.
func New(provider Provider, c *cache.Cache, breakers *circuit.Registry, limits *ratelimit.Manager) *Facade {
	return &Facade{provider: provider, cache: c, breakers: breakers, limits: limits}
}

func (f *Facade) endpoint(op string) string {
	return f.provider.Name() + "." + op
}

// guard checks the rate/budget manager before allowing a provider
// call; it never blocks — a refusal surfaces as RateLimited.
func (f *Facade) guard(endpoint string) error {
	if !f.limits.Allow(endpoint) {
		return &engineerr.RateLimited{Endpoint: endpoint, RetryAt: time.Now().Add(time.Second)}
	}
	return nil
}

func (f *Facade) classify(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, circuit.ErrOpen) {
		return &engineerr.CircuitOpen{Endpoint: endpoint, RetryAt: time.Now()}
	}
	var nf *engineerr.NotFound
	var rl *engineerr.RateLimited
	var tr *engineerr.Transport
	var mf *engineerr.Malformed
	if errors.As(err, &nf) || errors.As(err, &rl) || errors.As(err, &tr) || errors.As(err, &mf) {
		return err
	}
	return &engineerr.Transport{Endpoint: endpoint, Cause: err}
}

// wrapFailure turns a classified provider/breaker failure into the
// error the caller should see: CircuitOpen and RateLimited are
// surfaced unchanged (spec §7 — they drive the scheduler straight into
// backoff), everything else becomes a DataUnavailable for ticker so
// the cycle just skips it and keeps going.
func wrapFailure(ticker domain.Ticker, classified error) error {
	var circuitOpen *engineerr.CircuitOpen
	var rateLimited *engineerr.RateLimited
	if errors.As(classified, &circuitOpen) || errors.As(classified, &rateLimited) {
		return classified
	}
	return &engineerr.DataUnavailable{Ticker: string(ticker), Reason: classified.Error()}
}

// GetChainSnapshot returns a chain, preferring the cache, then falling
// back to the breaker-protected provider call.
func (f *Facade) GetChainSnapshot(ctx context.Context, ticker domain.Ticker) (domain.ChainSnapshot, error) {
	endpoint := f.endpoint("chain")
	key := "chain:" + string(ticker)

	if v, ok := f.cache.GetWithMirror(ctx, key, decodeChain); ok {
		return v.(domain.ChainSnapshot), nil
	}

	if err := f.guard(endpoint); err != nil {
		return domain.ChainSnapshot{}, wrapFailure(ticker, err)
	}

	result, err := f.breakers.Call(ctx, endpoint, func(ctx context.Context) (interface{}, error) {
		return f.provider.GetChainSnapshot(ctx, ticker)
	})
	if err != nil {
		return domain.ChainSnapshot{}, wrapFailure(ticker, f.classify(endpoint, err))
	}
	_ = f.limits.Consume(endpoint)

	snap := result.(domain.ChainSnapshot)
	f.cache.SetWithMirror(ctx, key, snap, ChainTTL, estimateChainSize(snap), func() ([]byte, error) {
		return msgpack.Marshal(snap)
	})
	return snap, nil
}

// GetPriceHistory returns daily bars covering at least lookback.
func (f *Facade) GetPriceHistory(ctx context.Context, ticker domain.Ticker, lookback time.Duration) (domain.PriceHistory, error) {
	endpoint := f.endpoint("history")
	key := "history:" + string(ticker)

	if v, ok := f.cache.Get(key); ok {
		return v.(domain.PriceHistory), nil
	}
	if err := f.guard(endpoint); err != nil {
		return domain.PriceHistory{}, wrapFailure(ticker, err)
	}
	result, err := f.breakers.Call(ctx, endpoint, func(ctx context.Context) (interface{}, error) {
		return f.provider.GetPriceHistory(ctx, ticker, lookback)
	})
	if err != nil {
		return domain.PriceHistory{}, wrapFailure(ticker, f.classify(endpoint, err))
	}
	_ = f.limits.Consume(endpoint)
	hist := result.(domain.PriceHistory)
	f.cache.Set(key, hist, HistoryTTL, len(hist.Bars)*64)
	return hist, nil
}

// GetCurrentPrice returns the latest traded/quoted underlying price.
func (f *Facade) GetCurrentPrice(ctx context.Context, ticker domain.Ticker) (float64, error) {
	endpoint := f.endpoint("price")
	key := "price:" + string(ticker)

	if v, ok := f.cache.Get(key); ok {
		return v.(float64), nil
	}
	if err := f.guard(endpoint); err != nil {
		return 0, wrapFailure(ticker, err)
	}
	result, err := f.breakers.Call(ctx, endpoint, func(ctx context.Context) (interface{}, error) {
		return f.provider.GetCurrentPrice(ctx, ticker)
	})
	if err != nil {
		return 0, wrapFailure(ticker, f.classify(endpoint, err))
	}
	_ = f.limits.Consume(endpoint)
	price := result.(float64)
	f.cache.Set(key, price, PriceTTL, 8)
	return price, nil
}

// GetDaysToEarnings returns the calendar days to the next known
// earnings date, or nil if unknown. Unknown is never an error: it is
// the normal state for most tickers most of the time.
func (f *Facade) GetDaysToEarnings(ctx context.Context, ticker domain.Ticker) (*int, error) {
	endpoint := f.endpoint("earnings")
	key := "earnings:" + string(ticker)

	if v, ok := f.cache.Get(key); ok {
		if v == nil {
			return nil, nil
		}
		d := v.(int)
		return &d, nil
	}
	if err := f.guard(endpoint); err != nil {
		return nil, nil
	}
	result, err := f.breakers.Call(ctx, endpoint, func(ctx context.Context) (interface{}, error) {
		return f.provider.GetDaysToEarnings(ctx, ticker)
	})
	if err != nil {
		return nil, nil
	}
	_ = f.limits.Consume(endpoint)
	days, _ := result.(*int)
	if days == nil {
		f.cache.Set(key, nil, EarningsTTL, 0)
		return nil, nil
	}
	f.cache.Set(key, *days, EarningsTTL, 8)
	return days, nil
}

func decodeChain(raw []byte) (interface{}, error) {
	var snap domain.ChainSnapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func estimateChainSize(snap domain.ChainSnapshot) int {
	n := 0
	for _, exp := range snap.ByExpiration {
		n += (len(exp.Calls) + len(exp.Puts)) * 96
	}
	return n + 64
}
