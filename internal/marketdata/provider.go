// Package marketdata implements the market-data access layer (C4): a
// facade composing the TTL cache, circuit breaker registry and rate
// limiter in front of a pluggable Provider, classifying every provider
// failure into the typed engineerr error kinds.
package marketdata

import (
	"context"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// Provider is the pluggable upstream data source. Implementations
// return the typed engineerr errors (RateLimited, NotFound, Transport,
// Malformed) rather than ad-hoc ones, so the facade's classification
// logic stays centralised at the edge.
type Provider interface {
	// Name identifies this provider for breaker/limiter/metrics keys.
	Name() string
	GetChainSnapshot(ctx context.Context, ticker domain.Ticker) (domain.ChainSnapshot, error)
	GetPriceHistory(ctx context.Context, ticker domain.Ticker, lookback time.Duration) (domain.PriceHistory, error)
	GetCurrentPrice(ctx context.Context, ticker domain.Ticker) (float64, error)
	GetDaysToEarnings(ctx context.Context, ticker domain.Ticker) (*int, error)
}
