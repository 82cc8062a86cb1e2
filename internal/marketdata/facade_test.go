package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sawpanic/optionsignal/internal/cache"
	"github.com/sawpanic/optionsignal/internal/circuit"
	"github.com/sawpanic/optionsignal/internal/domain"
	"github.com/sawpanic/optionsignal/internal/engineerr"
	"github.com/sawpanic/optionsignal/internal/ratelimit"
)

type stubProvider struct {
	name string

	chain    domain.ChainSnapshot
	chainErr error
	calls    int

	history    domain.PriceHistory
	historyErr error

	price    float64
	priceErr error

	days    *int
	daysErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetChainSnapshot(ctx context.Context, ticker domain.Ticker) (domain.ChainSnapshot, error) {
	s.calls++
	return s.chain, s.chainErr
}

func (s *stubProvider) GetPriceHistory(ctx context.Context, ticker domain.Ticker, lookback time.Duration) (domain.PriceHistory, error) {
	s.calls++
	return s.history, s.historyErr
}

func (s *stubProvider) GetCurrentPrice(ctx context.Context, ticker domain.Ticker) (float64, error) {
	s.calls++
	return s.price, s.priceErr
}

func (s *stubProvider) GetDaysToEarnings(ctx context.Context, ticker domain.Ticker) (*int, error) {
	s.calls++
	return s.days, s.daysErr
}

func newTestFacade(p Provider) *Facade {
	return New(p, cache.New(1<<20), circuit.NewRegistry(), ratelimit.NewManager())
}

func TestFacade_GetChainSnapshot_CachesAfterFirstCall(t *testing.T) {
	p := &stubProvider{name: "stub", chain: domain.ChainSnapshot{Ticker: "AAPL", UnderlyingPrice: 150}}
	f := newTestFacade(p)

	snap, err := f.GetChainSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.UnderlyingPrice != 150 {
		t.Errorf("expected underlying price 150, got %v", snap.UnderlyingPrice)
	}

	if _, err := f.GetChainSnapshot(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected the provider to be called exactly once (second hit cache), got %d calls", p.calls)
	}
}

func TestFacade_GetChainSnapshot_WrapsProviderErrorAsDataUnavailable(t *testing.T) {
	p := &stubProvider{name: "stub", chainErr: errors.New("boom")}
	f := newTestFacade(p)

	_, err := f.GetChainSnapshot(context.Background(), "AAPL")
	var du *engineerr.DataUnavailable
	if !errors.As(err, &du) {
		t.Fatalf("expected DataUnavailable, got %v (%T)", err, err)
	}
}

func TestFacade_GetCurrentPrice_CachesValue(t *testing.T) {
	p := &stubProvider{name: "stub", price: 42.5}
	f := newTestFacade(p)

	price, err := f.GetCurrentPrice(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 42.5 {
		t.Errorf("expected 42.5, got %v", price)
	}
	if _, err := f.GetCurrentPrice(context.Background(), "MSFT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected provider called once, got %d", p.calls)
	}
}

func TestFacade_GetDaysToEarnings_NilIsNotAnError(t *testing.T) {
	p := &stubProvider{name: "stub", days: nil}
	f := newTestFacade(p)

	days, err := f.GetDaysToEarnings(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != nil {
		t.Errorf("expected nil days, got %v", *days)
	}
}

func TestFacade_GetDaysToEarnings_CachesValue(t *testing.T) {
	d := 14
	p := &stubProvider{name: "stub", days: &d}
	f := newTestFacade(p)

	got, err := f.GetDaysToEarnings(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != 14 {
		t.Fatalf("expected 14, got %v", got)
	}
	if _, err := f.GetDaysToEarnings(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected provider called once, got %d", p.calls)
	}
}

func TestFacade_GetPriceHistory_PassesThroughOnMiss(t *testing.T) {
	p := &stubProvider{name: "stub", history: domain.PriceHistory{
		Ticker: "AAPL",
		Bars:   []domain.PriceBar{{Close: 100}, {Close: 101}},
	}}
	f := newTestFacade(p)

	hist, err := f.GetPriceHistory(context.Background(), "AAPL", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist.Bars) != 2 {
		t.Errorf("expected 2 bars, got %d", len(hist.Bars))
	}
}

func TestFacade_RateLimitExhaustion_SurfacesAsRateLimited(t *testing.T) {
	p := &stubProvider{name: "stub", chain: domain.ChainSnapshot{Ticker: "AAPL"}}
	limits := ratelimit.NewManager()
	limits.Configure("stub.chain", 1, 1, 100, 0)
	f := New(p, cache.New(1<<20), circuit.NewRegistry(), limits)

	// Exhaust the single-token burst so the next call is refused.
	ctx := context.Background()
	if _, err := f.GetChainSnapshot(ctx, "AAPL"); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}
	f.cache.Clear()
	_, err := f.GetChainSnapshot(ctx, "MSFT")
	var rl *engineerr.RateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("expected a RateLimited error once the burst is exhausted, got %v (%T)", err, err)
	}
}
