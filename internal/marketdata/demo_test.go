package marketdata

import (
	"context"
	"testing"
	"time"
)

func TestDemoProvider_GetChainSnapshot_ProducesTwoExpirationsWithContracts(t *testing.T) {
	p := NewDemoProvider(0.04)
	snap, err := p.GetChainSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Ticker != "AAPL" {
		t.Errorf("expected ticker AAPL, got %s", snap.Ticker)
	}
	if len(snap.ByExpiration) != 2 {
		t.Fatalf("expected 2 expirations, got %d", len(snap.ByExpiration))
	}
	for _, exp := range snap.ByExpiration {
		if len(exp.Calls) == 0 || len(exp.Puts) == 0 {
			t.Error("expected both calls and puts populated for each expiration")
		}
		for _, c := range exp.Calls {
			if c.Ask < c.Bid {
				t.Errorf("expected ask >= bid, got bid=%.2f ask=%.2f", c.Bid, c.Ask)
			}
			if c.Delta == nil {
				t.Error("expected Delta to be populated on synthetic contracts")
			}
		}
	}
}

func TestDemoProvider_GetChainSnapshot_DeterministicPerTickerWithinHour(t *testing.T) {
	p := NewDemoProvider(0.04)
	first, err := p.GetChainSnapshot(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.GetChainSnapshot(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.UnderlyingPrice != second.UnderlyingPrice {
		t.Errorf("expected deterministic spot within the same hour, got %.4f vs %.4f",
			first.UnderlyingPrice, second.UnderlyingPrice)
	}
}

func TestDemoProvider_GetChainSnapshot_DifferentTickersDifferentPrices(t *testing.T) {
	p := NewDemoProvider(0.04)
	a, _ := p.GetChainSnapshot(context.Background(), "AAPL")
	b, _ := p.GetChainSnapshot(context.Background(), "GOOG")
	if a.UnderlyingPrice == b.UnderlyingPrice {
		t.Error("expected different tickers to synthesize different spot prices")
	}
}

func TestDemoProvider_GetPriceHistory_SkipsWeekends(t *testing.T) {
	p := NewDemoProvider(0.04)
	hist, err := p.GetPriceHistory(context.Background(), "AAPL", 14*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bar := range hist.Bars {
		if bar.Date.Weekday() == time.Saturday || bar.Date.Weekday() == time.Sunday {
			t.Errorf("expected no weekend bars, got %v", bar.Date)
		}
	}
}

func TestDemoProvider_GetPriceHistory_BarsAreChronological(t *testing.T) {
	p := NewDemoProvider(0.04)
	hist, err := p.GetPriceHistory(context.Background(), "AAPL", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(hist.Bars); i++ {
		if !hist.Bars[i].Date.After(hist.Bars[i-1].Date) {
			t.Errorf("expected strictly increasing dates, bar %d (%v) not after bar %d (%v)",
				i, hist.Bars[i].Date, i-1, hist.Bars[i-1].Date)
		}
	}
}

func TestDemoProvider_GetDaysToEarnings_ReturnsNonNil(t *testing.T) {
	p := NewDemoProvider(0.04)
	days, err := p.GetDaysToEarnings(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days == nil {
		t.Fatal("expected a non-nil days-to-earnings value")
	}
	if *days < -10 || *days > 79 {
		t.Errorf("expected days within [-10,79], got %d", *days)
	}
}

func TestDemoProvider_Name(t *testing.T) {
	p := NewDemoProvider(0.04)
	if p.Name() != "demo" {
		t.Errorf("expected provider name 'demo', got %q", p.Name())
	}
}
