package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

func baseConfig() Config {
	return Config{
		DailyCap:               10,
		CooldownDuration:       24 * time.Hour,
		MinScoreImprovement:    5,
		MaxConcentrationPct:    20,
		MarginGateThresholdPct: 50,
		CashGateThresholdPct:   50,
	}
}

func TestEvaluate_AdmitsWithNoPriorState(t *testing.T) {
	result := Evaluate(context.Background(), baseConfig(), Inputs{
		Ticker:     "AAPL",
		FinalScore: 80,
		Now:        time.Now(),
		DailyCount: 0,
	})

	if !result.Admitted {
		t.Fatalf("expected admission, got reasons: %+v", result.Reasons)
	}
	if len(result.Reasons) != 3 {
		t.Errorf("expected 3 gate reasons, got %d", len(result.Reasons))
	}
}

func TestEvaluate_BlocksOnDailyCap(t *testing.T) {
	cfg := baseConfig()
	cfg.DailyCap = 2

	result := Evaluate(context.Background(), cfg, Inputs{
		Ticker:     "AAPL",
		FinalScore: 80,
		Now:        time.Now(),
		DailyCount: 2,
	})

	if result.Admitted {
		t.Fatal("expected daily cap to block admission")
	}
	if result.Reasons[0].Name != "daily_cap" || result.Reasons[0].Passed {
		t.Errorf("expected daily_cap gate to fail first, got %+v", result.Reasons[0])
	}
}

func TestEvaluate_CooldownBlocksRecentLowerScore(t *testing.T) {
	now := time.Now()
	result := Evaluate(context.Background(), baseConfig(), Inputs{
		Ticker:     "AAPL",
		FinalScore: 70,
		Now:        now,
		DailyCount: 0,
		Cooldown: &domain.CooldownRecord{
			Ticker:      "AAPL",
			LastAlertTS: now.Add(-1 * time.Hour),
			LastScore:   68,
		},
	})

	if result.Admitted {
		t.Fatal("expected cooldown to block: not enough time elapsed and score improvement below threshold")
	}
}

func TestEvaluate_CooldownAdmitsOnSufficientScoreImprovement(t *testing.T) {
	now := time.Now()
	result := Evaluate(context.Background(), baseConfig(), Inputs{
		Ticker:     "AAPL",
		FinalScore: 90,
		Now:        now,
		DailyCount: 0,
		Cooldown: &domain.CooldownRecord{
			Ticker:      "AAPL",
			LastAlertTS: now.Add(-1 * time.Hour),
			LastScore:   70,
		},
	})

	if !result.Admitted {
		t.Fatalf("expected score improvement to override time cooldown, got: %+v", result.Reasons)
	}
}

func TestEvaluate_CooldownAdmitsAfterDurationElapsed(t *testing.T) {
	now := time.Now()
	result := Evaluate(context.Background(), baseConfig(), Inputs{
		Ticker:     "AAPL",
		FinalScore: 70,
		Now:        now,
		DailyCount: 0,
		Cooldown: &domain.CooldownRecord{
			Ticker:      "AAPL",
			LastAlertTS: now.Add(-48 * time.Hour),
			LastScore:   70,
		},
	})

	if !result.Admitted {
		t.Fatalf("expected elapsed cooldown duration to admit, got: %+v", result.Reasons)
	}
}

func TestEvaluate_RiskGateSkippedWithNoAccountState(t *testing.T) {
	result := Evaluate(context.Background(), baseConfig(), Inputs{
		Ticker:     "AAPL",
		FinalScore: 80,
		Now:        time.Now(),
		DailyCount: 0,
		Account:    nil,
	})

	var riskReason *GateReason
	for i := range result.Reasons {
		if result.Reasons[i].Name == "risk" {
			riskReason = &result.Reasons[i]
		}
	}
	if riskReason == nil || !riskReason.Passed {
		t.Fatalf("expected risk gate to pass by default with no account configured, got %+v", riskReason)
	}
}

func TestEvaluate_RiskGateBlocksOverConcentration(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxConcentrationPct = 10

	result := Evaluate(context.Background(), cfg, Inputs{
		Ticker:     "AAPL",
		FinalScore: 80,
		Now:        time.Now(),
		DailyCount: 0,
		Account: &domain.AccountState{
			CashAvailable: 1000,
			Positions: []domain.PositionSnapshot{
				{Ticker: "AAPL", Notional: 500},
			},
		},
	})

	if result.Admitted {
		t.Fatal("expected existing AAPL position at 33% concentration to breach the 10% limit")
	}
}

func TestEvaluate_RiskGateBlocksOverMarginThreshold(t *testing.T) {
	cfg := baseConfig()
	cfg.MarginGateThresholdPct = 50
	price := 100.0

	result := Evaluate(context.Background(), cfg, Inputs{
		Ticker:          "AAPL",
		FinalScore:      80,
		Now:             time.Now(),
		DailyCount:      0,
		UnderlyingPrice: &price,
		Account: &domain.AccountState{
			MarginAvailable: 100, // required margin = 100*100*0.20 = 2000, way over 50% of 100
			CashAvailable:   100000,
		},
	})

	if result.Admitted {
		t.Fatal("expected required margin to exceed the margin gate threshold")
	}
}

func TestEvaluate_RiskGateBlocksOverCashThreshold(t *testing.T) {
	cfg := baseConfig()
	cfg.CashGateThresholdPct = 50
	price := 100.0

	result := Evaluate(context.Background(), cfg, Inputs{
		Ticker:          "AAPL",
		FinalScore:      80,
		Now:             time.Now(),
		DailyCount:      0,
		UnderlyingPrice: &price,
		Account: &domain.AccountState{
			MarginAvailable: 1000000,
			CashAvailable:   100, // required cash = 100*100 = 10000, way over 50% of 100
		},
	})

	if result.Admitted {
		t.Fatal("expected required cash to exceed the cash gate threshold")
	}
}

func TestEvaluate_RiskGateAdmitsWithinMarginAndCashThresholds(t *testing.T) {
	cfg := baseConfig()
	cfg.MarginGateThresholdPct = 50
	cfg.CashGateThresholdPct = 50
	price := 100.0

	result := Evaluate(context.Background(), cfg, Inputs{
		Ticker:          "AAPL",
		FinalScore:      80,
		Now:             time.Now(),
		DailyCount:      0,
		UnderlyingPrice: &price,
		Account: &domain.AccountState{
			MarginAvailable: 100000,
			CashAvailable:   100000,
		},
	})

	if !result.Admitted {
		t.Fatalf("expected ample margin/cash to admit, got: %+v", result.Reasons)
	}
}

func TestEvaluate_OverallReasonReflectsFirstFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.DailyCap = 0

	result := Evaluate(context.Background(), cfg, Inputs{
		Ticker:     "AAPL",
		FinalScore: 80,
		Now:        time.Now(),
		DailyCount: 0,
	})

	if result.Admitted {
		t.Fatal("expected daily cap of 0 to block everything")
	}
	if result.OverallReason == "" {
		t.Error("expected a non-empty overall reason")
	}
}
