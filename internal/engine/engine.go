// Package engine wires the market-data façade, feature engine,
// detector registry, scorer and throttle gate into one collection
// cycle (the scan in spec.md's §2 data flow), shared by the
// scheduler's long-running FSM and the CLI's one-shot `scan --once`.
// Grounded on the teacher's pipeline-of-stages shape (fetch, compute,
// detect, score, gate, persist run in sequence per symbol, failures
// isolated per symbol rather than aborting the whole run).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/optionsignal/internal/config"
	"github.com/sawpanic/optionsignal/internal/detectors"
	"github.com/sawpanic/optionsignal/internal/domain"
	"github.com/sawpanic/optionsignal/internal/engineerr"
	"github.com/sawpanic/optionsignal/internal/features"
	"github.com/sawpanic/optionsignal/internal/marketdata"
	"github.com/sawpanic/optionsignal/internal/metrics"
	"github.com/sawpanic/optionsignal/internal/repository"
	"github.com/sawpanic/optionsignal/internal/scoring"
	"github.com/sawpanic/optionsignal/internal/throttle"
)

const ivHistoryLookbackDays = 252
const skewHistoryLookbackDays = 60
const priceHistoryLookback = 400 * 24 * time.Hour

// Engine runs one full collection cycle across a watchlist.
type Engine struct {
	facade   *marketdata.Facade
	features *features.Engine
	detectors *detectors.Registry
	scorer   *scoring.Scorer
	repo     repository.Repository
	metrics  *metrics.Registry
	log      zerolog.Logger

	account *domain.AccountState // nil: no account configured, risk gate defaults to permit
}

// New builds an Engine from its already-constructed collaborators.
func New(
	facade *marketdata.Facade,
	featuresEngine *features.Engine,
	registry *detectors.Registry,
	scorer *scoring.Scorer,
	repo repository.Repository,
	reg *metrics.Registry,
	log zerolog.Logger,
	account *domain.AccountState,
) *Engine {
	return &Engine{
		facade:    facade,
		features:  featuresEngine,
		detectors: registry,
		scorer:    scorer,
		repo:      repo,
		metrics:   reg,
		log:       log.With().Str("component", "engine").Logger(),
		account:   account,
	}
}

// Result summarises one collection cycle, for the scheduler's budget
// accounting and the CLI's human-readable output.
type Result struct {
	ScanID      string
	Status      domain.ScanStatus
	TickersScanned int
	AlertsCount int
	APICalls    int
	Err         error
}

// Run executes one collection cycle over watchlist, persisting the
// scan row, every ticker's feature/chain snapshot, and every admitted
// alert. An ordinary single-ticker failure is logged and the scan
// proceeds, landing on status `partial` (or `failed` if every ticker
// fails, which also sets Result.Err). A RateLimited or CircuitOpen
// failure stops the loop and is returned in Result.Err.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) Result {
	start := time.Now()
	scanID := uuid.NewString()
	res := Result{ScanID: scanID}

	scan := domain.Scan{
		ID:      scanID,
		Status:  domain.ScanRunning,
		Tickers: toTickers(cfg.Watchlist),
	}
	if err := e.repo.SaveScan(ctx, scan); err != nil {
		e.log.Warn().Err(err).Msg("failed to save initial scan row")
	}

	var failures, skipped int
	today := time.Now().UTC().Truncate(24 * time.Hour)

	// Each ticker costs one chain-snapshot call; once the cycle has spent
	// the configured hourly budget on those, the remaining tickers are
	// skipped outright rather than risking the provider's real limit.
	chainCallBudget := cfg.Scheduler.MaxCallsPerHour
	chainCallsUsed := 0

	for i, t := range scan.Tickers {
		if chainCallBudget > 0 && chainCallsUsed >= chainCallBudget {
			skipped += len(scan.Tickers) - i
			if res.Err == nil {
				res.Err = &engineerr.RateLimited{Endpoint: "chain_snapshot", RetryAt: time.Now().Add(time.Minute)}
			}
			e.log.Warn().Int("budget", chainCallBudget).Int("skipped", skipped).Msg("cycle chain-call budget exhausted, skipping remaining tickers")
			break
		}
		chainCallsUsed++

		calls, alertsForTicker, err := e.runTicker(ctx, cfg, scanID, t, today)
		res.APICalls += calls
		res.AlertsCount += alertsForTicker
		if err != nil {
			failures++
			e.log.Warn().Err(err).Str("ticker", string(t)).Msg("ticker scan failed")
			if engineerr.IsBackoffTrigger(err) {
				res.Err = err
				skipped += len(scan.Tickers) - i - 1
				break
			}
			continue
		}
		res.TickersScanned++
	}

	scan.AlertsCount = res.AlertsCount
	scan.RuntimeS = time.Since(start).Seconds()
	switch {
	case len(scan.Tickers) == 0:
		scan.Status = domain.ScanCompleted
	case failures == 0 && skipped == 0:
		scan.Status = domain.ScanCompleted
	case failures+skipped == len(scan.Tickers):
		scan.Status = domain.ScanFailed
	default:
		scan.Status = domain.ScanPartial
	}
	res.Status = scan.Status

	if res.Err == nil && len(scan.Tickers) > 0 && failures == len(scan.Tickers) {
		res.Err = fmt.Errorf("scan %s: all %d tickers failed", scanID, failures)
	}

	if err := e.repo.SaveScan(ctx, scan); err != nil {
		e.log.Warn().Err(err).Msg("failed to save final scan row")
	}
	if e.metrics != nil {
		e.metrics.ScanDurationSeconds.Observe(scan.RuntimeS)
	}
	return res
}

// runTicker runs the full per-ticker pipeline: fetch, compute features,
// detect, score, gate, persist. Returns the API calls consumed and the
// number of alerts admitted.
func (e *Engine) runTicker(ctx context.Context, cfg *config.Config, scanID string, ticker domain.Ticker, today time.Time) (apiCalls, admitted int, err error) {
	chain, chainErr := e.facade.GetChainSnapshot(ctx, ticker)
	apiCalls++
	if chainErr != nil {
		return apiCalls, 0, chainErr
	}
	if err := e.repo.SaveChainSnapshot(ctx, scanID, chain); err != nil {
		e.log.Warn().Err(err).Str("ticker", string(ticker)).Msg("failed to persist chain snapshot")
	}

	hist, histErr := e.facade.GetPriceHistory(ctx, ticker, priceHistoryLookback)
	apiCalls++
	if histErr != nil {
		return apiCalls, 0, histErr
	}

	daysToEarnings, earnErr := e.facade.GetDaysToEarnings(ctx, ticker)
	apiCalls++
	if earnErr != nil {
		e.log.Debug().Err(earnErr).Str("ticker", string(ticker)).Msg("earnings lookup unavailable")
		daysToEarnings = nil
	}

	ivHistory, ivErr := e.repo.IVHistoryWindow(ctx, ticker, today, ivHistoryLookbackDays)
	if ivErr != nil {
		e.log.Warn().Err(ivErr).Str("ticker", string(ticker)).Msg("failed to load IV history")
	}

	skewHistory, skewErr := e.repo.SkewHistoryWindow(ctx, ticker, today, skewHistoryLookbackDays)
	if skewErr != nil {
		e.log.Warn().Err(skewErr).Str("ticker", string(ticker)).Msg("failed to load skew history")
	}

	fs := e.features.Compute(ticker, scanID, today, hist, chain, ivHistory, skewHistory, daysToEarnings)
	if err := e.repo.SaveFeatureSnapshot(ctx, scanID, ticker, fs); err != nil {
		e.log.Warn().Err(err).Str("ticker", string(ticker)).Msg("failed to persist feature snapshot")
	}
	if fs.IV.ATMIVFront != nil {
		if err := e.repo.AppendIVHistory(ctx, domain.IVHistoryPoint{Ticker: ticker, Date: today, ATMIV: *fs.IV.ATMIVFront}); err != nil {
			e.log.Warn().Err(err).Str("ticker", string(ticker)).Msg("failed to append IV history")
		}
	}
	if fs.IV.Skew25D != nil {
		if err := e.repo.AppendSkewHistory(ctx, domain.SkewHistoryPoint{Ticker: ticker, Date: today, Skew25D: *fs.IV.Skew25D}); err != nil {
			e.log.Warn().Err(err).Str("ticker", string(ticker)).Msg("failed to append skew history")
		}
	}

	candidates, failed := e.detectors.Run(fs)
	for _, f := range failed {
		e.log.Warn().Err(f.Err).Str("detector", f.Name).Str("ticker", string(ticker)).Msg("detector failed")
	}

	for _, cand := range candidates {
		admittedOne, gateErr := e.gateAndPersist(ctx, cfg, scanID, fs, cand, today)
		if gateErr != nil {
			e.log.Warn().Err(gateErr).Str("ticker", string(ticker)).Str("detector", cand.DetectorName).Msg("alert gating failed")
			continue
		}
		if admittedOne {
			admitted++
		}
	}

	return apiCalls, admitted, nil
}

func (e *Engine) gateAndPersist(ctx context.Context, cfg *config.Config, scanID string, fs domain.FeatureSet, cand domain.AlertCandidate, today time.Time) (bool, error) {
	result := e.scorer.Score(cand, fs)

	cooldown, err := e.repo.GetCooldown(ctx, cand.Ticker)
	if err != nil {
		return false, err
	}
	dailyCount, err := e.repo.DailyAlertCount(ctx, today)
	if err != nil {
		return false, err
	}

	gate := throttle.Evaluate(ctx, throttle.Config{
		DailyCap:               cfg.Alerts.MaxAlertsPerDay,
		CooldownDuration:       cfg.CooldownDuration(),
		MinScoreImprovement:    cfg.Alerts.MinScoreImprovement,
		MaxConcentrationPct:    cfg.Risk.MaxConcentrationPct,
		MarginGateThresholdPct: cfg.Risk.MarginGateThresholdPct,
		CashGateThresholdPct:   cfg.Risk.CashGateThresholdPct,
	}, throttle.Inputs{
		Ticker:          cand.Ticker,
		FinalScore:      result.FinalScore,
		Now:             time.Now(),
		DailyCount:      dailyCount,
		Cooldown:        cooldown,
		Account:         e.account,
		UnderlyingPrice: fs.UnderlyingPrice,
	})

	if !gate.Admitted {
		if e.metrics != nil {
			e.metrics.AlertsSuppressed.WithLabelValues(firstFailedGate(gate)).Inc()
		}
		return false, nil
	}

	explanation := e.scorer.Explain(cand, fs, result, time.Now())
	alert := domain.Alert{
		ID:          uuid.NewString(),
		ScanID:      scanID,
		Ticker:      cand.Ticker,
		Detector:    cand.DetectorName,
		RawScore:    cand.RawScore,
		FinalScore:  result.FinalScore,
		Metrics:     cand.Metrics,
		Explanation: explanation,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.repo.SaveAlert(ctx, alert); err != nil {
		return false, err
	}
	if _, err := e.repo.IncrementDailyAlertCount(ctx, today); err != nil {
		return false, err
	}
	if err := e.repo.SetCooldown(ctx, domain.CooldownRecord{
		Ticker:      cand.Ticker,
		LastAlertTS: alert.CreatedAt,
		LastScore:   result.FinalScore,
	}); err != nil {
		return false, err
	}
	if e.metrics != nil {
		e.metrics.AlertsAdmitted.WithLabelValues(cand.DetectorName).Inc()
	}
	return true, nil
}

// firstFailedGate returns the name of the first gate that failed, a
// low-cardinality label suitable for metrics (unlike the free-text
// OverallReason message).
func firstFailedGate(result throttle.Result) string {
	for _, r := range result.Reasons {
		if !r.Passed {
			return r.Name
		}
	}
	return "unknown"
}

func toTickers(watchlist []string) []domain.Ticker {
	out := make([]domain.Ticker, len(watchlist))
	for i, w := range watchlist {
		out[i] = domain.Ticker(w)
	}
	return out
}
