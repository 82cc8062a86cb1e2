// Package domain holds the shared entities of the options analytics
// engine: tickers, chains, feature sets, alerts and their supporting
// records. Types here carry no I/O and no business logic beyond simple
// invariant helpers.
package domain

import "time"

// Ticker is an opaque uppercase equity symbol, 1-8 characters.
type Ticker string

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// OptionContract is one row of an option chain: a single (ticker,
// expiration, type, strike) combination.
type OptionContract struct {
	Expiration time.Time  `json:"expiration"`
	Type       OptionType `json:"type"`
	Strike     float64    `json:"strike"`

	Bid          float64  `json:"bid"`
	Ask          float64  `json:"ask"`
	Last         float64  `json:"last"`
	Volume       int64    `json:"volume"`
	OpenInterest int64    `json:"open_interest"`
	ImpliedVol   float64  `json:"implied_vol"`
	Delta        *float64 `json:"delta,omitempty"`
	Gamma        *float64 `json:"gamma,omitempty"`
	Vega         *float64 `json:"vega,omitempty"`
	Theta        *float64 `json:"theta,omitempty"`
	Rho          *float64 `json:"rho,omitempty"`
}

// Mid returns the midpoint of bid/ask, or Last if both are zero.
func (c OptionContract) Mid() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	return c.Last
}

// SpreadPct returns (ask-bid)/mid * 100, or 0 if mid is non-positive.
func (c OptionContract) SpreadPct() float64 {
	mid := c.Mid()
	if mid <= 0 {
		return 0
	}
	return (c.Ask - c.Bid) / mid * 100
}

// Valid reports whether the contract satisfies the basic price and
// Greek-sign invariants from the data model.
func (c OptionContract) Valid() bool {
	if c.Bid > 0 && c.Ask > 0 && c.Last > 0 {
		if !(c.Bid <= c.Last && c.Last <= c.Ask) {
			return false
		}
	}
	if c.Delta != nil {
		d := *c.Delta
		if c.Type == Call && (d < 0 || d > 1) {
			return false
		}
		if c.Type == Put && (d < -1 || d > 0) {
			return false
		}
	}
	return true
}

// ExpirationChain is the calls/puts for a single expiration date,
// ordered by strike ascending.
type ExpirationChain struct {
	Expiration time.Time        `json:"expiration"`
	Calls      []OptionContract `json:"calls"`
	Puts       []OptionContract `json:"puts"`
}

// ChainSnapshot is an immutable, atomically-captured option chain for
// one ticker at one instant.
type ChainSnapshot struct {
	Ticker          Ticker            `json:"ticker"`
	CapturedAt      time.Time         `json:"captured_at"`
	UnderlyingPrice float64           `json:"underlying_price"`
	ByExpiration    []ExpirationChain `json:"by_expiration"`
}

// PriceBar is one daily OHLCV bar.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceHistory is an ordered (ascending date), non-decreasing sequence
// of daily bars.
type PriceHistory struct {
	Ticker Ticker     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// Closes returns the closing prices in chronological order.
func (h PriceHistory) Closes() []float64 {
	out := make([]float64, len(h.Bars))
	for i, b := range h.Bars {
		out[i] = b.Close
	}
	return out
}

// Technicals holds moving-average, momentum and trend features.
type Technicals struct {
	SMA20  *float64 `json:"sma20,omitempty"`
	SMA50  *float64 `json:"sma50,omitempty"`
	SMA200 *float64 `json:"sma200,omitempty"`
	EMA12  *float64 `json:"ema12,omitempty"`
	EMA26  *float64 `json:"ema26,omitempty"`
	RSI14  *float64 `json:"rsi14,omitempty"`

	MACDLine   *float64 `json:"macd_line,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	MACDHist   *float64 `json:"macd_hist,omitempty"`

	ATR14 *float64 `json:"atr14,omitempty"`

	Return1d  *float64 `json:"return_1d,omitempty"`
	Return5d  *float64 `json:"return_5d,omitempty"`
	Return20d *float64 `json:"return_20d,omitempty"`

	// SMACrossSignal is "bullish" or "bearish" when SMA50 crossed SMA200
	// within the last few sessions, nil otherwise.
	SMACrossSignal *string `json:"sma_cross_signal,omitempty"`
	// RSICrossSignal is "overbought" or "oversold" when RSI14 crossed the
	// 70/30 threshold within the last few sessions, nil otherwise.
	RSICrossSignal *string `json:"rsi_cross_signal,omitempty"`
}

// VolFeatures holds realised-volatility estimators.
type VolFeatures struct {
	HV10          *float64 `json:"hv10,omitempty"`
	HV20          *float64 `json:"hv20,omitempty"`
	HV60          *float64 `json:"hv60,omitempty"`
	Parkinson20   *float64 `json:"parkinson20,omitempty"`
	GarmanKlass20 *float64 `json:"garman_klass20,omitempty"`
	DailyRange    *float64 `json:"daily_range,omitempty"`
	WeeklyRange   *float64 `json:"weekly_range,omitempty"`
}

// IVMetrics holds implied-volatility derived features.
type IVMetrics struct {
	ATMIVFront   *float64 `json:"atm_iv_front,omitempty"`
	ATMIVBack    *float64 `json:"atm_iv_back,omitempty"`
	TermSlope    *float64 `json:"term_slope,omitempty"`
	Skew25D        *float64 `json:"skew_25d,omitempty"`
	SkewZScore60D  *float64 `json:"skew_zscore_60d,omitempty"`
	IVPercentile   *float64 `json:"iv_percentile,omitempty"`
	IVRank         *float64 `json:"iv_rank,omitempty"`
}

// LiquidityFeatures holds option-chain liquidity features.
type LiquidityFeatures struct {
	MeanSpreadPctNearMoney *float64 `json:"mean_spread_pct_near_money,omitempty"`
	TotalOICalls           *float64 `json:"total_oi_calls,omitempty"`
	TotalOIPuts            *float64 `json:"total_oi_puts,omitempty"`
	PutCallOIRatio         *float64 `json:"put_call_oi_ratio,omitempty"`
}

// EventFeatures holds calendar-event features.
type EventFeatures struct {
	DaysToEarnings *int `json:"days_to_earnings,omitempty"`
}

// FeatureSet is the dense, deterministic feature record computed by the
// feature engine for one (ticker, scan) pair. Every *float64/*int field
// is nil exactly when the spec calls the value "absent" — never NaN,
// never +/-Inf.
type FeatureSet struct {
	Ticker          Ticker    `json:"ticker"`
	ScanID          string    `json:"scan_id"`
	AsOf            time.Time `json:"as_of"`
	UnderlyingPrice *float64  `json:"underlying_price,omitempty"`

	Technicals Technicals        `json:"technicals"`
	Vol        VolFeatures       `json:"vol"`
	IV         IVMetrics         `json:"iv"`
	Liquidity  LiquidityFeatures `json:"liquidity"`
	Event      EventFeatures     `json:"event"`
}

// RationaleKey enumerates the fixed set of detector explanation templates.
type RationaleKey string

const (
	RationaleLowIV        RationaleKey = "low_iv"
	RationaleRichPremium  RationaleKey = "rich_premium"
	RationaleEarningsCrush RationaleKey = "earnings_crush"
	RationaleTermKink     RationaleKey = "term_kink"
	RationaleSkewAnomaly  RationaleKey = "skew_anomaly"
	RationaleRegimeShift  RationaleKey = "regime_shift"
)

// AlertCandidate is what a single detector invocation may emit.
type AlertCandidate struct {
	DetectorName string
	Ticker       Ticker
	RawScore     float64
	Metrics      map[string]float64
	RationaleKey RationaleKey
}

// DirectionalBias is the detector's implied market direction.
type DirectionalBias string

const (
	Bullish DirectionalBias = "bullish"
	Bearish DirectionalBias = "bearish"
	Neutral DirectionalBias = "neutral"
)

// KeyMetric is one named, unit-labelled value surfaced in an explanation.
type KeyMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Explanation is the deterministic, data-driven rationale attached to a
// scored alert.
type Explanation struct {
	Summary              string          `json:"summary"`
	Rationale            string          `json:"rationale"`
	KeyMetrics           []KeyMetric     `json:"key_metrics,omitempty"`
	DirectionalBias      DirectionalBias `json:"directional_bias"`
	RiskFactors          []string        `json:"risk_factors,omitempty"`
	Opportunities        []string        `json:"opportunities,omitempty"`
	Timeframe            string          `json:"timeframe,omitempty"`
	NextMonitoringPoints []string        `json:"next_monitoring_points,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
}

// Alert is a persisted, scored, gated candidate. Immutable once written.
type Alert struct {
	ID          string             `json:"id"`
	ScanID      string             `json:"scan_id"`
	Ticker      Ticker             `json:"ticker"`
	Detector    string             `json:"detector"`
	RawScore    float64            `json:"raw_score"`
	FinalScore  float64            `json:"final_score"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Explanation Explanation        `json:"explanation"`
	Strategies  []string           `json:"strategies,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// CooldownRecord tracks the last alert fired for a ticker.
type CooldownRecord struct {
	Ticker      Ticker
	LastAlertTS time.Time
	LastScore   float64
}

// DailyAlertCounter is the at-most-one-row-per-UTC-day alert count.
type DailyAlertCounter struct {
	UTCDate time.Time
	Count   int
}

// IVHistoryPoint is one day's ATM IV sample, used for the rolling
// 252-day percentile/rank window.
type IVHistoryPoint struct {
	Ticker Ticker
	Date   time.Time
	ATMIV  float64
}

// SkewHistoryPoint is one day's 25-delta skew sample, used for the
// rolling 60-day mean/stdev the skew-anomaly detector scores against.
type SkewHistoryPoint struct {
	Ticker Ticker
	Date   time.Time
	Skew25D float64
}

// SchedulerStateKind is the FSM's current state.
type SchedulerStateKind string

const (
	StateIdle       SchedulerStateKind = "idle"
	StateWaiting    SchedulerStateKind = "waiting"
	StateCollecting SchedulerStateKind = "collecting"
	StateFlushing   SchedulerStateKind = "flushing"
	StateBackingOff SchedulerStateKind = "backing_off"
)

// SchedulerState is the single persisted row describing the FSM's
// position and rate-budget counters, serialised on every transition.
type SchedulerState struct {
	CurrentState        SchedulerStateKind
	APICallsToday        int
	APICallsThisHour     int
	HourWindowStart      time.Time
	DayWindowStart       time.Time
	NextCollectionAt     time.Time
	ConsecutiveFailures  int
	BackoffUntil         time.Time
	WriteBufferCount     int
	UpdatedAt            time.Time
}

// PositionSnapshot is one existing portfolio position, for the risk gate.
type PositionSnapshot struct {
	Ticker  Ticker
	Notional float64
	MarginUsed float64
}

// AccountState is the externally-supplied portfolio state the risk gate
// checks candidates against. A nil *AccountState means "no account
// configured" (spec.md §4.9: defaults permit the alert, with a warning).
type AccountState struct {
	MarginAvailable float64
	CashAvailable   float64
	Positions       []PositionSnapshot
}

// TotalPortfolioValue is cash plus the notional of all open positions
// (spec.md §9 Open Question resolution).
func (a AccountState) TotalPortfolioValue() float64 {
	total := a.CashAvailable
	for _, p := range a.Positions {
		total += p.Notional
	}
	return total
}

// ScanStatus is the lifecycle state of one scheduler cycle's Scans row.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanPartial   ScanStatus = "partial"
)

// Scan is one row of the Scans repository table.
type Scan struct {
	ID          string     `json:"id"`
	ConfigHash  string     `json:"config_hash,omitempty"`
	Status      ScanStatus `json:"status"`
	Tickers     []Ticker   `json:"tickers,omitempty"`
	AlertsCount int        `json:"alerts_count"`
	RuntimeS    float64    `json:"runtime_s"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
