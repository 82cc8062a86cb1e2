// Package sql implements the Repository contract (C5) on sqlx,
// against either an embedded SQLite database (default, single-writer,
// pure Go via modernc.org/sqlite) or PostgreSQL (production, via
// lib/pq). Grounded on internal/persistence/postgres/regime_repo.go's
// upsert/QueryRowxContext/context-timeout pattern, generalised from
// one entity to the engine's full Repository surface.
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sawpanic/optionsignal/internal/domain"
	"github.com/sawpanic/optionsignal/internal/engineerr"
)

// Store is a sqlx-backed Repository. The same struct serves both
// drivers; only the DSN prefix differs at Open time.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects to dsn, picking the driver by prefix: "postgres://" or
// "postgresql://" selects lib/pq, anything else (including a bare
// filesystem path or ":memory:") selects the embedded SQLite driver.
// Migrations are applied idempotently before Open returns.
func Open(ctx context.Context, dsn string, timeout time.Duration) (*Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "open:" + driver, Cause: err}
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer by construction
	}

	if err := applyMigrations(ctx, db.DB); err != nil {
		db.Close()
		return nil, &engineerr.StoreUnavailable{Op: "migrate", Cause: err}
	}

	return &Store{db: db, timeout: timeout}, nil
}

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) Close() error { return s.db.Close() }

func tickersToCSV(tickers []domain.Ticker) string {
	parts := make([]string, len(tickers))
	for i, t := range tickers {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func csvToTickers(csv string) []domain.Ticker {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]domain.Ticker, len(parts))
	for i, p := range parts {
		out[i] = domain.Ticker(p)
	}
	return out
}

// SaveScan upserts the scan lifecycle row.
func (s *Store) SaveScan(ctx context.Context, scan domain.Scan) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO scans (id, config_hash, status, tickers, alerts_count, runtime_s, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			alerts_count = excluded.alerts_count,
			runtime_s = excluded.runtime_s,
			error = excluded.error,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		scan.ID, scan.ConfigHash, string(scan.Status), tickersToCSV(scan.Tickers),
		scan.AlertsCount, scan.RuntimeS, scan.Error, scan.CreatedAt, scan.UpdatedAt)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "SaveScan", Cause: err}
	}
	return nil
}

// SaveFeatureSnapshot persists fs as an opaque msgpack blob.
func (s *Store) SaveFeatureSnapshot(ctx context.Context, scanID string, ticker domain.Ticker, fs domain.FeatureSet) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	payload, err := msgpack.Marshal(fs)
	if err != nil {
		return fmt.Errorf("marshal feature snapshot: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO feature_snapshots (scan_id, ticker, as_of, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scan_id, ticker) DO UPDATE SET as_of = excluded.as_of, payload = excluded.payload`)

	_, err = s.db.ExecContext(ctx, query, scanID, string(ticker), fs.AsOf, payload)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "SaveFeatureSnapshot", Cause: err}
	}
	return nil
}

// SaveChainSnapshot persists snap as an opaque msgpack blob.
func (s *Store) SaveChainSnapshot(ctx context.Context, scanID string, snap domain.ChainSnapshot) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	payload, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal chain snapshot: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO chain_snapshots (scan_id, ticker, captured_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scan_id, ticker) DO UPDATE SET captured_at = excluded.captured_at, payload = excluded.payload`)

	_, err = s.db.ExecContext(ctx, query, scanID, string(snap.Ticker), snap.CapturedAt, payload)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "SaveChainSnapshot", Cause: err}
	}
	return nil
}

// SaveAlert persists an admitted, scored alert.
func (s *Store) SaveAlert(ctx context.Context, alert domain.Alert) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	metricsJSON, err := json.Marshal(alert.Metrics)
	if err != nil {
		return fmt.Errorf("marshal alert metrics: %w", err)
	}
	explJSON, err := json.Marshal(alert.Explanation)
	if err != nil {
		return fmt.Errorf("marshal alert explanation: %w", err)
	}
	stratJSON, err := json.Marshal(alert.Strategies)
	if err != nil {
		return fmt.Errorf("marshal alert strategies: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO alerts (id, scan_id, ticker, detector, raw_score, final_score, metrics, explanation, strategies, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		alert.ID, alert.ScanID, string(alert.Ticker), alert.Detector,
		alert.RawScore, alert.FinalScore, metricsJSON, explJSON, stratJSON, alert.CreatedAt)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "SaveAlert", Cause: err}
	}
	return nil
}

// ListAlerts returns alerts created within [from, to], newest first.
func (s *Store) ListAlerts(ctx context.Context, from, to time.Time, limit int) ([]domain.Alert, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		SELECT id, scan_id, ticker, detector, raw_score, final_score, metrics, explanation, strategies, created_at
		FROM alerts WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC LIMIT ?`)

	rows, err := s.db.QueryxContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "ListAlerts", Cause: err}
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var ticker, metricsJSON, explJSON, stratJSON string
		if err := rows.Scan(&a.ID, &a.ScanID, &ticker, &a.Detector, &a.RawScore, &a.FinalScore,
			&metricsJSON, &explJSON, &stratJSON, &a.CreatedAt); err != nil {
			return nil, &engineerr.StoreUnavailable{Op: "ListAlerts.scan", Cause: err}
		}
		a.Ticker = domain.Ticker(ticker)
		_ = json.Unmarshal([]byte(metricsJSON), &a.Metrics)
		_ = json.Unmarshal([]byte(explJSON), &a.Explanation)
		_ = json.Unmarshal([]byte(stratJSON), &a.Strategies)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListRecentScans returns up to limit scans, newest first.
func (s *Store) ListRecentScans(ctx context.Context, limit int) ([]domain.Scan, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		SELECT id, config_hash, status, tickers, alerts_count, runtime_s, error, created_at, updated_at
		FROM scans ORDER BY created_at DESC LIMIT ?`)

	rows, err := s.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "ListRecentScans", Cause: err}
	}
	defer rows.Close()

	var out []domain.Scan
	for rows.Next() {
		var sc domain.Scan
		var status, tickers string
		if err := rows.Scan(&sc.ID, &sc.ConfigHash, &status, &tickers, &sc.AlertsCount,
			&sc.RuntimeS, &sc.Error, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, &engineerr.StoreUnavailable{Op: "ListRecentScans.scan", Cause: err}
		}
		sc.Status = domain.ScanStatus(status)
		sc.Tickers = csvToTickers(tickers)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListRecentChainSnapshots returns up to limit chain snapshots across
// all scans, newest first, decoding each opaque msgpack payload.
func (s *Store) ListRecentChainSnapshots(ctx context.Context, limit int) ([]domain.ChainSnapshot, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`SELECT payload FROM chain_snapshots ORDER BY captured_at DESC LIMIT ?`)
	rows, err := s.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "ListRecentChainSnapshots", Cause: err}
	}
	defer rows.Close()

	var out []domain.ChainSnapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, &engineerr.StoreUnavailable{Op: "ListRecentChainSnapshots.scan", Cause: err}
		}
		var snap domain.ChainSnapshot
		if err := msgpack.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal chain snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListRecentFeatureSnapshots returns the most recent FeatureSet per
// ticker across all scans.
func (s *Store) ListRecentFeatureSnapshots(ctx context.Context) (map[domain.Ticker]domain.FeatureSet, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		SELECT ticker, payload FROM feature_snapshots f
		WHERE as_of = (SELECT MAX(as_of) FROM feature_snapshots WHERE ticker = f.ticker)`)
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "ListRecentFeatureSnapshots", Cause: err}
	}
	defer rows.Close()

	out := make(map[domain.Ticker]domain.FeatureSet)
	for rows.Next() {
		var ticker string
		var payload []byte
		if err := rows.Scan(&ticker, &payload); err != nil {
			return nil, &engineerr.StoreUnavailable{Op: "ListRecentFeatureSnapshots.scan", Cause: err}
		}
		var fs domain.FeatureSet
		if err := msgpack.Unmarshal(payload, &fs); err != nil {
			return nil, fmt.Errorf("unmarshal feature snapshot: %w", err)
		}
		out[domain.Ticker(ticker)] = fs
	}
	return out, rows.Err()
}

// GetCooldown returns the cooldown record for ticker, or nil if none.
func (s *Store) GetCooldown(ctx context.Context, ticker domain.Ticker) (*domain.CooldownRecord, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`SELECT ticker, last_alert_ts, last_score FROM cooldowns WHERE ticker = ?`)
	row := s.db.QueryRowxContext(ctx, query, string(ticker))

	var rec domain.CooldownRecord
	var t string
	err := row.Scan(&t, &rec.LastAlertTS, &rec.LastScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "GetCooldown", Cause: err}
	}
	rec.Ticker = domain.Ticker(t)
	return &rec, nil
}

// SetCooldown upserts the cooldown record for ticker.
func (s *Store) SetCooldown(ctx context.Context, rec domain.CooldownRecord) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO cooldowns (ticker, last_alert_ts, last_score) VALUES (?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET last_alert_ts = excluded.last_alert_ts, last_score = excluded.last_score`)

	_, err := s.db.ExecContext(ctx, query, string(rec.Ticker), rec.LastAlertTS, rec.LastScore)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "SetCooldown", Cause: err}
	}
	return nil
}

// DailyAlertCount returns the alert count for the given UTC date.
func (s *Store) DailyAlertCount(ctx context.Context, utcDate time.Time) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`SELECT count FROM daily_alert_counters WHERE utc_date = ?`)
	row := s.db.QueryRowxContext(ctx, query, utcDate)

	var count int
	err := row.Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &engineerr.StoreUnavailable{Op: "DailyAlertCount", Cause: err}
	}
	return count, nil
}

// IncrementDailyAlertCount increments (creating if absent) the
// counter row for utcDate and returns the new total.
func (s *Store) IncrementDailyAlertCount(ctx context.Context, utcDate time.Time) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO daily_alert_counters (utc_date, count) VALUES (?, 1)
		ON CONFLICT (utc_date) DO UPDATE SET count = daily_alert_counters.count + 1`)

	if _, err := s.db.ExecContext(ctx, query, utcDate); err != nil {
		return 0, &engineerr.StoreUnavailable{Op: "IncrementDailyAlertCount", Cause: err}
	}
	return s.DailyAlertCount(ctx, utcDate)
}

// AppendIVHistory appends one day's ATM IV sample for ticker.
func (s *Store) AppendIVHistory(ctx context.Context, pt domain.IVHistoryPoint) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO iv_history (ticker, date, atm_iv) VALUES (?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET atm_iv = excluded.atm_iv`)

	_, err := s.db.ExecContext(ctx, query, string(pt.Ticker), pt.Date, pt.ATMIV)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "AppendIVHistory", Cause: err}
	}
	return nil
}

// IVHistoryWindow returns up to lookbackDays of IV history for ticker
// ending at asOf, oldest first.
func (s *Store) IVHistoryWindow(ctx context.Context, ticker domain.Ticker, asOf time.Time, lookbackDays int) ([]domain.IVHistoryPoint, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	from := asOf.AddDate(0, 0, -lookbackDays)
	query := s.db.Rebind(`
		SELECT ticker, date, atm_iv FROM iv_history
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`)

	rows, err := s.db.QueryxContext(ctx, query, string(ticker), from, asOf)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "IVHistoryWindow", Cause: err}
	}
	defer rows.Close()

	var out []domain.IVHistoryPoint
	for rows.Next() {
		var pt domain.IVHistoryPoint
		var t string
		if err := rows.Scan(&t, &pt.Date, &pt.ATMIV); err != nil {
			return nil, &engineerr.StoreUnavailable{Op: "IVHistoryWindow.scan", Cause: err}
		}
		pt.Ticker = domain.Ticker(t)
		out = append(out, pt)
	}
	return out, rows.Err()
}

// AppendSkewHistory appends one day's 25-delta skew sample for ticker.
func (s *Store) AppendSkewHistory(ctx context.Context, pt domain.SkewHistoryPoint) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO skew_history (ticker, date, skew_25d) VALUES (?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET skew_25d = excluded.skew_25d`)

	_, err := s.db.ExecContext(ctx, query, string(pt.Ticker), pt.Date, pt.Skew25D)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "AppendSkewHistory", Cause: err}
	}
	return nil
}

// SkewHistoryWindow returns up to lookbackDays of skew history for
// ticker ending at asOf, oldest first.
func (s *Store) SkewHistoryWindow(ctx context.Context, ticker domain.Ticker, asOf time.Time, lookbackDays int) ([]domain.SkewHistoryPoint, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	from := asOf.AddDate(0, 0, -lookbackDays)
	query := s.db.Rebind(`
		SELECT ticker, date, skew_25d FROM skew_history
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`)

	rows, err := s.db.QueryxContext(ctx, query, string(ticker), from, asOf)
	if err != nil {
		return nil, &engineerr.StoreUnavailable{Op: "SkewHistoryWindow", Cause: err}
	}
	defer rows.Close()

	var out []domain.SkewHistoryPoint
	for rows.Next() {
		var pt domain.SkewHistoryPoint
		var t string
		if err := rows.Scan(&t, &pt.Date, &pt.Skew25D); err != nil {
			return nil, &engineerr.StoreUnavailable{Op: "SkewHistoryWindow.scan", Cause: err}
		}
		pt.Ticker = domain.Ticker(t)
		out = append(out, pt)
	}
	return out, rows.Err()
}

// LoadSchedulerState returns the single persisted scheduler state row.
func (s *Store) LoadSchedulerState(ctx context.Context) (*domain.SchedulerState, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := `SELECT current_state, api_calls_today, api_calls_this_hour, hour_window_start,
		day_window_start, next_collection_at, consecutive_failures, backoff_until,
		write_buffer_count, updated_at FROM scheduler_state WHERE id = 1`
	row := s.db.QueryRowxContext(ctx, query)

	var st domain.SchedulerState
	var stateStr string
	err := row.Scan(&stateStr, &st.APICallsToday, &st.APICallsThisHour, &st.HourWindowStart,
		&st.DayWindowStart, &st.NextCollectionAt, &st.ConsecutiveFailures, &st.BackoffUntil,
		&st.WriteBufferCount, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &engineerr.StateCorruption{Detail: err.Error()}
	}
	st.CurrentState = domain.SchedulerStateKind(stateStr)
	return &st, nil
}

// SaveSchedulerState overwrites the single scheduler state row.
func (s *Store) SaveSchedulerState(ctx context.Context, st domain.SchedulerState) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := s.db.Rebind(`
		INSERT INTO scheduler_state (id, current_state, api_calls_today, api_calls_this_hour,
			hour_window_start, day_window_start, next_collection_at, consecutive_failures,
			backoff_until, write_buffer_count, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			current_state = excluded.current_state,
			api_calls_today = excluded.api_calls_today,
			api_calls_this_hour = excluded.api_calls_this_hour,
			hour_window_start = excluded.hour_window_start,
			day_window_start = excluded.day_window_start,
			next_collection_at = excluded.next_collection_at,
			consecutive_failures = excluded.consecutive_failures,
			backoff_until = excluded.backoff_until,
			write_buffer_count = excluded.write_buffer_count,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query, string(st.CurrentState), st.APICallsToday, st.APICallsThisHour,
		st.HourWindowStart, st.DayWindowStart, st.NextCollectionAt, st.ConsecutiveFailures,
		st.BackoffUntil, st.WriteBufferCount, st.UpdatedAt)
	if err != nil {
		return &engineerr.StoreUnavailable{Op: "SaveSchedulerState", Cause: err}
	}
	return nil
}
