// Package repository defines the durable store contract (C5): one
// interface, two sqlx-backed drivers (SQLite, PostgreSQL) in the sql
// subpackage. Grounded on internal/persistence/interfaces.go's
// interface-per-entity shape, collapsed here to the single
// options-engine Repository the spec requires.
package repository

import (
	"context"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// Repository is the durable store the engine writes scan results,
// alerts and scheduler state to, and reads cooldown/history state
// back from.
type Repository interface {
	// SaveScan upserts a scan's lifecycle row.
	SaveScan(ctx context.Context, scan domain.Scan) error

	// SaveFeatureSnapshot persists the opaque per-ticker feature blob
	// for a scan.
	SaveFeatureSnapshot(ctx context.Context, scanID string, ticker domain.Ticker, fs domain.FeatureSet) error

	// SaveChainSnapshot persists the opaque chain blob for a scan.
	SaveChainSnapshot(ctx context.Context, scanID string, snap domain.ChainSnapshot) error

	// SaveAlert persists an admitted, scored alert.
	SaveAlert(ctx context.Context, alert domain.Alert) error

	// ListAlerts returns alerts created within [from, to], newest first.
	ListAlerts(ctx context.Context, from, to time.Time, limit int) ([]domain.Alert, error)

	// ListRecentScans returns up to limit scans, newest first.
	ListRecentScans(ctx context.Context, limit int) ([]domain.Scan, error)

	// ListRecentChainSnapshots returns up to limit chain snapshots
	// across all scans, newest first, for export.
	ListRecentChainSnapshots(ctx context.Context, limit int) ([]domain.ChainSnapshot, error)

	// ListRecentFeatureSnapshots returns the most recent FeatureSet per
	// ticker, for export.
	ListRecentFeatureSnapshots(ctx context.Context) (map[domain.Ticker]domain.FeatureSet, error)

	// GetCooldown returns the cooldown record for ticker, or nil if none.
	GetCooldown(ctx context.Context, ticker domain.Ticker) (*domain.CooldownRecord, error)

	// SetCooldown upserts the cooldown record for ticker.
	SetCooldown(ctx context.Context, rec domain.CooldownRecord) error

	// DailyAlertCount returns the alert count for the given UTC date.
	DailyAlertCount(ctx context.Context, utcDate time.Time) (int, error)

	// IncrementDailyAlertCount increments (creating if absent) the
	// counter row for the given UTC date and returns the new total.
	IncrementDailyAlertCount(ctx context.Context, utcDate time.Time) (int, error)

	// AppendIVHistory appends one day's ATM IV sample for ticker.
	AppendIVHistory(ctx context.Context, pt domain.IVHistoryPoint) error

	// IVHistoryWindow returns up to lookbackDays of IV history for
	// ticker ending at asOf, oldest first.
	IVHistoryWindow(ctx context.Context, ticker domain.Ticker, asOf time.Time, lookbackDays int) ([]domain.IVHistoryPoint, error)

	// AppendSkewHistory appends one day's 25-delta skew sample for ticker.
	AppendSkewHistory(ctx context.Context, pt domain.SkewHistoryPoint) error

	// SkewHistoryWindow returns up to lookbackDays of skew history for
	// ticker ending at asOf, oldest first.
	SkewHistoryWindow(ctx context.Context, ticker domain.Ticker, asOf time.Time, lookbackDays int) ([]domain.SkewHistoryPoint, error)

	// LoadSchedulerState returns the single persisted scheduler state
	// row, or nil if the engine has never run.
	LoadSchedulerState(ctx context.Context) (*domain.SchedulerState, error)

	// SaveSchedulerState overwrites the single scheduler state row.
	SaveSchedulerState(ctx context.Context, st domain.SchedulerState) error

	// Close releases underlying connections.
	Close() error
}
