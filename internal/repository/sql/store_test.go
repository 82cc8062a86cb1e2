package sql

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", 5*time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndListAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	alert := domain.Alert{
		ID: "a1", ScanID: "s1", Ticker: "AAPL", Detector: "low_iv",
		RawScore: 70, FinalScore: 65, CreatedAt: now,
	}
	if err := s.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	got, err := s.ListAlerts(ctx, now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("expected 1 alert with id a1, got %+v", got)
	}
	if got[0].Ticker != "AAPL" {
		t.Errorf("expected ticker AAPL, got %s", got[0].Ticker)
	}
}

func TestStore_SaveScanUpsertsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	scan := domain.Scan{ID: "scan-1", Status: domain.ScanRunning, CreatedAt: now, UpdatedAt: now}
	if err := s.SaveScan(ctx, scan); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}

	scan.Status = domain.ScanCompleted
	scan.AlertsCount = 3
	scan.UpdatedAt = now.Add(time.Minute)
	if err := s.SaveScan(ctx, scan); err != nil {
		t.Fatalf("SaveScan update: %v", err)
	}

	scans, err := s.ListRecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentScans: %v", err)
	}
	if len(scans) != 1 {
		t.Fatalf("expected the upsert to leave exactly one scan row, got %d", len(scans))
	}
	if scans[0].Status != domain.ScanCompleted || scans[0].AlertsCount != 3 {
		t.Errorf("expected the update to take effect, got %+v", scans[0])
	}
}

func TestStore_ChainSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	snap := domain.ChainSnapshot{
		Ticker: "AAPL", CapturedAt: now, UnderlyingPrice: 150,
		ByExpiration: []domain.ExpirationChain{
			{Expiration: now.AddDate(0, 0, 30), Calls: []domain.OptionContract{{Strike: 150, ImpliedVol: 0.25}}},
		},
	}
	if err := s.SaveChainSnapshot(ctx, "scan-1", snap); err != nil {
		t.Fatalf("SaveChainSnapshot: %v", err)
	}

	got, err := s.ListRecentChainSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentChainSnapshots: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAPL" || got[0].UnderlyingPrice != 150 {
		t.Fatalf("expected round-tripped chain snapshot, got %+v", got)
	}
	if len(got[0].ByExpiration) != 1 || len(got[0].ByExpiration[0].Calls) != 1 {
		t.Errorf("expected the expiration/contract structure to survive msgpack round trip, got %+v", got[0])
	}
}

func TestStore_FeatureSnapshotMostRecentPerTicker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	older := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)
	newer := time.Now().UTC().Truncate(time.Second)

	fsOld := domain.FeatureSet{Ticker: "AAPL", AsOf: older}
	fsNew := domain.FeatureSet{Ticker: "AAPL", AsOf: newer}
	if err := s.SaveFeatureSnapshot(ctx, "scan-1", "AAPL", fsOld); err != nil {
		t.Fatalf("SaveFeatureSnapshot old: %v", err)
	}
	if err := s.SaveFeatureSnapshot(ctx, "scan-2", "AAPL", fsNew); err != nil {
		t.Fatalf("SaveFeatureSnapshot new: %v", err)
	}

	got, err := s.ListRecentFeatureSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListRecentFeatureSnapshots: %v", err)
	}
	fs, ok := got["AAPL"]
	if !ok {
		t.Fatal("expected a feature snapshot for AAPL")
	}
	if !fs.AsOf.Equal(newer) {
		t.Errorf("expected the most recent snapshot (as_of=%v), got as_of=%v", newer, fs.AsOf)
	}
}

func TestStore_CooldownGetSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if rec, err := s.GetCooldown(ctx, "AAPL"); err != nil || rec != nil {
		t.Fatalf("expected no cooldown record yet, got %+v, err=%v", rec, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.SetCooldown(ctx, domain.CooldownRecord{Ticker: "AAPL", LastAlertTS: now, LastScore: 72}); err != nil {
		t.Fatalf("SetCooldown: %v", err)
	}

	rec, err := s.GetCooldown(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetCooldown: %v", err)
	}
	if rec == nil || rec.LastScore != 72 {
		t.Fatalf("expected a cooldown record with score 72, got %+v", rec)
	}
}

func TestStore_DailyAlertCountIncrementsAndReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	if n, err := s.DailyAlertCount(ctx, day); err != nil || n != 0 {
		t.Fatalf("expected 0 for an unseen day, got %d, err=%v", n, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.IncrementDailyAlertCount(ctx, day); err != nil {
			t.Fatalf("IncrementDailyAlertCount: %v", err)
		}
	}

	n, err := s.DailyAlertCount(ctx, day)
	if err != nil {
		t.Fatalf("DailyAlertCount: %v", err)
	}
	if n != 3 {
		t.Errorf("expected count 3 after three increments, got %d", n)
	}
}

func TestStore_IVHistoryWindowOrdersOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		pt := domain.IVHistoryPoint{Ticker: "AAPL", Date: base.AddDate(0, 0, i), ATMIV: 0.2 + float64(i)*0.01}
		if err := s.AppendIVHistory(ctx, pt); err != nil {
			t.Fatalf("AppendIVHistory: %v", err)
		}
	}

	got, err := s.IVHistoryWindow(ctx, "AAPL", base.AddDate(0, 0, 10), 30)
	if err != nil {
		t.Fatalf("IVHistoryWindow: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 points, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.Before(got[i-1].Date) {
			t.Errorf("expected ascending dates, got %v before %v", got[i].Date, got[i-1].Date)
		}
	}
}

func TestStore_SkewHistoryWindowOrdersOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		pt := domain.SkewHistoryPoint{Ticker: "AAPL", Date: base.AddDate(0, 0, i), Skew25D: 0.01 * float64(i)}
		if err := s.AppendSkewHistory(ctx, pt); err != nil {
			t.Fatalf("AppendSkewHistory: %v", err)
		}
	}

	got, err := s.SkewHistoryWindow(ctx, "AAPL", base.AddDate(0, 0, 10), 30)
	if err != nil {
		t.Fatalf("SkewHistoryWindow: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 points, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.Before(got[i-1].Date) {
			t.Errorf("expected ascending dates, got %v before %v", got[i].Date, got[i-1].Date)
		}
	}
}

func TestStore_SchedulerStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if st, err := s.LoadSchedulerState(ctx); err != nil || st != nil {
		t.Fatalf("expected no scheduler state before first save, got %+v, err=%v", st, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	want := domain.SchedulerState{
		CurrentState: domain.StateIdle, APICallsToday: 5, APICallsThisHour: 2,
		HourWindowStart: now, DayWindowStart: now, NextCollectionAt: now.Add(time.Hour),
		ConsecutiveFailures: 1, UpdatedAt: now,
	}
	if err := s.SaveSchedulerState(ctx, want); err != nil {
		t.Fatalf("SaveSchedulerState: %v", err)
	}

	got, err := s.LoadSchedulerState(ctx)
	if err != nil {
		t.Fatalf("LoadSchedulerState: %v", err)
	}
	if got == nil || got.CurrentState != domain.StateIdle || got.APICallsToday != 5 {
		t.Fatalf("expected the saved state round-tripped, got %+v", got)
	}

	want.CurrentState = domain.StateCollecting
	want.APICallsToday = 6
	if err := s.SaveSchedulerState(ctx, want); err != nil {
		t.Fatalf("SaveSchedulerState update: %v", err)
	}
	got, err = s.LoadSchedulerState(ctx)
	if err != nil {
		t.Fatalf("LoadSchedulerState: %v", err)
	}
	if got.CurrentState != domain.StateCollecting || got.APICallsToday != 6 {
		t.Errorf("expected the single-row upsert to reflect the update, got %+v", got)
	}
}
