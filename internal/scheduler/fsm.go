// Package scheduler implements the scheduler FSM (C10): a crash-
// recoverable, cooperatively-scheduled state machine driving the
// collection cycle. Grounded on the teacher's scheduler.go
// ticker-loop shape (Start(ctx) select loop), generalised from a
// TODO'd cron check into a real robfig/cron/v3-backed next-run
// computation and a persisted five-state machine.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sawpanic/optionsignal/internal/clock"
	"github.com/sawpanic/optionsignal/internal/domain"
	"github.com/sawpanic/optionsignal/internal/engineerr"
	"github.com/sawpanic/optionsignal/internal/repository"
)

// Config bounds the FSM's pacing and backoff behaviour.
type Config struct {
	CollectionTimesET  []string // "HH:MM", America/New_York
	MaxCallsPerHour    int
	MaxCallsPerDay     int
	InterCallDelay     time.Duration
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	MaxConsecutiveFail int
}

// CycleFunc runs one collection cycle end to end (market-data fetch,
// feature computation, detection, scoring, gating, persistence,
// export) and reports how many API calls it consumed.
type CycleFunc func(ctx context.Context) (apiCalls int, err error)

// FSM drives the scheduler's five-state machine: Idle, Waiting,
// Collecting, Flushing, BackingOff. Exactly one goroutine ever runs
// the loop; suspension happens only at the tick sleep, the inter-call
// delay, or a backoff sleep — never via fan-out across tickers within
// a cycle.
type FSM struct {
	cfg      Config
	repo     repository.Repository
	schedule cron.Schedule
	cycle    CycleFunc
	log      zerolog.Logger

	state domain.SchedulerState
}

// New builds an FSM, compiling every collection_times_et entry into a
// weekday cron spec and keeping the parsed schedules for Next().
func New(cfg Config, repo repository.Repository, cycle CycleFunc, log zerolog.Logger) (*FSM, error) {
	specs := make([]cron.Schedule, 0, len(cfg.CollectionTimesET))
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for _, t := range cfg.CollectionTimesET {
		var hh, mm int
		if _, err := fmt.Sscanf(t, "%d:%d", &hh, &mm); err != nil {
			return nil, fmt.Errorf("invalid collection time %q: %w", t, err)
		}
		spec := fmt.Sprintf("%d %d * * 1-5", mm, hh)
		sched, err := parser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
		}
		specs = append(specs, sched)
	}

	return &FSM{
		cfg:      cfg,
		repo:     repo,
		schedule: multiSchedule(specs),
		cycle:    cycle,
		log:      log.With().Str("component", "scheduler").Logger(),
	}, nil
}

// multiSchedule wraps several cron.Schedule values, returning the
// earliest Next() across all of them.
type multiSchedule []cron.Schedule

func (m multiSchedule) Next(t time.Time) time.Time {
	var best time.Time
	for i, s := range m {
		n := s.Next(t)
		if i == 0 || n.Before(best) {
			best = n
		}
	}
	return best
}

// Load restores persisted state, or initialises a fresh Idle state if
// none exists or the persisted row fails validation.
func (f *FSM) Load(ctx context.Context) error {
	st, err := f.repo.LoadSchedulerState(ctx)
	if err != nil {
		f.log.Error().Err(err).Msg("scheduler state corrupted, starting fresh")
		f.state = freshState()
		return nil
	}
	if st == nil {
		f.state = freshState()
		return nil
	}
	f.state = *st
	return nil
}

func freshState() domain.SchedulerState {
	now := time.Now().UTC()
	return domain.SchedulerState{
		CurrentState:    domain.StateIdle,
		HourWindowStart: now.Truncate(time.Hour),
		DayWindowStart:  now.Truncate(24 * time.Hour),
		UpdatedAt:       now,
	}
}

func (f *FSM) persist(ctx context.Context) {
	f.state.UpdatedAt = time.Now().UTC()
	if err := f.repo.SaveSchedulerState(ctx, f.state); err != nil {
		f.log.Warn().Err(err).Msg("failed to persist scheduler state")
	}
}

func (f *FSM) transition(ctx context.Context, to domain.SchedulerStateKind) {
	f.state.CurrentState = to
	f.persist(ctx)
}

// resetWindowsIfDue rolls the hour/day call counters over when their
// window has elapsed.
func (f *FSM) resetWindowsIfDue(now time.Time) {
	if now.Sub(f.state.HourWindowStart) >= time.Hour {
		f.state.APICallsThisHour = 0
		f.state.HourWindowStart = now.Truncate(time.Hour)
	}
	if now.Sub(f.state.DayWindowStart) >= 24*time.Hour {
		f.state.APICallsToday = 0
		f.state.DayWindowStart = now.Truncate(24 * time.Hour)
	}
}

// Run drives the FSM until ctx is cancelled. It is the only entry
// point that advances state; callers must not mutate FSM concurrently.
func (f *FSM) Run(ctx context.Context) error {
	if f.state.CurrentState == "" {
		if err := f.Load(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()
		f.resetWindowsIfDue(now.UTC())

		switch f.state.CurrentState {
		case domain.StateIdle, domain.StateWaiting:
			if err := f.waitForNext(ctx, now); err != nil {
				return err
			}
		case domain.StateCollecting:
			f.runCycle(ctx)
		case domain.StateFlushing:
			f.transition(ctx, domain.StateWaiting)
		case domain.StateBackingOff:
			if err := f.backoff(ctx); err != nil {
				return err
			}
		default:
			f.transition(ctx, domain.StateIdle)
		}
	}
}

func (f *FSM) waitForNext(ctx context.Context, now time.Time) error {
	next := f.schedule.Next(now)
	for !clock.IsTradingDay(next) {
		next = f.schedule.Next(next)
	}
	f.state.NextCollectionAt = next
	f.transition(ctx, domain.StateWaiting)

	d := time.Until(next)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		f.transition(ctx, domain.StateCollecting)
		return nil
	}
}

func (f *FSM) runCycle(ctx context.Context) {
	if f.state.APICallsThisHour >= f.cfg.MaxCallsPerHour || f.state.APICallsToday >= f.cfg.MaxCallsPerDay {
		f.log.Warn().Msg("rate budget exhausted, deferring cycle")
		f.transition(ctx, domain.StateBackingOff)
		return
	}

	calls, err := f.cycle(ctx)
	f.state.APICallsThisHour += calls
	f.state.APICallsToday += calls

	if err != nil {
		f.state.ConsecutiveFailures++
		f.log.Error().Err(err).Int("consecutive_failures", f.state.ConsecutiveFailures).Msg("collection cycle failed")
		if engineerr.IsBackoffTrigger(err) || f.state.ConsecutiveFailures >= f.cfg.MaxConsecutiveFail {
			f.transition(ctx, domain.StateBackingOff)
			return
		}
		f.transition(ctx, domain.StateFlushing)
		return
	}

	f.state.ConsecutiveFailures = 0
	f.transition(ctx, domain.StateFlushing)

	if f.cfg.InterCallDelay > 0 {
		timer := time.NewTimer(f.cfg.InterCallDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

func (f *FSM) backoff(ctx context.Context) error {
	// spec: backoff = min(InitialBackoff * 2^(n-1), MaxBackoff), n = consecutive failures.
	exp := f.state.ConsecutiveFailures - 1
	if exp < 0 {
		exp = 0
	}
	delay := f.cfg.InitialBackoff * time.Duration(1<<uint(minInt(exp, 6)))
	if delay > f.cfg.MaxBackoff || delay <= 0 {
		delay = f.cfg.MaxBackoff
	}
	f.state.BackoffUntil = time.Now().Add(delay)
	f.persist(ctx)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		f.transition(ctx, domain.StateIdle)
		return nil
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
