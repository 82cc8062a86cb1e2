// Package ratelimit implements per-endpoint token-bucket rate limiting
// plus daily call-budget tracking, grounded on
// internal/net/ratelimit/limiter.go (golang.org/x/time/rate wrapper)
// and internal/net/budget/budget.go (atomic daily-reset counter).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps one golang.org/x/time/rate.Limiter per named endpoint.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewLimiter creates an empty per-endpoint rate limiter set.
func NewLimiter() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// AddEndpoint configures a token bucket for endpoint: rps tokens
// refill per second, up to burst tokens held.
func (l *Limiter) AddEndpoint(endpoint string, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[endpoint] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Allow reports whether a call to endpoint may proceed now. Unknown
// endpoints are always allowed.
func (l *Limiter) Allow(endpoint string) bool {
	l.mu.RLock()
	lim, ok := l.limiters[endpoint]
	l.mu.RUnlock()
	if !ok {
		return true
	}
	return lim.Allow()
}

// Wait blocks until endpoint's bucket has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	l.mu.RLock()
	lim, ok := l.limiters[endpoint]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// BudgetExhausted is returned by Tracker.Consume when the daily call
// budget for a provider has been used up.
type BudgetExhausted struct {
	Provider string
	Used     int64
	Limit    int64
	ResetAt  time.Time
}

func (e *BudgetExhausted) Error() string {
	return fmt.Sprintf("daily budget exhausted for %s: %d/%d used, resets at %s",
		e.Provider, e.Used, e.Limit, e.ResetAt.Format("15:04 UTC"))
}

// BudgetStatus is a read-only snapshot of a provider's daily budget.
type BudgetStatus struct {
	Provider        string
	Used            int64
	Limit           int64
	UtilizationRate float64
	ResetAt         time.Time
}

// Tracker tracks one provider's daily call budget, resetting at a
// fixed UTC hour each day.
type Tracker struct {
	provider  string
	limit     int64
	used      int64
	resetHour int
	mu        sync.Mutex
	lastReset time.Time
}

// NewTracker creates a daily budget tracker resetting at resetHour UTC.
func NewTracker(provider string, limit int64, resetHour int) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	now := time.Now().UTC()
	return &Tracker{
		provider:  provider,
		limit:     limit,
		resetHour: resetHour,
		lastReset: lastResetBefore(now, resetHour),
	}
}

func lastResetBefore(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

func (t *Tracker) resetIfDue() {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.After(t.lastReset.Add(24 * time.Hour)) {
		atomic.StoreInt64(&t.used, 0)
		t.lastReset = lastResetBefore(now, t.resetHour)
	}
}

func (t *Tracker) resetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReset.Add(24 * time.Hour)
}

// Consume records one call against the budget, returning
// *BudgetExhausted if the limit was already reached.
func (t *Tracker) Consume() error {
	t.resetIfDue()
	n := atomic.AddInt64(&t.used, 1)
	if n > t.limit {
		atomic.AddInt64(&t.used, -1)
		return &BudgetExhausted{Provider: t.provider, Used: n - 1, Limit: t.limit, ResetAt: t.resetAt()}
	}
	return nil
}

// Status returns a snapshot of the tracker.
func (t *Tracker) Status() BudgetStatus {
	t.resetIfDue()
	used := atomic.LoadInt64(&t.used)
	return BudgetStatus{
		Provider:        t.provider,
		Used:            used,
		Limit:           t.limit,
		UtilizationRate: float64(used) / float64(t.limit),
		ResetAt:         t.resetAt(),
	}
}

// Manager combines rate limiting and budget tracking across providers.
type Manager struct {
	rate     *Limiter
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewManager creates an empty rate/budget manager.
func NewManager() *Manager {
	return &Manager{rate: NewLimiter(), trackers: make(map[string]*Tracker)}
}

// Configure registers both the token bucket and the daily budget for
// a provider endpoint.
func (m *Manager) Configure(endpoint string, rps float64, burst int, dailyLimit int64, resetHour int) {
	m.rate.AddEndpoint(endpoint, rps, burst)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[endpoint] = NewTracker(endpoint, dailyLimit, resetHour)
}

// Allow reports whether endpoint may be called right now under both
// the token bucket and the remaining daily budget.
func (m *Manager) Allow(endpoint string) bool {
	if !m.rate.Allow(endpoint) {
		return false
	}
	m.mu.RLock()
	t, ok := m.trackers[endpoint]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	return t.Status().Used < t.limit
}

// Consume records a completed call against endpoint's daily budget.
func (m *Manager) Consume(endpoint string) error {
	m.mu.RLock()
	t, ok := m.trackers[endpoint]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return t.Consume()
}

// Wait blocks for endpoint's token bucket only; daily budget
// exhaustion is reported by Consume, not Wait.
func (m *Manager) Wait(ctx context.Context, endpoint string) error {
	return m.rate.Wait(ctx, endpoint)
}

// Status returns the daily budget snapshot for every configured
// endpoint.
func (m *Manager) Status() map[string]BudgetStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]BudgetStatus, len(m.trackers))
	for name, t := range m.trackers {
		out[name] = t.Status()
	}
	return out
}
