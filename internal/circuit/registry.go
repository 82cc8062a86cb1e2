// Package circuit implements the three-state circuit breaker registry
// (C3) on top of sony/gobreaker. Grounded on infra/breakers/breakers.go
// (the gobreaker Settings shape) and internal/net/circuit/circuit.go
// (the named-endpoint Manager/State/Stats API this package exposes).
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// State mirrors gobreaker's state enum so callers never import
// gobreaker directly; this registry is the only module boundary aware
// of the underlying implementation.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Config configures one named endpoint's breaker.
type Config struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
}

// ErrOpen is returned (wrapping engineerr.CircuitOpen at the call
// site) when Call is invoked while the breaker is open, or half-open
// with its probe request already in flight.
var ErrOpen = errors.New("circuit open")

// Stats is a read-only snapshot of one endpoint's breaker state, used
// by the health CLI command and the metrics component.
type Stats struct {
	Endpoint            string
	State               State
	ConsecutiveFailures uint32
	Requests            uint32
	TotalFailures       uint32
	OpenSince           time.Time
}

// Registry holds one breaker per named endpoint.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*tracked
}

type tracked struct {
	cb        *gobreaker.CircuitBreaker
	openSince time.Time
	mu        sync.Mutex
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*tracked)}
}

// AddEndpoint registers a breaker for endpoint with the given config.
// Calling it twice for the same endpoint replaces the breaker.
func (r *Registry) AddEndpoint(endpoint string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &tracked{}
	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.mu.Lock()
			defer t.mu.Unlock()
			if to == gobreaker.StateOpen {
				t.openSince = time.Now()
			}
		},
	}
	t.cb = gobreaker.NewCircuitBreaker(settings)
	r.breakers[endpoint] = t
}

// Call executes fn through endpoint's breaker. If endpoint has no
// registered breaker, fn runs unprotected.
func (r *Registry) Call(ctx context.Context, endpoint string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	r.mu.RLock()
	t, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if !ok {
		return fn(ctx)
	}
	res, err := t.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return res, err
}

// State returns the current state of endpoint's breaker. Unregistered
// endpoints report StateClosed.
func (r *Registry) State(endpoint string) State {
	r.mu.RLock()
	t, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return fromGobreaker(t.cb.State())
}

// Reset forces endpoint's breaker back to closed with zeroed counts by
// replacing it with a fresh breaker built from cfg. It returns false,
// changing nothing, if endpoint has no registered breaker.
func (r *Registry) Reset(endpoint string, cfg Config) bool {
	r.mu.RLock()
	_, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	r.AddEndpoint(endpoint, cfg)
	return true
}

// Stats returns a snapshot for every registered endpoint.
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.breakers))
	for name, t := range r.breakers {
		counts := t.cb.Counts()
		t.mu.Lock()
		openSince := t.openSince
		t.mu.Unlock()
		out[name] = Stats{
			Endpoint:            name,
			State:               fromGobreaker(t.cb.State()),
			ConsecutiveFailures: counts.ConsecutiveFailures,
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			OpenSince:           openSince,
		}
	}
	return out
}

// IsHealthy reports whether every registered endpoint is not open.
func (r *Registry) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.breakers {
		if t.cb.State() == gobreaker.StateOpen {
			return false
		}
	}
	return true
}
