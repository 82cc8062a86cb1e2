// Package engineerr defines the typed error kinds shared across the
// engine so call sites use errors.As instead of string matching.
package engineerr

import (
	"errors"
	"fmt"
	"time"
)

// DataUnavailable means the market-data façade could not produce a
// value for a symbol on this cycle (provider error and no usable cache
// entry). An open breaker is reported as CircuitOpen instead.
type DataUnavailable struct {
	Ticker string
	Reason string
}

func (e *DataUnavailable) Error() string {
	return fmt.Sprintf("data unavailable for %s: %s", e.Ticker, e.Reason)
}

// CircuitOpen means a named endpoint's breaker is tripped.
type CircuitOpen struct {
	Endpoint  string
	OpenSince time.Time
	RetryAt   time.Time
}

func (e *CircuitOpen) Error() string {
	return fmt.Sprintf("circuit open for %s since %s, retry at %s",
		e.Endpoint, e.OpenSince.Format(time.RFC3339), e.RetryAt.Format(time.RFC3339))
}

// RateLimited means the provider itself signalled a 429 or an internal
// token/budget limiter refused the call.
type RateLimited struct {
	Endpoint string
	RetryAt  time.Time
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited on %s, retry at %s", e.Endpoint, e.RetryAt.Format(time.RFC3339))
}

// NotFound means the provider answered definitively that the symbol or
// resource does not exist.
type NotFound struct {
	Ticker string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("not found: %s", e.Ticker)
}

// Transport means a network/transport level failure talking to a
// provider (timeout, connection refused, TLS error).
type Transport struct {
	Endpoint string
	Cause    error
}

func (e *Transport) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.Endpoint, e.Cause)
}

func (e *Transport) Unwrap() error { return e.Cause }

// Malformed means the provider responded but the payload failed
// validation (missing required fields, impossible values).
type Malformed struct {
	Endpoint string
	Detail   string
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed response from %s: %s", e.Endpoint, e.Detail)
}

// StoreUnavailable means the repository layer could not complete a
// durable write or read (connection lost, disk full).
type StoreUnavailable struct {
	Op    string
	Cause error
}

func (e *StoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Cause)
}

func (e *StoreUnavailable) Unwrap() error { return e.Cause }

// RiskRejected means the throttler/risk gate refused to admit an
// otherwise-qualifying alert candidate.
type RiskRejected struct {
	Ticker string
	Reason string
}

func (e *RiskRejected) Error() string {
	return fmt.Sprintf("risk rejected for %s: %s", e.Ticker, e.Reason)
}

// StateCorruption means the persisted scheduler state failed to parse
// or violated an invariant on load; the engine falls back to a fresh
// idle state but this must be logged at error severity.
type StateCorruption struct {
	Detail string
}

func (e *StateCorruption) Error() string {
	return fmt.Sprintf("scheduler state corruption: %s", e.Detail)
}

// ConfigInvalid means a loaded configuration failed validation.
type ConfigInvalid struct {
	Field  string
	Detail string
}

func (e *ConfigInvalid) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Detail)
}

// IsBackoffTrigger reports whether err (or anything it wraps) is a
// CircuitOpen or RateLimited condition — the two kinds that force the
// scheduler straight into BACKING_OFF rather than counting toward the
// ordinary consecutive-failure threshold, and that short-circuit the
// rest of a cycle's ticker loop.
func IsBackoffTrigger(err error) bool {
	var circuitOpen *CircuitOpen
	var rateLimited *RateLimited
	return errors.As(err, &circuitOpen) || errors.As(err, &rateLimited)
}
