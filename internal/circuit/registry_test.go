package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistry_UnregisteredEndpointRunsUnprotected(t *testing.T) {
	r := NewRegistry()
	called := false
	_, err := r.Call(context.Background(), "unknown", func(context.Context) (interface{}, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to run for an unregistered endpoint")
	}
	if r.State("unknown") != StateClosed {
		t.Error("expected unregistered endpoint to report closed")
	}
}

func TestRegistry_OpensAfterFailureThreshold(t *testing.T) {
	r := NewRegistry()
	r.AddEndpoint("ep", Config{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	failing := func(context.Context) (interface{}, error) { return nil, errors.New("boom") }
	for i := 0; i < 3; i++ {
		r.Call(context.Background(), "ep", failing)
	}

	if r.State("ep") != StateOpen {
		t.Errorf("expected breaker open after %d consecutive failures, got %s", 3, r.State("ep"))
	}

	_, err := r.Call(context.Background(), "ep", func(context.Context) (interface{}, error) {
		t.Fatal("fn should not run while breaker is open")
		return nil, nil
	})
	if err == nil {
		t.Error("expected Call to return an error while breaker is open")
	}
}

func TestRegistry_ResetClosesBreaker(t *testing.T) {
	r := NewRegistry()
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: time.Hour}
	r.AddEndpoint("ep", cfg)

	r.Call(context.Background(), "ep", func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})
	if r.State("ep") != StateOpen {
		t.Fatal("expected breaker to open after one failure with threshold 1")
	}

	if !r.Reset("ep", cfg) {
		t.Fatal("expected Reset to succeed for a registered endpoint")
	}
	if r.State("ep") != StateClosed {
		t.Error("expected breaker closed after Reset")
	}
}

func TestRegistry_ResetUnknownEndpointFails(t *testing.T) {
	r := NewRegistry()
	if r.Reset("nope", Config{}) {
		t.Error("expected Reset to report false for an unregistered endpoint")
	}
}

func TestRegistry_IsHealthyReflectsOpenBreakers(t *testing.T) {
	r := NewRegistry()
	r.AddEndpoint("ep", Config{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	if !r.IsHealthy() {
		t.Fatal("expected registry healthy before any failures")
	}

	r.Call(context.Background(), "ep", func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})

	if r.IsHealthy() {
		t.Error("expected registry unhealthy once a breaker opens")
	}
}

func TestRegistry_StatsReportsCounts(t *testing.T) {
	r := NewRegistry()
	r.AddEndpoint("ep", Config{FailureThreshold: 5, RecoveryTimeout: time.Minute})

	r.Call(context.Background(), "ep", func(context.Context) (interface{}, error) { return nil, nil })
	r.Call(context.Background(), "ep", func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})

	stats := r.Stats()
	s, ok := stats["ep"]
	if !ok {
		t.Fatal("expected stats entry for ep")
	}
	if s.Requests != 2 {
		t.Errorf("expected 2 requests recorded, got %d", s.Requests)
	}
	if s.TotalFailures != 1 {
		t.Errorf("expected 1 failure recorded, got %d", s.TotalFailures)
	}
}
