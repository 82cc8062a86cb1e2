package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestNew_RegistersAllMetricsWithoutPanicking(t *testing.T) {
	r := New()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}

func TestNew_IndependentRegistriesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.AlertsAdmitted.WithLabelValues("low_iv").Inc()
	if testCounterValue(t, b.AlertsAdmitted.WithLabelValues("low_iv")) != 0 {
		t.Error("expected a second Registry to start with independent zeroed counters")
	}
}

func testCounterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestSchedulerStateValue_MapsKnownStates(t *testing.T) {
	cases := map[string]float64{
		"idle": 0, "waiting": 1, "collecting": 2, "flushing": 3, "backing_off": 4,
	}
	for state, want := range cases {
		if got := SchedulerStateValue(state); got != want {
			t.Errorf("state %s: expected %v, got %v", state, want, got)
		}
	}
}

func TestSchedulerStateValue_UnknownStateIsNegativeOne(t *testing.T) {
	if got := SchedulerStateValue("bogus"); got != -1 {
		t.Errorf("expected -1 for an unknown state, got %v", got)
	}
}

func TestBreakerStateValue_MapsKnownStates(t *testing.T) {
	cases := map[string]float64{"closed": 0, "half_open": 1, "open": 2}
	for state, want := range cases {
		if got := BreakerStateValue(state); got != want {
			t.Errorf("state %s: expected %v, got %v", state, want, got)
		}
	}
}
