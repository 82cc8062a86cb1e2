package detectors

import (
	"errors"
	"testing"

	"github.com/sawpanic/optionsignal/internal/config"
	"github.com/sawpanic/optionsignal/internal/domain"
)

type stubDetector struct {
	name   string
	cand   *domain.AlertCandidate
	err    error
	panics bool
}

func (s stubDetector) Name() string { return s.name }

func (s stubDetector) Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error) {
	if s.panics {
		panic("stub detector panic")
	}
	return s.cand, s.err
}

func TestRegistry_Run_CollectsFiredCandidates(t *testing.T) {
	r := NewRegistry(
		stubDetector{name: "fires", cand: &domain.AlertCandidate{DetectorName: "fires", RawScore: 50}},
		stubDetector{name: "silent"},
	)

	candidates, failures := r.Run(domain.FeatureSet{})

	if len(candidates) != 1 || candidates[0].DetectorName != "fires" {
		t.Errorf("expected exactly one candidate from 'fires', got %+v", candidates)
	}
	if len(failures) != 0 {
		t.Errorf("expected no failures, got %+v", failures)
	}
}

func TestRegistry_Run_IsolatesErroringDetector(t *testing.T) {
	r := NewRegistry(
		stubDetector{name: "broken", err: errors.New("boom")},
		stubDetector{name: "fires", cand: &domain.AlertCandidate{DetectorName: "fires", RawScore: 60}},
	)

	candidates, failures := r.Run(domain.FeatureSet{})

	if len(candidates) != 1 {
		t.Errorf("expected the healthy detector's candidate to still fire, got %+v", candidates)
	}
	if len(failures) != 1 || failures[0].Name != "broken" {
		t.Errorf("expected one recorded failure for 'broken', got %+v", failures)
	}
}

func TestRegistry_Run_IsolatesPanickingDetector(t *testing.T) {
	r := NewRegistry(
		stubDetector{name: "panics", panics: true},
		stubDetector{name: "fires", cand: &domain.AlertCandidate{DetectorName: "fires", RawScore: 70}},
	)

	candidates, failures := r.Run(domain.FeatureSet{})

	if len(candidates) != 1 {
		t.Errorf("expected the surviving detector's candidate to fire despite a sibling panicking, got %+v", candidates)
	}
	if len(failures) != 1 || failures[0].Name != "panics" {
		t.Fatalf("expected one recorded failure for 'panics', got %+v", failures)
	}
	if failures[0].Err == nil {
		t.Error("expected a non-nil error recovered from the panic")
	}
}

func TestDefaultRegistry_RegistersAllSixDetectorsWhenNoneConfigured(t *testing.T) {
	r := DefaultRegistry(config.Default())
	if len(r.detectors) != 6 {
		t.Errorf("expected 6 default detectors, got %d", len(r.detectors))
	}
}

func TestDefaultRegistry_HonoursDisabledDetector(t *testing.T) {
	cfg := config.Default()
	cfg.Detectors = map[string]config.DetectorConfig{
		"low_iv": {Enabled: false},
	}
	r := DefaultRegistry(cfg)
	if len(r.detectors) != 5 {
		t.Fatalf("expected 5 detectors with low_iv disabled, got %d", len(r.detectors))
	}
	for _, d := range r.detectors {
		if d.Name() == "low_iv" {
			t.Error("expected low_iv to be excluded")
		}
	}
}

func TestDefaultRegistry_ThreadsConfiguredThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Detectors = map[string]config.DetectorConfig{
		"low_iv": {Enabled: true, Thresholds: map[string]float64{"lo": 40}},
	}
	r := DefaultRegistry(cfg)
	for _, d := range r.detectors {
		if lowIV, ok := d.(LowIV); ok {
			if lowIV.Lo != 40 {
				t.Errorf("expected configured lo=40, got %v", lowIV.Lo)
			}
			return
		}
	}
	t.Fatal("expected a LowIV detector in the registry")
}
