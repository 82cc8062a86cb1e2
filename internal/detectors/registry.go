// Package detectors implements the plugin-style detector registry
// (C7): six named pure-function detectors run independently per
// ticker per scan, with fault isolation — a panicking or erroring
// detector is caught and logged, never fatal to the scan. Grounded on
// the teacher's CompositeScorer plugin composition in
// internal/domain/scoring/composite.go, generalised from one scorer
// to a registry of independent named detectors.
package detectors

import (
	"fmt"

	"github.com/sawpanic/optionsignal/internal/config"
	"github.com/sawpanic/optionsignal/internal/domain"
)

// Detector is a named, pure function from a ticker's feature set to
// zero or one alert candidates. Detectors never mutate their input and
// never perform I/O.
type Detector interface {
	Name() string
	Detect(fs domain.FeatureSet) (*domain.AlertCandidate, error)
}

// Registry runs every registered Detector against a FeatureSet,
// isolating failures.
type Registry struct {
	detectors []Detector
}

// NewRegistry builds a registry with the given detectors already
// registered, in run order.
func NewRegistry(detectors ...Detector) *Registry {
	return &Registry{detectors: detectors}
}

// DefaultRegistry returns the registry with every spec-named detector
// that cfg leaves enabled, each built with its configured thresholds.
func DefaultRegistry(cfg *config.Config) *Registry {
	all := []Detector{
		NewLowIV(cfg),
		NewRichPremium(cfg),
		NewEarningsCrush(cfg),
		NewTermKink(cfg),
		NewSkewAnomaly(cfg),
		NewRegimeShift(cfg),
	}
	enabled := make([]Detector, 0, len(all))
	for _, d := range all {
		if cfg.DetectorEnabled(d.Name()) {
			enabled = append(enabled, d)
		}
	}
	return NewRegistry(enabled...)
}

// FailedDetector records a detector that errored or panicked during
// Run, for logging — it never aborts the scan.
type FailedDetector struct {
	Name string
	Err  error
}

// Run evaluates every detector against fs, returning the candidates
// that fired and a list of detectors that failed (error or panic).
func (r *Registry) Run(fs domain.FeatureSet) ([]domain.AlertCandidate, []FailedDetector) {
	var candidates []domain.AlertCandidate
	var failures []FailedDetector

	for _, d := range r.detectors {
		cand, err := runOne(d, fs)
		if err != nil {
			failures = append(failures, FailedDetector{Name: d.Name(), Err: err})
			continue
		}
		if cand != nil {
			candidates = append(candidates, *cand)
		}
	}
	return candidates, failures
}

// runOne recovers from a panic inside a single detector, converting it
// to an error so one bad plugin can never take the scan down.
func runOne(d Detector, fs domain.FeatureSet) (cand *domain.AlertCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand = nil
			err = fmt.Errorf("detector %s panicked: %v", d.Name(), r)
		}
	}()
	return d.Detect(fs)
}
