// Package metrics defines the engine's in-process Prometheus
// instrumentation (A4): cache, breaker, scheduler and alert throughput
// counters/gauges on a private registry, so multiple Engine values
// (as in tests) never collide on the global default registry. No HTTP
// handler ships here — serving /metrics is the REST façade's concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric this engine exposes, plus the private
// prometheus.Registry they're registered on.
type Registry struct {
	reg *prometheus.Registry

	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec

	BreakerState *prometheus.GaugeVec

	SchedulerState   prometheus.Gauge
	APICallsThisHour prometheus.Gauge
	APICallsToday    prometheus.Gauge

	AlertsAdmitted   *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec

	ProviderCalls *prometheus.CounterVec

	ScanDurationSeconds prometheus.Histogram
}

// New builds and registers every metric on a fresh private registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optionsignal", Subsystem: "cache", Name: "hits_total",
		}, []string{"bucket"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optionsignal", Subsystem: "cache", Name: "misses_total",
		}, []string{"bucket"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optionsignal", Subsystem: "cache", Name: "evictions_total",
		}, []string{"bucket"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "optionsignal", Subsystem: "breaker", Name: "state",
			Help: "0=closed 1=half_open 2=open",
		}, []string{"endpoint"}),
		SchedulerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "optionsignal", Subsystem: "scheduler", Name: "state",
			Help: "0=idle 1=waiting 2=collecting 3=flushing 4=backing_off",
		}),
		APICallsThisHour: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "optionsignal", Subsystem: "scheduler", Name: "api_calls_this_hour",
		}),
		APICallsToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "optionsignal", Subsystem: "scheduler", Name: "api_calls_today",
		}),
		AlertsAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optionsignal", Subsystem: "alerts", Name: "admitted_total",
		}, []string{"detector"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optionsignal", Subsystem: "alerts", Name: "suppressed_total",
		}, []string{"reason"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optionsignal", Subsystem: "provider", Name: "calls_total",
		}, []string{"endpoint", "outcome"}),
		ScanDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "optionsignal", Subsystem: "scan", Name: "duration_seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.CacheHits, r.CacheMisses, r.CacheEvictions,
		r.BreakerState,
		r.SchedulerState, r.APICallsThisHour, r.APICallsToday,
		r.AlertsAdmitted, r.AlertsSuppressed,
		r.ProviderCalls, r.ScanDurationSeconds,
	)
	return r
}

// Registry returns the private prometheus.Registry for an external
// process to wrap with its own /metrics handler.
func (r *Registry) Registry() *prometheus.Registry { return r.reg }

// SchedulerStateValue maps a SchedulerStateKind string to the gauge
// value documented in SchedulerState's Help text.
func SchedulerStateValue(state string) float64 {
	switch state {
	case "idle":
		return 0
	case "waiting":
		return 1
	case "collecting":
		return 2
	case "flushing":
		return 3
	case "backing_off":
		return 4
	default:
		return -1
	}
}

// BreakerStateValue maps a circuit.State string to the gauge value
// documented in BreakerState's Help text.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
