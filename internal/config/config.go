// Package config loads and validates the engine's YAML configuration
// (A1). Grounded on the teacher's providers.go LoadXConfig/Validate
// idiom (os.ReadFile + yaml.Unmarshal + a Validate() walking every
// nested section), generalised from per-provider operational tuning to
// this engine's full recognised option surface.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full, immutable configuration. A reload swaps
// the Engine's pointer to a freshly loaded Config; nothing here is
// ever mutated in place.
type Config struct {
	Watchlist []string `yaml:"watchlist"`
	DemoMode  bool     `yaml:"demo_mode"`

	Scheduler SchedulerConfig           `yaml:"scheduler"`
	Cache     CacheConfig               `yaml:"cache"`
	Breaker   map[string]BreakerConfig  `yaml:"breaker"`
	Detectors map[string]DetectorConfig `yaml:"detectors"`
	Alerts    AlertsConfig              `yaml:"alerts"`
	Risk      RiskConfig                `yaml:"risk"`
	Scoring   map[string]float64        `yaml:"scoring"`
	Store     StoreConfig               `yaml:"store"`
	Log       LogConfig                 `yaml:"log"`
}

// SchedulerConfig configures the C10 FSM's pacing.
type SchedulerConfig struct {
	CollectionTimesET []string `yaml:"collection_times_et"`
	MaxCallsPerHour   int      `yaml:"max_calls_per_hour"`
	MaxCallsPerDay    int      `yaml:"max_calls_per_day"`
	FlushThreshold    int      `yaml:"flush_threshold"`
	CheckIntervalSec  int      `yaml:"check_interval_sec"`
	ExportIntervalSec int      `yaml:"export_interval_sec"`
}

// CacheConfig configures the C2 TTL cache, including the optional A6
// Redis mirror.
type CacheConfig struct {
	MaxMB            int            `yaml:"max_mb"`
	TTLSecs          map[string]int `yaml:"ttl_secs"`
	RedisAddr        string         `yaml:"redis_addr"`
}

// BreakerConfig configures one named endpoint's circuit breaker.
type BreakerConfig struct {
	FailureThreshold       int `yaml:"failure_threshold"`
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`
}

// DetectorConfig toggles and tunes one named detector.
type DetectorConfig struct {
	Enabled    bool               `yaml:"enabled"`
	Thresholds map[string]float64 `yaml:",inline"`
}

// AlertsConfig configures the alert lifecycle's throttling.
type AlertsConfig struct {
	CooldownHours       float64 `yaml:"cooldown_hours"`
	MinScoreImprovement float64 `yaml:"min_score_improvement"`
	MaxAlertsPerDay     int     `yaml:"max_alerts_per_day"`
}

// RiskConfig configures C9's portfolio risk gate.
type RiskConfig struct {
	MarginGateThresholdPct float64 `yaml:"margin_gate_threshold_pct"`
	CashGateThresholdPct   float64 `yaml:"cash_gate_threshold_pct"`
	MaxConcentrationPct    float64 `yaml:"max_concentration_pct"`
}

// StoreConfig configures the C5 repository driver.
type StoreConfig struct {
	DSN            string `yaml:"dsn"`
	ExportDir      string `yaml:"export_dir"`
}

// LogConfig configures A2 structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads, parses and validates a YAML config file, filling every
// unset field with the spec's documented default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with every spec-documented default applied,
// before any YAML overrides it.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			CollectionTimesET: []string{"16:15"},
			MaxCallsPerHour:   250,
			MaxCallsPerDay:    2000,
			FlushThreshold:    50,
			CheckIntervalSec:  10,
			ExportIntervalSec: 300,
		},
		Cache: CacheConfig{
			MaxMB: 100,
			TTLSecs: map[string]int{
				"current_price":  60,
				"options_chain":  300,
				"price_history":  3600,
				"ticker_info":    86400,
				"expirations":    1800,
			},
		},
		Breaker: map[string]BreakerConfig{},
		Alerts: AlertsConfig{
			CooldownHours:       1,
			MinScoreImprovement: 0.1,
			MaxAlertsPerDay:     5,
		},
		Risk: RiskConfig{
			MarginGateThresholdPct: 50,
			CashGateThresholdPct:   50,
			MaxConcentrationPct:    5,
		},
		Scoring: map[string]float64{},
		Store: StoreConfig{
			DSN:       "file:optionsignal.db",
			ExportDir: "./export",
		},
		Log: LogConfig{Level: "info", Pretty: false},
	}
}

// Validate checks every range invariant the spec fixes, returning the
// first violation found.
func (c *Config) Validate() error {
	if len(c.Scheduler.CollectionTimesET) == 0 {
		return fmt.Errorf("scheduler.collection_times_et must not be empty")
	}
	for _, t := range c.Scheduler.CollectionTimesET {
		var hh, mm int
		if _, err := fmt.Sscanf(t, "%d:%d", &hh, &mm); err != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
			return fmt.Errorf("scheduler.collection_times_et entry %q is not HH:MM", t)
		}
	}
	if c.Scheduler.MaxCallsPerHour <= 0 || c.Scheduler.MaxCallsPerDay <= 0 {
		return fmt.Errorf("scheduler call budgets must be positive")
	}
	if c.Cache.MaxMB <= 0 {
		return fmt.Errorf("cache.max_mb must be positive")
	}
	for name, bc := range c.Breaker {
		if bc.FailureThreshold <= 0 {
			return fmt.Errorf("breaker.%s.failure_threshold must be positive", name)
		}
		if bc.RecoveryTimeoutSeconds <= 0 {
			return fmt.Errorf("breaker.%s.recovery_timeout_seconds must be positive", name)
		}
	}
	if c.Alerts.CooldownHours < 0 {
		return fmt.Errorf("alerts.cooldown_hours must be non-negative")
	}
	if c.Alerts.MaxAlertsPerDay <= 0 {
		return fmt.Errorf("alerts.max_alerts_per_day must be positive")
	}
	for _, pct := range []struct {
		name string
		v    float64
	}{
		{"risk.margin_gate_threshold_pct", c.Risk.MarginGateThresholdPct},
		{"risk.cash_gate_threshold_pct", c.Risk.CashGateThresholdPct},
		{"risk.max_concentration_pct", c.Risk.MaxConcentrationPct},
	} {
		if pct.v < 0 || pct.v > 100 {
			return fmt.Errorf("%s must be in [0,100], got %.2f", pct.name, pct.v)
		}
	}
	for name, mult := range c.Scoring {
		if mult < 0.5 || mult > 1.5 {
			return fmt.Errorf("scoring.%s must be in [0.5, 1.5], got %.2f", name, mult)
		}
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn must not be empty")
	}
	return nil
}

// CooldownDuration returns alerts.cooldown_hours as a time.Duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Alerts.CooldownHours * float64(time.Hour))
}

// CacheTTL returns the configured TTL for a named cache bucket, or zero
// if that bucket has no configured TTL.
func (c *Config) CacheTTL(bucket string) time.Duration {
	if secs, ok := c.Cache.TTLSecs[bucket]; ok {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// BreakerFor returns the configured breaker settings for endpoint, or
// a conservative default if none was configured.
func (c *Config) BreakerFor(endpoint string) BreakerConfig {
	if bc, ok := c.Breaker[endpoint]; ok {
		return bc
	}
	return BreakerConfig{FailureThreshold: 5, RecoveryTimeoutSeconds: 60}
}

// DetectorEnabled reports whether the named detector should run. A
// detector absent from the config entirely defaults to enabled; one
// with an explicit block must set enabled: true itself.
func (c *Config) DetectorEnabled(name string) bool {
	dc, ok := c.Detectors[name]
	if !ok {
		return true
	}
	return dc.Enabled
}

// DetectorThreshold returns the named threshold for detector name, or
// def if the detector or that threshold key isn't configured.
func (c *Config) DetectorThreshold(name, key string, def float64) float64 {
	dc, ok := c.Detectors[name]
	if !ok {
		return def
	}
	if v, ok := dc.Thresholds[key]; ok {
		return v
	}
	return def
}
