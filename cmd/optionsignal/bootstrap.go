package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/optionsignal/internal/cache"
	"github.com/sawpanic/optionsignal/internal/circuit"
	"github.com/sawpanic/optionsignal/internal/config"
	"github.com/sawpanic/optionsignal/internal/detectors"
	"github.com/sawpanic/optionsignal/internal/engine"
	"github.com/sawpanic/optionsignal/internal/features"
	"github.com/sawpanic/optionsignal/internal/logging"
	"github.com/sawpanic/optionsignal/internal/marketdata"
	"github.com/sawpanic/optionsignal/internal/metrics"
	"github.com/sawpanic/optionsignal/internal/ratelimit"
	"github.com/sawpanic/optionsignal/internal/repository"
	"github.com/sawpanic/optionsignal/internal/repository/sql"
	"github.com/sawpanic/optionsignal/internal/scoring"

	"github.com/redis/go-redis/v9"
)

const storeTimeout = 10 * time.Second

// app bundles every long-lived collaborator built from one loaded
// Config, shared by every subcommand.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	repo    repository.Repository
	metrics *metrics.Registry
	eng     *engine.Engine
	breakers *circuit.Registry
	limits   *ratelimit.Manager
	cache    *cache.Cache
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	store, err := sql.Open(ctx, cfg.Store.DSN, storeTimeout)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var cacheOpts []cache.Option
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		cacheOpts = append(cacheOpts, cache.WithRedisMirror(client))
	}
	c := cache.New(int64(cfg.Cache.MaxMB)*1024*1024, cacheOpts...)

	breakers := circuit.NewRegistry()
	for _, endpoint := range []string{"chain_snapshot", "price_history", "current_price", "days_to_earnings"} {
		bc := cfg.BreakerFor(endpoint)
		breakers.AddEndpoint(endpoint, circuit.Config{
			FailureThreshold: uint32(bc.FailureThreshold),
			RecoveryTimeout:  time.Duration(bc.RecoveryTimeoutSeconds) * time.Second,
		})
	}

	limits := ratelimit.NewManager()
	perEndpointBudget := cfg.Scheduler.MaxCallsPerDay / 4
	for _, endpoint := range []string{"chain_snapshot", "price_history", "current_price", "days_to_earnings"} {
		limits.Configure(endpoint, float64(cfg.Scheduler.MaxCallsPerHour)/3600, cfg.Scheduler.MaxCallsPerHour, int64(perEndpointBudget), 0)
	}

	var provider marketdata.Provider
	if cfg.DemoMode {
		provider = marketdata.NewDemoProvider(0.04)
	} else {
		return nil, fmt.Errorf("no live provider configured; set demo_mode: true or wire a Provider implementation")
	}

	facade := marketdata.New(provider, c, breakers, limits)
	featuresEngine := features.NewEngine()
	registry := detectors.DefaultRegistry(cfg)
	scorer := scoring.NewScorer(scoring.DefaultModifiers())
	reg := metrics.New()

	eng := engine.New(facade, featuresEngine, registry, scorer, store, reg, log, nil)

	return &app{
		cfg:      cfg,
		log:      log,
		repo:     store,
		metrics:  reg,
		eng:      eng,
		breakers: breakers,
		limits:   limits,
		cache:    c,
	}, nil
}

func (a *app) Close() {
	a.cache.Stop()
	_ = a.repo.Close()
}
