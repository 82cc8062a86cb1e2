package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/optionsignal/internal/config"
	"github.com/sawpanic/optionsignal/internal/scheduler"
)

func scheduleCmd(ctx context.Context, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the long-lived scheduler FSM until a shutdown signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			fsm, err := scheduler.New(schedulerConfigFrom(a.cfg), a.repo, func(cycleCtx context.Context) (int, error) {
				res := a.eng.Run(cycleCtx, a.cfg)
				return res.APICalls, res.Err
			}, a.log)
			if err != nil {
				return err
			}

			a.log.Info().Msg("scheduler starting")
			err = fsm.Run(ctx)
			if err == context.Canceled {
				a.log.Info().Msg("scheduler shutting down")
				return nil
			}
			return err
		},
	}
}

func schedulerConfigFrom(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		CollectionTimesET:  cfg.Scheduler.CollectionTimesET,
		MaxCallsPerHour:    cfg.Scheduler.MaxCallsPerHour,
		MaxCallsPerDay:     cfg.Scheduler.MaxCallsPerDay,
		InterCallDelay:     200 * time.Millisecond,
		InitialBackoff:     60 * time.Second,
		MaxBackoff:         30 * time.Minute,
		MaxConsecutiveFail: 3,
	}
}
