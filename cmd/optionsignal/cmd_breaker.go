package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/optionsignal/internal/circuit"
)

func breakerCmd(ctx context.Context, configPath *string) *cobra.Command {
	parent := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect and manage circuit breakers",
	}

	reset := &cobra.Command{
		Use:   "reset <endpoint>",
		Short: "Force an endpoint's breaker back to closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			endpoint := args[0]
			bc := a.cfg.BreakerFor(endpoint)
			cfg := circuit.Config{
				FailureThreshold: uint32(bc.FailureThreshold),
				RecoveryTimeout:  time.Duration(bc.RecoveryTimeoutSeconds) * time.Second,
			}
			if !a.breakers.Reset(endpoint, cfg) {
				return fmt.Errorf("unknown endpoint %q", endpoint)
			}
			fmt.Printf("breaker[%s] reset to closed\n", endpoint)
			return nil
		},
	}

	parent.AddCommand(reset)
	return parent
}
