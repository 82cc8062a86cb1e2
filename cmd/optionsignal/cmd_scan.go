package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func scanCmd(ctx context.Context, configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single collection cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !once {
				return fmt.Errorf("scan currently only supports --once; use 'schedule' for the long-running loop")
			}
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.eng.Run(ctx, a.cfg)
			fmt.Printf("scan %s: status=%s tickers=%d alerts=%d api_calls=%d\n",
				res.ScanID, res.Status, res.TickersScanned, res.AlertsCount, res.APICalls)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run one collection cycle synchronously and exit")
	return cmd
}
