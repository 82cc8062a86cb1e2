package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/optionsignal/internal/export"
)

func exportCmd(ctx context.Context, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the current alerts/chains/scans/features to the export directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now().UTC()
			alerts, err := a.repo.ListAlerts(ctx, now.AddDate(0, 0, -30), now, 10000)
			if err != nil {
				return fmt.Errorf("list alerts: %w", err)
			}
			scans, err := a.repo.ListRecentScans(ctx, 500)
			if err != nil {
				return fmt.Errorf("list scans: %w", err)
			}
			chains, err := a.repo.ListRecentChainSnapshots(ctx, 500)
			if err != nil {
				return fmt.Errorf("list chain snapshots: %w", err)
			}
			features, err := a.repo.ListRecentFeatureSnapshots(ctx)
			if err != nil {
				return fmt.Errorf("list feature snapshots: %w", err)
			}

			exporter, err := export.New(a.cfg.Store.ExportDir)
			if err != nil {
				return err
			}
			if err := exporter.Export(alerts, chains, scans, features); err != nil {
				return err
			}

			fmt.Printf("exported %d alerts, %d chains, %d scans, %d feature sets to %s\n",
				len(alerts), len(chains), len(scans), len(features), a.cfg.Store.ExportDir)
			return nil
		},
	}
}
