package main

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute builds and runs the optionsignal root command.
func Execute(ctx context.Context) error {
	var configPath string

	root := &cobra.Command{Use: "optionsignal", Short: "Options-market analytics engine"}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(scanCmd(ctx, &configPath))
	root.AddCommand(scheduleCmd(ctx, &configPath))
	root.AddCommand(exportCmd(ctx, &configPath))
	root.AddCommand(healthCmd(ctx, &configPath))
	root.AddCommand(breakerCmd(ctx, &configPath))

	return root.Execute()
}
