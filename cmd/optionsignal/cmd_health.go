package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
)

func healthCmd(ctx context.Context, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print cache, breaker, rate-budget and process health and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			cs := a.cache.Stats()
			fmt.Printf("cache: hits=%d misses=%d entries=%d bytes=%d/%d\n",
				cs.Hits, cs.Misses, cs.Entries, cs.BytesInUse, cs.ByteBudget)

			for endpoint, st := range a.breakers.Stats() {
				fmt.Printf("breaker[%s]: state=%s consecutive_failures=%d requests=%d\n",
					endpoint, st.State, st.ConsecutiveFailures, st.Requests)
			}

			for provider, st := range a.limits.Status() {
				fmt.Printf("budget[%s]: used=%d/%d (%.1f%%) resets_at=%s\n",
					provider, st.Used, st.Limit, st.UtilizationRate*100, st.ResetAt.Format(time.RFC3339))
			}

			if cpuPct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPct) > 0 {
				fmt.Printf("process: cpu=%.1f%%\n", cpuPct[0])
			}
			if vm, err := mem.VirtualMemory(); err == nil {
				fmt.Printf("host: mem_used=%.1f%%\n", vm.UsedPercent)
			}
			return nil
		},
	}
}
