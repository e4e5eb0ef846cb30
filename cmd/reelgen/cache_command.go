package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelgen/internal/cache"
	"reelgen/internal/config"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the artifact cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(cfg *config.Config, store *cache.Store) error {
				out := cmd.OutOrStdout()
				if !store.Enabled() {
					fmt.Fprintln(out, "Cache is disabled")
					return nil
				}
				usage, err := store.Usage(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Entries", fmt.Sprintf("%d", usage.Entries)},
					{"Used", formatBytes(usage.TotalBytes)},
					{"Limit", formatBytes(usage.MaxBytes)},
					{"Location", cfg.Paths.CacheDir},
				}
				fmt.Fprint(out, renderTable(
					[]string{"Metric", "Value"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict expired and excess cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(cfg *config.Config, store *cache.Store) error {
				out := cmd.OutOrStdout()
				if !store.Enabled() {
					fmt.Fprintln(out, "Cache is disabled")
					return nil
				}
				before, err := store.Usage(cmd.Context())
				if err != nil {
					return err
				}
				if err := store.Prune(cmd.Context()); err != nil {
					return err
				}
				after, err := store.Usage(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d entries, reclaimed %s\n",
					before.Entries-after.Entries,
					formatBytes(before.TotalBytes-after.TotalBytes),
				)
				return nil
			})
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for value := n / unit; value >= unit; value /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
