package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelgen/internal/cache"
	"reelgen/internal/config"
	"reelgen/internal/deps"
	"reelgen/internal/logging"
	"reelgen/internal/queue"
	"reelgen/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline health and external dependency availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				binaries := deps.CheckBinaries(deps.Requirements(cfg))
				rows := make([][]string, 0, len(binaries))
				for _, status := range binaries {
					rows = append(rows, []string{status.Name, availability(status)})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Dependency", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))

				cacheStore, err := cache.Open(cfg, logging.NewNop())
				if err != nil {
					return err
				}
				defer cacheStore.Close()
				manager, err := buildManager(cfg, store, cacheStore, logging.NewNop())
				if err != nil {
					return err
				}
				stageRows := make([][]string, 0, 4)
				for _, health := range manager.StageHealth(cmd.Context()) {
					stageRows = append(stageRows, []string{health.Name, readiness(health)})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Stage", "Status"},
					stageRows,
					[]columnAlignment{alignLeft, alignLeft},
				))

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(out, renderTable(
					[]string{"Queue", "Count"},
					[][]string{
						{"Pending", strconv.Itoa(health.Pending)},
						{"Processing", strconv.Itoa(health.Processing)},
						{"Completed", strconv.Itoa(health.Completed)},
						{"Failed", strconv.Itoa(health.Failed)},
						{"Total", strconv.Itoa(health.Total)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func availability(status deps.Status) string {
	if status.Available {
		return "available"
	}
	if status.Detail != "" {
		return "missing (" + status.Detail + ")"
	}
	return "missing"
}

func readiness(health stage.Health) string {
	if health.Ready {
		return "ready"
	}
	return "not ready (" + health.Detail + ")"
}
