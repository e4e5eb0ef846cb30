package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelgen/internal/cache"
	"reelgen/internal/config"
	"reelgen/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process queued jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := newLogger(cfg)
				if err != nil {
					return err
				}
				cacheStore, err := cache.Open(cfg, logger)
				if err != nil {
					return err
				}
				defer cacheStore.Close()

				// Jobs left mid-stage by a previous crash roll back to
				// their last checkpoint before processing begins.
				if reset, err := store.ResetStuckProcessing(cmd.Context()); err != nil {
					return err
				} else if reset > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d interrupted job(s)\n", reset)
				}

				manager, err := buildManager(cfg, store, cacheStore, logger)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := manager.Start(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Processing queue; press Ctrl-C to stop")
				<-runCtx.Done()
				manager.Stop()
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				return nil
			})
		},
	}
}
