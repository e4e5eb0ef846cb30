package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelgen/internal/config"
	"reelgen/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if len(stats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(stats))
				for status, count := range stats {
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				statuses, err := parseStatusFilters(statusFilters)
				if err != nil {
					return err
				}
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						string(job.Status),
						truncatePrompt(job.Prompt, 48),
						jobDetail(job),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Prompt", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				ids := make([]int64, 0, len(args))
				for _, arg := range args {
					id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid job id %q", arg)
					}
					ids = append(ids, id)
				}
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.Clear(cmd.Context(), allFlag)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Remove every job, not just finished ones")
	return cmd
}

func parseStatusFilters(filters []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(filters))
	for _, filter := range filters {
		status, ok := queue.ParseStatus(filter)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", filter)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func truncatePrompt(prompt string, limit int) string {
	runes := []rune(strings.TrimSpace(prompt))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}

func jobDetail(job *queue.Job) string {
	switch {
	case job.Status == queue.StatusFailed && job.ErrorMessage != "":
		return job.ErrorMessage
	case job.Status == queue.StatusCompleted && job.PartialFailure():
		return "degraded: " + degradedSummary(job)
	case job.Status == queue.StatusCompleted:
		return job.FinalFile
	case job.ProgressMessage != "":
		return job.ProgressMessage
	default:
		return ""
	}
}

func degradedSummary(job *queue.Job) string {
	var parts []string
	if job.DegradedCaptions {
		parts = append(parts, "captions")
	}
	if job.DegradedFootage {
		parts = append(parts, "footage")
	}
	return strings.Join(parts, ", ")
}
