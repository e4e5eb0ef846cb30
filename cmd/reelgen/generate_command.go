package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelgen/internal/cache"
	"reelgen/internal/config"
	"reelgen/internal/queue"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var durationFlag int
	var asyncFlag bool
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a video for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("prompt is required")
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if durationFlag > 0 {
					cfg.Pipeline.ScriptDurationSeconds = durationFlag
				}

				fingerprint, configJSON, err := jobIdentity(cfg, prompt)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if !forceFlag {
					existing, err := store.FindByFingerprint(cmd.Context(), fingerprint)
					if err != nil {
						return err
					}
					if existing != nil {
						switch existing.Status {
						case queue.StatusCompleted:
							fmt.Fprintf(out, "Prompt already rendered as job %d: %s\n", existing.ID, existing.FinalFile)
							fmt.Fprintln(out, "Use --force to render it again.")
							return nil
						case queue.StatusFailed:
							// A failed attempt should not block retries.
						default:
							fmt.Fprintf(out, "Prompt already queued as job %d (%s)\n", existing.ID, existing.Status)
							return nil
						}
					}
				}

				job, err := store.NewJob(cmd.Context(), prompt, fingerprint, configJSON)
				if err != nil {
					return err
				}
				if asyncFlag {
					fmt.Fprintf(out, "Queued job %d; process it with `reelgen run`\n", job.ID)
					return nil
				}

				logger, err := newLogger(cfg)
				if err != nil {
					return err
				}
				cacheStore, err := cache.Open(cfg, logger)
				if err != nil {
					return err
				}
				defer cacheStore.Close()

				manager, err := buildManager(cfg, store, cacheStore, logger)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				done, err := manager.RunJob(runCtx, job.ID)
				if err != nil {
					return err
				}
				if done.PartialFailure() {
					fmt.Fprintln(out, "Completed with degraded output:")
					if done.DegradedCaptions {
						fmt.Fprintln(out, "  captions fell back to proportional timing")
					}
					if done.DegradedFootage {
						fmt.Fprintln(out, "  some footage candidates could not be downloaded")
					}
				}
				fmt.Fprintf(out, "Wrote %s\n", done.FinalFile)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&durationFlag, "duration", 0, "Target narration length in seconds")
	cmd.Flags().BoolVar(&asyncFlag, "async", false, "Queue the job without processing it")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Render even if the prompt was rendered before")

	return cmd
}

// jobIdentity derives the dedupe fingerprint and the persisted settings
// snapshot for a prompt. Two submissions collide only when the prompt and
// every output-affecting knob match.
func jobIdentity(cfg *config.Config, prompt string) (string, string, error) {
	settings := map[string]any{
		"prompt":       prompt,
		"duration":     cfg.Pipeline.ScriptDurationSeconds,
		"model":        cfg.LLM.Model,
		"voice":        cfg.Voice.VoiceID,
		"aspect_ratio": cfg.Render.AspectRatio,
		"frame_rate":   cfg.Render.FrameRate,
	}
	fingerprint, err := cache.Fingerprint("job", settings)
	if err != nil {
		return "", "", err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return "", "", err
	}
	return fingerprint, string(raw), nil
}
