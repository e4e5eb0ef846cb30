package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"reelgen/internal/artifact"
	"reelgen/internal/cache"
	"reelgen/internal/footage"
	"reelgen/internal/logging"
	"reelgen/internal/queue"
	"reelgen/internal/render"
	"reelgen/internal/services"
	"reelgen/internal/stage"
	"reelgen/internal/subtitle"
)

const maxSearchTerms = 5

// doCached wraps the compute-through cache path with payload decoding. A
// cached entry whose payload no longer decodes is dropped and recomputed
// instead of failing the stage.
func (m *Manager) doCached(ctx context.Context, stageName, fingerprint string, out any, produce cache.Producer) (cache.Entry, bool, error) {
	entry, cached, err := m.cache.Do(ctx, stageName, fingerprint, produce)
	if err != nil {
		return cache.Entry{}, false, err
	}
	decodeErr := json.Unmarshal(entry.Payload, out)
	if decodeErr == nil {
		return entry, cached, nil
	}
	if !cached {
		return cache.Entry{}, false, services.Wrap(services.ErrValidation, stageName, "execute", "decode produced payload", decodeErr)
	}

	logger := logging.WithContext(ctx, m.logger)
	logger.Warn("corrupt cache entry; recomputing",
		logging.String(logging.FieldFingerprint, fingerprint),
		logging.Error(decodeErr))
	if invErr := m.cache.Invalidate(ctx, fingerprint); invErr != nil {
		logger.Warn("failed to drop corrupt entry", logging.Error(invErr))
	}
	entry, _, err = m.cache.Do(ctx, stageName, fingerprint, produce)
	if err != nil {
		return cache.Entry{}, false, err
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		return cache.Entry{}, false, services.Wrap(services.ErrCache, stageName, "execute", "decode recomputed payload", err)
	}
	return entry, false, nil
}

// scriptStage turns the prompt into a segmented script plus footage search
// terms. Both results are cached together under one fingerprint.
type scriptStage struct {
	m *Manager
}

type scriptPayload struct {
	Script      artifact.Script `json:"script"`
	SearchTerms []string        `json:"search_terms"`
}

func (s *scriptStage) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.Prompt) == "" {
		return services.Wrap(services.ErrValidation, "scripting", "prepare", "job has no prompt", nil)
	}
	return nil
}

func (s *scriptStage) Execute(ctx context.Context, job *queue.Job) error {
	m := s.m
	logger := logging.WithContext(ctx, m.logger)
	targetDuration := time.Duration(m.cfg.Pipeline.ScriptDurationSeconds) * time.Second

	fingerprint, err := cache.Fingerprint("scripting", map[string]any{
		"prompt":   job.Prompt,
		"duration": m.cfg.Pipeline.ScriptDurationSeconds,
		"model":    m.cfg.LLM.Model,
		"terms":    maxSearchTerms,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "scripting", "execute", "fingerprint", err)
	}

	var payload scriptPayload
	_, cached, err := m.doCached(ctx, "scripting", fingerprint, &payload, func(ctx context.Context) (json.RawMessage, string, error) {
		var produced scriptPayload
		err := withRetry(ctx, logger, m.retry, "generate script", func(ctx context.Context) error {
			if err := m.llmThrottle.wait(ctx); err != nil {
				return err
			}
			script, genErr := m.providers.Script.Generate(ctx, job.Prompt, targetDuration)
			if genErr != nil {
				return genErr
			}
			produced.Script = script
			return nil
		})
		if err != nil {
			return nil, "", err
		}
		err = withRetry(ctx, logger, m.retry, "extract search terms", func(ctx context.Context) error {
			if err := m.llmThrottle.wait(ctx); err != nil {
				return err
			}
			terms, termErr := m.providers.Script.SearchTerms(ctx, job.Prompt, maxSearchTerms)
			if termErr != nil {
				return termErr
			}
			produced.SearchTerms = terms
			return nil
		})
		if err != nil {
			return nil, "", err
		}
		raw, marshalErr := json.Marshal(produced)
		return raw, "", marshalErr
	})
	if err != nil {
		return err
	}

	if payload.Script.Empty() {
		return services.Wrap(services.ErrProvider, "scripting", "execute", "script has no segments", nil)
	}

	scriptJSON, err := stage.MarshalArtifact(payload.Script)
	if err != nil {
		return err
	}
	termsJSON, err := stage.MarshalArtifact(payload.SearchTerms)
	if err != nil {
		return err
	}
	job.ScriptJSON = scriptJSON
	job.SearchTermsJSON = termsJSON
	job.SetProgress(stageLabel(queue.StatusScripting), fmt.Sprintf("%d segments", len(payload.Script.Segments)), 100)
	if cached {
		logger.Info("script served from cache", logging.String(logging.FieldFingerprint, fingerprint))
	}
	return nil
}

func (s *scriptStage) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(s.m.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy("scripting", "llm api key not configured")
	}
	return stage.Healthy("scripting")
}

// synthesizeStage renders the script as narration audio with timestamp
// hints. The audio blob lives in the cache; the job references the cached
// copy so reruns skip synthesis entirely.
type synthesizeStage struct {
	m *Manager
}

func (s *synthesizeStage) Prepare(ctx context.Context, job *queue.Job) error {
	_, err := stage.ParseScript(job.ScriptJSON)
	return err
}

func (s *synthesizeStage) Execute(ctx context.Context, job *queue.Job) error {
	m := s.m
	logger := logging.WithContext(ctx, m.logger)
	script, err := stage.ParseScript(job.ScriptJSON)
	if err != nil {
		return err
	}

	fingerprint, err := cache.Fingerprint("synthesizing", map[string]any{
		"script":   script.Raw,
		"segments": script.Segments,
		"provider": m.cfg.Voice.Provider,
		"voice":    m.cfg.Voice.VoiceID,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "synthesizing", "execute", "fingerprint", err)
	}

	workDir, err := m.jobWorkDir(job.ID)
	if err != nil {
		return services.Wrap(services.ErrValidation, "synthesizing", "execute", "work dir", err)
	}

	var audio artifact.Audio
	entry, cached, err := m.doCached(ctx, "synthesizing", fingerprint, &audio, func(ctx context.Context) (json.RawMessage, string, error) {
		var produced artifact.Audio
		err := withRetry(ctx, logger, m.retry, "synthesize narration", func(ctx context.Context) error {
			if err := m.voiceThrottle.wait(ctx); err != nil {
				return err
			}
			result, synthErr := m.providers.Voice.Synthesize(ctx, script, workDir)
			if synthErr != nil {
				return synthErr
			}
			produced = result
			return nil
		})
		if err != nil {
			return nil, "", err
		}
		raw, marshalErr := json.Marshal(produced)
		return raw, produced.Path, marshalErr
	})
	if err != nil {
		return err
	}

	if entry.BlobPath != "" {
		audio.Path = entry.BlobPath
	}
	if audio.Duration <= 0 {
		return services.Wrap(services.ErrProvider, "synthesizing", "execute", "narration has no duration", nil)
	}

	audioJSON, err := stage.MarshalArtifact(audio)
	if err != nil {
		return err
	}
	job.AudioJSON = audioJSON
	job.SetProgress(stageLabel(queue.StatusSynthesizing), fmt.Sprintf("%.1fs narration", audio.Duration), 100)
	if cached {
		logger.Info("narration served from cache", logging.String(logging.FieldFingerprint, fingerprint))
	}
	return nil
}

func (s *synthesizeStage) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(s.m.cfg.Voice.APIKey) == "" {
		return stage.Unhealthy("synthesizing", "voice api key not configured")
	}
	return stage.Healthy("synthesizing")
}

// composeStage runs caption alignment and footage composition
// concurrently; neither depends on the other once narration exists.
type composeStage struct {
	m *Manager
}

type composePayload struct {
	Plan     []artifact.FootageClip `json:"plan"`
	Degraded bool                   `json:"degraded"`
}

func (s *composeStage) Prepare(ctx context.Context, job *queue.Job) error {
	_, err := stage.ParseAudio(job.AudioJSON)
	return err
}

func (s *composeStage) Execute(ctx context.Context, job *queue.Job) error {
	m := s.m
	script, err := stage.ParseScript(job.ScriptJSON)
	if err != nil {
		return err
	}
	audio, err := stage.ParseAudio(job.AudioJSON)
	if err != nil {
		return err
	}

	var (
		captionsJSON     string
		degradedCaptions bool
		planJSON         string
		degradedFootage  bool
		backgroundFile   string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		cues, report, alignErr := subtitle.Align(script, audio, subtitle.Options{
			MinDisplay:   m.cfg.Pipeline.MinCaptionSeconds,
			MaxDisplay:   m.cfg.Pipeline.MaxCaptionSeconds,
			GapTolerance: m.cfg.Pipeline.CaptionGapTolerance,
		})
		if alignErr != nil {
			return alignErr
		}
		raw, marshalErr := stage.MarshalArtifact(cues)
		if marshalErr != nil {
			return marshalErr
		}
		captionsJSON = raw
		degradedCaptions = report.UsedFallback || report.EmptyScript
		return nil
	})
	group.Go(func() error {
		plan, path, degraded, footErr := s.composeFootage(groupCtx, job, audio.Duration)
		if footErr != nil {
			return footErr
		}
		raw, marshalErr := stage.MarshalArtifact(plan)
		if marshalErr != nil {
			return marshalErr
		}
		planJSON = raw
		backgroundFile = path
		degradedFootage = degraded
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	job.CaptionsJSON = captionsJSON
	job.DegradedCaptions = degradedCaptions
	job.FootagePlanJSON = planJSON
	job.BackgroundFile = backgroundFile
	job.DegradedFootage = degradedFootage
	job.SetProgress(stageLabel(queue.StatusComposing), "captions and footage ready", 100)
	return nil
}

// composeFootage searches, downloads, plans, and renders the background
// track. The finished background is cached as a blob keyed by the search
// terms, target duration, and render settings.
func (s *composeStage) composeFootage(ctx context.Context, job *queue.Job, targetDuration float64) ([]artifact.FootageClip, string, bool, error) {
	m := s.m
	logger := logging.WithContext(ctx, m.logger)

	var terms []string
	if job.SearchTermsJSON != "" {
		if err := json.Unmarshal([]byte(job.SearchTermsJSON), &terms); err != nil {
			return nil, "", false, services.Wrap(services.ErrValidation, "composing", "execute", "decode search terms", err)
		}
	}
	if len(terms) == 0 {
		terms = fallbackTerms(job.Prompt)
	}

	fingerprint, err := cache.Fingerprint("composing", map[string]any{
		"terms":    terms,
		"duration": targetDuration,
		"ratio":    m.cfg.Render.AspectRatio,
		"fps":      m.cfg.Render.FrameRate,
		"max_clip": m.cfg.Footage.MaxClipSeconds,
	})
	if err != nil {
		return nil, "", false, services.Wrap(services.ErrValidation, "composing", "execute", "fingerprint", err)
	}

	var payload composePayload
	entry, cached, err := m.doCached(ctx, "composing", fingerprint, &payload, func(ctx context.Context) (json.RawMessage, string, error) {
		produced, backgroundPath, prodErr := s.produceBackground(ctx, job, terms, targetDuration)
		if prodErr != nil {
			return nil, "", prodErr
		}
		raw, marshalErr := json.Marshal(produced)
		return raw, backgroundPath, marshalErr
	})
	if err != nil {
		return nil, "", false, err
	}

	backgroundPath := entry.BlobPath
	if backgroundPath == "" {
		return nil, "", false, services.Wrap(services.ErrComposition, "composing", "execute", "background track missing", nil)
	}
	if cached {
		logger.Info("background served from cache", logging.String(logging.FieldFingerprint, fingerprint))
	}
	return payload.Plan, backgroundPath, payload.Degraded, nil
}

func (s *composeStage) produceBackground(ctx context.Context, job *queue.Job, terms []string, targetDuration float64) (composePayload, string, error) {
	m := s.m
	logger := logging.WithContext(ctx, m.logger)

	var candidates []artifact.Candidate
	err := withRetry(ctx, logger, m.retry, "search footage", func(ctx context.Context) error {
		if err := m.footageThrottle.wait(ctx); err != nil {
			return err
		}
		found, searchErr := m.providers.Footage.Search(ctx, terms, 0)
		if searchErr != nil {
			return searchErr
		}
		candidates = found
		return nil
	})
	if err != nil {
		return composePayload{}, "", err
	}

	limit := m.cfg.Footage.MaxCandidates
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	candidates = candidates[:limit]

	workDir, err := m.jobWorkDir(job.ID)
	if err != nil {
		return composePayload{}, "", services.Wrap(services.ErrComposition, "composing", "execute", "work dir", err)
	}
	footageDir := filepath.Join(workDir, "footage")

	downloaded, failures := s.downloadCandidates(ctx, logger, candidates, footageDir)
	if len(downloaded) == 0 {
		return composePayload{}, "", services.Wrap(services.ErrComposition, "composing", "execute", "no candidate could be downloaded", nil)
	}

	plan, err := footage.Plan(downloaded, targetDuration, m.cfg.Footage.MaxClipSeconds)
	if err != nil {
		return composePayload{}, "", err
	}
	backgroundPath, err := m.composer.Compose(ctx, plan, workDir)
	if err != nil {
		return composePayload{}, "", err
	}
	return composePayload{Plan: plan, Degraded: failures > 0}, backgroundPath, nil
}

// downloadCandidates fetches candidates concurrently, tolerating
// individual failures. Returns the successful set in candidate order and
// the failure count.
func (s *composeStage) downloadCandidates(ctx context.Context, logger *slog.Logger, candidates []artifact.Candidate, destDir string) ([]artifact.Candidate, int) {
	m := s.m
	concurrency := m.cfg.Pipeline.ProviderConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	type result struct {
		candidate artifact.Candidate
		err       error
	}
	results := make([]result, len(candidates))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, candidate := range candidates {
		group.Go(func() error {
			err := withRetry(groupCtx, logger, m.retry, "download footage", func(ctx context.Context) error {
				if err := m.footageThrottle.wait(ctx); err != nil {
					return err
				}
				verified, dlErr := m.providers.Footage.Download(ctx, candidate, destDir)
				if dlErr != nil {
					return dlErr
				}
				results[i] = result{candidate: verified}
				return nil
			})
			if err != nil {
				results[i] = result{err: err}
			}
			// Individual download failures never abort the group.
			return nil
		})
	}
	_ = group.Wait()

	var downloaded []artifact.Candidate
	failures := 0
	for i, res := range results {
		if res.err != nil {
			failures++
			logger.Warn("footage download failed; continuing with remaining candidates",
				logging.String("url", candidates[i].URL),
				logging.Error(res.err),
			)
			continue
		}
		if res.candidate.Path == "" {
			continue
		}
		downloaded = append(downloaded, res.candidate)
	}
	return downloaded, failures
}

// renderStage muxes everything into the final deliverable and moves it to
// the output directory.
type renderStage struct {
	m *Manager
}

func (s *renderStage) Prepare(ctx context.Context, job *queue.Job) error {
	if job.BackgroundFile == "" {
		return services.Wrap(services.ErrValidation, "rendering", "prepare", "background track missing", nil)
	}
	_, err := stage.ParseAudio(job.AudioJSON)
	return err
}

func (s *renderStage) Execute(ctx context.Context, job *queue.Job) error {
	m := s.m
	audio, err := stage.ParseAudio(job.AudioJSON)
	if err != nil {
		return err
	}
	var cues []artifact.CaptionSegment
	if job.CaptionsJSON != "" {
		if err := json.Unmarshal([]byte(job.CaptionsJSON), &cues); err != nil {
			return services.Wrap(services.ErrValidation, "rendering", "execute", "decode captions", err)
		}
	}

	workDir, err := m.jobWorkDir(job.ID)
	if err != nil {
		return services.Wrap(services.ErrValidation, "rendering", "execute", "work dir", err)
	}

	video, err := m.renderer.Render(ctx, render.Inputs{
		BackgroundPath: job.BackgroundFile,
		Audio:          audio,
		Captions:       cues,
		DestDir:        workDir,
	})
	if err != nil {
		return err
	}

	finalPath := filepath.Join(m.cfg.Paths.OutputDir, fmt.Sprintf("reel-%d.mp4", job.ID))
	if err := moveFile(video.Path, finalPath); err != nil {
		return services.Wrap(services.ErrValidation, "rendering", "execute", "move output", err)
	}
	job.FinalFile = finalPath
	return nil
}

func (s *renderStage) HealthCheck(ctx context.Context) stage.Health {
	if _, err := os.Stat(s.m.cfg.Paths.OutputDir); err != nil {
		return stage.Unhealthy("rendering", "output directory unavailable")
	}
	return stage.Healthy("rendering")
}

func (s *composeStage) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(s.m.cfg.Footage.APIKey) == "" {
		return stage.Unhealthy("composing", "footage api key not configured")
	}
	return stage.Healthy("composing")
}

// fallbackTerms derives footage keywords directly from the prompt when the
// script stage produced none.
func fallbackTerms(prompt string) []string {
	words := strings.Fields(strings.ToLower(prompt))
	if len(words) == 0 {
		return nil
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return []string{strings.Join(words, " ")}
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy.
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
