package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reelgen/internal/cache"
	"reelgen/internal/config"
	"reelgen/internal/footage"
	"reelgen/internal/logging"
	"reelgen/internal/media/ffmpeg"
	"reelgen/internal/providers"
	"reelgen/internal/publish"
	"reelgen/internal/queue"
	"reelgen/internal/render"
	"reelgen/internal/stage"
)

// Providers bundles the upstream adapters the pipeline calls.
type Providers struct {
	Script  providers.ScriptGenerator
	Voice   providers.VoiceSynthesizer
	Footage providers.FootageProvider
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	cache     *cache.Store
	providers Providers
	publisher publish.Publisher
	logger    *slog.Logger

	composer *footage.Composer
	renderer *render.Renderer

	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor
	retry        RetryPolicy

	llmThrottle     *providerThrottle
	voiceThrottle   *providerThrottle
	footageThrottle *providerThrottle

	stages       []pipelineStage
	stageByStart map[queue.Status]pipelineStage
	statusOrder  []queue.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager with stages wired from the
// configuration and provider set.
func NewManager(cfg *config.Config, store *queue.Store, cacheStore *cache.Store, provs Providers, publisher publish.Publisher, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if publisher == nil {
		publisher = publish.NewPublisher(cfg)
	}
	runner := ffmpeg.NewCommandRunner(cfg.FFmpegBinary())
	composer, err := footage.NewComposer(runner, cfg.Render)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Pipeline.ProviderConcurrency
	m := &Manager{
		cfg:       cfg,
		store:     store,
		cache:     cacheStore,
		providers: provs,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		composer:  composer,
		renderer:  render.NewRenderer(runner, cfg.Render),
		pollInterval: time.Duration(max(cfg.Pipeline.QueuePollInterval, 1)) *
			time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Pipeline.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Pipeline.HeartbeatTimeout)*time.Second,
		),
		retry: RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxProviderRetries,
			BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseMillis) * time.Millisecond,
		},
		llmThrottle:     newProviderThrottle(2, concurrency),
		voiceThrottle:   newProviderThrottle(1, concurrency),
		footageThrottle: newProviderThrottle(2, concurrency),
	}
	m.buildStages()
	return m, nil
}

func (m *Manager) buildStages() {
	m.stages = []pipelineStage{
		{
			name:             "scripting",
			handler:          &scriptStage{m: m},
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusScripting,
			doneStatus:       queue.StatusScriptReady,
		},
		{
			name:             "synthesizing",
			handler:          &synthesizeStage{m: m},
			startStatus:      queue.StatusScriptReady,
			processingStatus: queue.StatusSynthesizing,
			doneStatus:       queue.StatusAudioReady,
		},
		{
			name:             "composing",
			handler:          &composeStage{m: m},
			startStatus:      queue.StatusAudioReady,
			processingStatus: queue.StatusComposing,
			doneStatus:       queue.StatusComposed,
		},
		{
			name:             "rendering",
			handler:          &renderStage{m: m},
			startStatus:      queue.StatusComposed,
			processingStatus: queue.StatusRendering,
			doneStatus:       queue.StatusCompleted,
		},
	}
	m.stageByStart = make(map[queue.Status]pipelineStage, len(m.stages))
	m.statusOrder = make([]queue.Status, 0, len(m.stages))
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
		m.statusOrder = append(m.statusOrder, stg.startStatus)
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleJobs(ctx, m.logger); err != nil {
			m.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			)
		}

		job, err := m.store.NextForStatuses(ctx, m.statusOrder...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			m.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
			)
			m.waitForJobOrShutdown(ctx)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// jobWorkDir returns the per-job scratch directory, creating it on demand.
func (m *Manager) jobWorkDir(jobID int64) (string, error) {
	dir := filepath.Join(m.cfg.Paths.WorkDir, fmt.Sprintf("job-%d", jobID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job work dir: %w", err)
	}
	return dir, nil
}
