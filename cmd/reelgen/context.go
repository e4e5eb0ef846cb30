package main

import (
	"log/slog"
	"strings"
	"sync"

	"reelgen/internal/cache"
	"reelgen/internal/config"
	"reelgen/internal/logging"
	"reelgen/internal/providers/pexels"
	"reelgen/internal/providers/script"
	"reelgen/internal/providers/tts"
	"reelgen/internal/queue"
	"reelgen/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the queue store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withCache opens the artifact cache for the duration of fn.
func (c *commandContext) withCache(fn func(*config.Config, *cache.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	cacheStore, err := cache.Open(cfg, logging.NewNop())
	if err != nil {
		return err
	}
	defer cacheStore.Close()
	return fn(cfg, cacheStore)
}

// newLogger builds the CLI logger from the configured format and level,
// mirroring records into the log directory when one is set.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.NewFromConfig(cfg)
}

// buildManager wires providers, stores, and the workflow manager for
// commands that process jobs.
func buildManager(cfg *config.Config, store *queue.Store, cacheStore *cache.Store, logger *slog.Logger) (*workflow.Manager, error) {
	provs := workflow.Providers{
		Script:  script.NewClient(cfg.LLM),
		Voice:   tts.NewClient(cfg.Voice, tts.WithFFprobeBinary(cfg.FFprobeBinary())),
		Footage: pexels.NewClient(cfg.Footage, pexels.WithFFprobeBinary(cfg.FFprobeBinary())),
	}
	return workflow.NewManager(cfg, store, cacheStore, provs, nil, logger)
}
