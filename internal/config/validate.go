package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateVoice() error {
	// ElevenLabs is the only synthesis backend wired today; reject other
	// values so a typo does not silently run with the wrong credentials.
	if c.Voice.Provider != defaultVoiceProvider {
		return fmt.Errorf("voice.provider must be %q, got %q", defaultVoiceProvider, c.Voice.Provider)
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.WatermarkType {
	case "text", "image":
	default:
		return fmt.Errorf("render.watermark_type must be %q or %q, got %q", "text", "image", c.Render.WatermarkType)
	}
	if _, _, err := ParseAspectRatio(c.Render.AspectRatio); err != nil {
		return fmt.Errorf("render.aspect_ratio: %w", err)
	}
	return nil
}

// ParseAspectRatio splits a "W:H" ratio string into its integer parts.
func ParseAspectRatio(ratio string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(ratio), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected W:H, got %q", ratio)
	}
	var w, h int
	if _, err := fmt.Sscanf(parts[0], "%d", &w); err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", ratio)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &h); err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", ratio)
	}
	return w, h, nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MinCaptionSeconds >= c.Pipeline.MaxCaptionSeconds {
		return errors.New("pipeline.min_caption_seconds must be below pipeline.max_caption_seconds")
	}
	if c.Pipeline.MaxProviderRetries > 10 {
		return errors.New("pipeline.max_provider_retries must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.MaxGiB <= 0 {
		return errors.New("cache.max_gib must be positive when cache is enabled")
	}
	if c.Cache.MaxAgeDays <= 0 {
		return errors.New("cache.max_age_days must be positive when cache is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Publish.Endpoint) == "" {
		return errors.New("publish.endpoint must be set when publish is enabled")
	}
	return nil
}
