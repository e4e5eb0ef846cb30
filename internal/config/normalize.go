package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeVoice()
	c.normalizeFootage()
	c.normalizeRender()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeVoice() {
	if strings.TrimSpace(c.Voice.APIKey) == "" {
		c.Voice.APIKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	}
	if strings.TrimSpace(c.Voice.Provider) == "" {
		c.Voice.Provider = defaultVoiceProvider
	}
	if strings.TrimSpace(c.Voice.BaseURL) == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	if c.Voice.TimeoutSeconds <= 0 {
		c.Voice.TimeoutSeconds = defaultVoiceTimeoutSeconds
	}
}

func (c *Config) normalizeFootage() {
	if strings.TrimSpace(c.Footage.APIKey) == "" {
		c.Footage.APIKey = strings.TrimSpace(os.Getenv("PEXELS_API_KEY"))
	}
	if strings.TrimSpace(c.Footage.BaseURL) == "" {
		c.Footage.BaseURL = defaultFootageBaseURL
	}
	if c.Footage.MaxCandidates <= 0 {
		c.Footage.MaxCandidates = defaultFootageMaxCandidates
	}
	if c.Footage.MaxClipSeconds <= 0 {
		c.Footage.MaxClipSeconds = defaultFootageMaxClipSeconds
	}
	if c.Footage.TimeoutSeconds <= 0 {
		c.Footage.TimeoutSeconds = defaultFootageTimeoutSeconds
	}
}

func (c *Config) normalizeRender() {
	if c.Render.FontSize <= 0 {
		c.Render.FontSize = defaultFontSize
	}
	if strings.TrimSpace(c.Render.FontName) == "" {
		c.Render.FontName = defaultFontName
	}
	if strings.TrimSpace(c.Render.TextColor) == "" {
		c.Render.TextColor = defaultTextColor
	}
	if strings.TrimSpace(c.Render.StrokeColor) == "" {
		c.Render.StrokeColor = defaultStrokeColor
	}
	if c.Render.StrokeWidth < 0 {
		c.Render.StrokeWidth = defaultStrokeWidth
	}
	if strings.TrimSpace(c.Render.SubtitlesPosition) == "" {
		c.Render.SubtitlesPosition = defaultSubtitlesPosition
	}
	if strings.TrimSpace(c.Render.WatermarkType) == "" {
		c.Render.WatermarkType = defaultWatermarkType
	}
	c.Render.WatermarkType = strings.ToLower(strings.TrimSpace(c.Render.WatermarkType))
	if strings.TrimSpace(c.Render.AspectRatio) == "" {
		c.Render.AspectRatio = defaultAspectRatio
	}
	if c.Render.FrameRate <= 0 {
		c.Render.FrameRate = defaultFrameRate
	}
	if c.Render.MusicVolume <= 0 || c.Render.MusicVolume > 1 {
		c.Render.MusicVolume = defaultMusicVolume
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ScriptDurationSeconds <= 0 {
		c.Pipeline.ScriptDurationSeconds = defaultScriptDurationSeconds
	}
	if c.Pipeline.MaxProviderRetries <= 0 {
		c.Pipeline.MaxProviderRetries = defaultMaxProviderRetries
	}
	if c.Pipeline.RetryBaseMillis <= 0 {
		c.Pipeline.RetryBaseMillis = defaultRetryBaseMillis
	}
	if c.Pipeline.ProviderConcurrency <= 0 {
		c.Pipeline.ProviderConcurrency = defaultProviderConcurrency
	}
	if c.Pipeline.MinCaptionSeconds <= 0 {
		c.Pipeline.MinCaptionSeconds = defaultMinCaptionSeconds
	}
	if c.Pipeline.MaxCaptionSeconds <= 0 {
		c.Pipeline.MaxCaptionSeconds = defaultMaxCaptionSeconds
	}
	if c.Pipeline.CaptionGapTolerance <= 0 {
		c.Pipeline.CaptionGapTolerance = defaultCaptionGapTolerance
	}
	if c.Pipeline.QueuePollInterval <= 0 {
		c.Pipeline.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Pipeline.HeartbeatInterval <= 0 {
		c.Pipeline.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Pipeline.HeartbeatTimeout <= 0 {
		c.Pipeline.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
