package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ConfigVersion participates in cache fingerprints. Bump it when a config
// change must invalidate previously cached stage artifacts.
const ConfigVersion = 1

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	CacheDir  string `toml:"cache_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// LLM contains connection settings for the script-generation model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Voice contains configuration for the narration synthesizer.
type Voice struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	VoiceID        string `toml:"voice_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Footage contains configuration for the stock-footage provider.
type Footage struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	MaxCandidates  int     `toml:"max_candidates"`
	MaxClipSeconds float64 `toml:"max_clip_seconds"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Render contains text overlay, watermark, and output geometry settings.
type Render struct {
	FontSize            int     `toml:"fontsize"`
	FontName            string  `toml:"font_name"`
	TextColor           string  `toml:"text_color"`
	StrokeColor         string  `toml:"stroke_color"`
	StrokeWidth         int     `toml:"stroke_width"`
	SubtitlesPosition   string  `toml:"subtitles_position"`
	WatermarkPathOrText string  `toml:"watermark_path_or_text"`
	WatermarkType       string  `toml:"watermark_type"`
	AspectRatio         string  `toml:"aspect_ratio"`
	FrameRate           int     `toml:"frame_rate"`
	BackgroundMusicPath string  `toml:"background_music_path"`
	MusicVolume         float64 `toml:"music_volume"`
	FFmpegBinary        string  `toml:"ffmpeg_binary"`
	FFprobeBinary       string  `toml:"ffprobe_binary"`
}

// Pipeline contains orchestration timing, retry, and alignment settings.
type Pipeline struct {
	ScriptDurationSeconds int     `toml:"script_duration"`
	MaxProviderRetries    int     `toml:"max_provider_retries"`
	RetryBaseMillis       int     `toml:"retry_base_ms"`
	ProviderConcurrency   int     `toml:"provider_concurrency"`
	MinCaptionSeconds     float64 `toml:"min_caption_seconds"`
	MaxCaptionSeconds     float64 `toml:"max_caption_seconds"`
	CaptionGapTolerance   float64 `toml:"caption_gap_tolerance"`
	QueuePollInterval     int     `toml:"queue_poll_interval"`
	HeartbeatInterval     int     `toml:"heartbeat_interval"`
	HeartbeatTimeout      int     `toml:"heartbeat_timeout"`
}

// Cache contains limits for the content-addressed artifact store.
type Cache struct {
	Enabled    bool `toml:"enabled"`
	MaxGiB     int  `toml:"max_gib"`
	MaxAgeDays int  `toml:"max_age_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Publish contains configuration for the optional upload integration.
type Publish struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
}

// Config encapsulates all configuration values for the pipeline.
//
// Configuration sections by subsystem:
//   - Paths: working, cache, output, and log directories
//   - LLM: script generation model connection
//   - Voice: narration synthesis provider
//   - Footage: stock footage search provider
//   - Render: caption styling, watermark, aspect ratio, ffmpeg binaries
//   - Pipeline: retries, concurrency, alignment tolerances, daemon intervals
//   - Cache: artifact store size and age limits
//   - Logging: log format and level
//   - Publish: optional upload endpoint invoked after successful renders
type Config struct {
	Paths    Paths    `toml:"paths"`
	LLM      LLM      `toml:"llm"`
	Voice    Voice    `toml:"voice"`
	Footage  Footage  `toml:"footage"`
	Render   Render   `toml:"render"`
	Pipeline Pipeline `toml:"pipeline"`
	Cache    Cache    `toml:"cache"`
	Logging  Logging  `toml:"logging"`
	Publish  Publish  `toml:"publish"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelgen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelgen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.CacheDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the configured ffmpeg binary name or the default.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Render.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the configured ffprobe binary name or the default.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Render.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// ExpandPath resolves ~ prefixes and relative paths to absolute paths.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
