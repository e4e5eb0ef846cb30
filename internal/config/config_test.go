package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelgen/internal/config"
)

func TestLoadDefaultsExpandPathsAndReadEnvKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENAI_API_KEY", "llm-key")
	t.Setenv("PEXELS_API_KEY", "footage-key")
	t.Setenv("ELEVENLABS_API_KEY", "voice-key")

	cfg, resolved, exists, err := config.Load(filepath.Join(tempHome, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "reelgen", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.LLM.APIKey != "llm-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Footage.APIKey != "footage-key" {
		t.Fatalf("expected footage key from env, got %q", cfg.Footage.APIKey)
	}
	if cfg.Voice.APIKey != "voice-key" {
		t.Fatalf("expected voice key from env, got %q", cfg.Voice.APIKey)
	}
	if cfg.Pipeline.ScriptDurationSeconds != 30 {
		t.Fatalf("unexpected script duration default: %d", cfg.Pipeline.ScriptDurationSeconds)
	}
	if cfg.Render.AspectRatio != "9:16" {
		t.Fatalf("unexpected aspect ratio default: %q", cfg.Render.AspectRatio)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache enabled by default")
	}
}

func TestLoadParsesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[pipeline]
script_duration = 45
max_provider_retries = 5

[render]
watermark_path_or_text = "My Channel"
watermark_type = "TEXT"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Pipeline.ScriptDurationSeconds != 45 {
		t.Fatalf("unexpected script duration: %d", cfg.Pipeline.ScriptDurationSeconds)
	}
	if cfg.Pipeline.MaxProviderRetries != 5 {
		t.Fatalf("unexpected retries: %d", cfg.Pipeline.MaxProviderRetries)
	}
	if cfg.Render.WatermarkType != "text" {
		t.Fatalf("expected watermark type normalized, got %q", cfg.Render.WatermarkType)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *config.Config)
		want   string
	}{
		{
			name:   "bad watermark type",
			mutate: func(cfg *config.Config) { cfg.Render.WatermarkType = "hologram" },
			want:   "watermark_type",
		},
		{
			name:   "bad aspect ratio",
			mutate: func(cfg *config.Config) { cfg.Render.AspectRatio = "vertical" },
			want:   "aspect_ratio",
		},
		{
			name: "caption bounds inverted",
			mutate: func(cfg *config.Config) {
				cfg.Pipeline.MinCaptionSeconds = 7
				cfg.Pipeline.MaxCaptionSeconds = 6
			},
			want: "min_caption_seconds",
		},
		{
			name:   "unsupported voice provider",
			mutate: func(cfg *config.Config) { cfg.Voice.Provider = "espeak" },
			want:   "voice.provider",
		},
		{
			name:   "publish enabled without endpoint",
			mutate: func(cfg *config.Config) { cfg.Publish.Enabled = true },
			want:   "publish.endpoint",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.WorkDir = t.TempDir()
			cfg.Paths.CacheDir = t.TempDir()
			cfg.Paths.OutputDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestParseAspectRatio(t *testing.T) {
	w, h, err := config.ParseAspectRatio("9:16")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if w != 9 || h != 16 {
		t.Fatalf("unexpected ratio %d:%d", w, h)
	}
	if _, _, err := config.ParseAspectRatio("0:16"); err == nil {
		t.Fatal("expected error for zero width")
	}
}
