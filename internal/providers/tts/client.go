// Package tts implements the VoiceSynthesizer adapter against an
// ElevenLabs-compatible text-to-speech API with character timestamps.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/media/ffprobe"
	"reelgen/internal/providers"
	"reelgen/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	narrationFilename  = "narration.mp3"
	// defaultSampleRate matches the mp3_44100_128 output preset.
	defaultSampleRate = 44100

	stageName = "synthesizing"
)

// Client synthesizes narration audio with word-level timestamp hints.
type Client struct {
	cfg           config.Voice
	httpClient    *http.Client
	ffprobeBinary string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithFFprobeBinary sets the probe binary used when the provider omits
// timing metadata.
func WithFFprobeBinary(binary string) Option {
	return func(c *Client) {
		if binary != "" {
			c.ffprobeBinary = binary
		}
	}
}

// NewClient constructs a synthesis client from configuration.
func NewClient(cfg config.Voice, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: timeout},
		ffprobeBinary: "ffprobe",
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type synthesisResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Alignment   *struct {
		Characters     []string  `json:"characters"`
		CharacterStart []float64 `json:"character_start_times_seconds"`
		CharacterEnd   []float64 `json:"character_end_times_seconds"`
	} `json:"alignment"`
}

// Synthesize renders the full script as one narration track and writes it
// to destDir. Word timestamps are derived from the provider's character
// alignment when present.
func (c *Client) Synthesize(ctx context.Context, script artifact.Script, destDir string) (artifact.Audio, error) {
	if script.Empty() {
		return artifact.Audio{}, services.Wrap(services.ErrValidation, stageName, "synthesize", "empty script", nil)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return artifact.Audio{}, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "api key required", nil)
	}

	text := joinSegments(script)
	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: "eleven_multilingual_v2"})
	if err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrValidation, stageName, "synthesize", "encode request", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/with-timestamps",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrValidation, stageName, "synthesize", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return artifact.Audio{}, providers.ClassifyTransportError(stageName, "synthesize", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrTransient, stageName, "synthesize", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return artifact.Audio{}, providers.ClassifyStatus(stageName, "synthesize", resp.StatusCode, raw)
	}

	var synthesis synthesisResponse
	if err := json.Unmarshal(raw, &synthesis); err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrTransient, stageName, "synthesize", "decode response", err)
	}
	if synthesis.AudioBase64 == "" {
		return artifact.Audio{}, services.Wrap(services.ErrProvider, stageName, "synthesize", "missing audio payload", nil)
	}
	audioBytes, err := base64.StdEncoding.DecodeString(synthesis.AudioBase64)
	if err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrProvider, stageName, "synthesize", "decode audio payload", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrValidation, stageName, "synthesize", "create destination", err)
	}
	audioPath := filepath.Join(destDir, narrationFilename)
	if err := os.WriteFile(audioPath, audioBytes, 0o644); err != nil {
		return artifact.Audio{}, services.Wrap(services.ErrValidation, stageName, "synthesize", "write audio file", err)
	}

	audio := artifact.Audio{
		Path:       audioPath,
		SampleRate: defaultSampleRate,
	}
	if synthesis.Alignment != nil {
		audio.Words = wordsFromAlignment(
			synthesis.Alignment.Characters,
			synthesis.Alignment.CharacterStart,
			synthesis.Alignment.CharacterEnd,
		)
		if n := len(synthesis.Alignment.CharacterEnd); n > 0 {
			audio.Duration = synthesis.Alignment.CharacterEnd[n-1]
		}
	}
	if audio.Duration <= 0 {
		audio.Duration = c.probeDuration(ctx, audioPath)
	}
	if audio.Duration <= 0 {
		return artifact.Audio{}, services.Wrap(services.ErrProvider, stageName, "synthesize", "could not determine audio duration", nil)
	}
	return audio, nil
}

func (c *Client) probeDuration(ctx context.Context, path string) float64 {
	result, err := ffprobe.Inspect(ctx, c.ffprobeBinary, path)
	if err != nil {
		return 0
	}
	return result.DurationSeconds()
}

func joinSegments(script artifact.Script) string {
	parts := make([]string, 0, len(script.Segments))
	for _, seg := range script.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
			text += "."
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// wordsFromAlignment folds character-level timestamps into word stamps.
// Whitespace characters terminate the current word; mismatched array
// lengths are clamped to the shortest.
func wordsFromAlignment(chars []string, starts, ends []float64) []artifact.WordStamp {
	n := len(chars)
	if len(starts) < n {
		n = len(starts)
	}
	if len(ends) < n {
		n = len(ends)
	}

	var words []artifact.WordStamp
	var current strings.Builder
	var wordStart float64
	var wordEnd float64
	flush := func() {
		if current.Len() == 0 {
			return
		}
		words = append(words, artifact.WordStamp{
			Text:  current.String(),
			Start: wordStart,
			End:   wordEnd,
		})
		current.Reset()
	}
	for i := 0; i < n; i++ {
		ch := chars[i]
		if strings.TrimSpace(ch) == "" {
			flush()
			continue
		}
		if current.Len() == 0 {
			wordStart = starts[i]
		}
		wordEnd = ends[i]
		current.WriteString(ch)
	}
	flush()
	return words
}
