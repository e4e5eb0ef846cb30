// Package pexels implements the FootageProvider adapter against the
// Pexels video search API.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	defaultHTTPTimeout = 60 * time.Second
	downloadTimeout    = 5 * time.Minute
	// minDownloadBytes rejects truncated or error-page downloads.
	minDownloadBytes = 10 << 10

	stageName = "composing"
)

// Client searches and downloads stock footage.
type Client struct {
	cfg           config.Footage
	httpClient    *http.Client
	downloader    *http.Client
	ffprobeBinary string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for both search and
// download requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
			c.downloader = client
		}
	}
}

// WithFFprobeBinary overrides the ffprobe binary used to verify downloads.
func WithFFprobeBinary(binary string) Option {
	return func(c *Client) {
		if strings.TrimSpace(binary) != "" {
			c.ffprobeBinary = binary
		}
	}
}

// NewClient constructs a footage client from configuration.
func NewClient(cfg config.Footage, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: timeout},
		downloader:    &http.Client{Timeout: downloadTimeout},
		ffprobeBinary: "ffprobe",
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type videoFile struct {
	Link     string `json:"link"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileType string `json:"file_type"`
}

type searchResponse struct {
	Videos []struct {
		ID         int64       `json:"id"`
		Duration   float64     `json:"duration"`
		Width      int         `json:"width"`
		Height     int         `json:"height"`
		VideoFiles []videoFile `json:"video_files"`
	} `json:"videos"`
}

// Search queries each keyword in order and returns candidates in
// provider-ranked order, preferring portrait renditions and dropping
// clips shorter than minDuration.
func (c *Client) Search(ctx context.Context, keywords []string, minDuration float64) ([]artifact.Candidate, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "search", "api key required", nil)
	}
	if len(keywords) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "search", "keywords required", nil)
	}

	perKeyword := c.cfg.MaxCandidates
	if perKeyword <= 0 {
		perKeyword = 10
	}

	var candidates []artifact.Candidate
	seen := make(map[string]struct{})
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		found, err := c.searchKeyword(ctx, keyword, perKeyword, minDuration)
		if err != nil {
			return nil, err
		}
		for _, candidate := range found {
			if _, dup := seen[candidate.URL]; dup {
				continue
			}
			seen[candidate.URL] = struct{}{}
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrComposition, stageName, "search", "no usable footage candidates", nil)
	}
	return candidates, nil
}

func (c *Client) searchKeyword(ctx context.Context, keyword string, perPage int, minDuration float64) ([]artifact.Candidate, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=%d",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(keyword), perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "search", "build request", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.ClassifyTransportError(stageName, "search", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "search", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providers.ClassifyStatus(stageName, "search", resp.StatusCode, raw)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "search", "decode response", err)
	}

	var candidates []artifact.Candidate
	for _, video := range parsed.Videos {
		if minDuration > 0 && video.Duration < minDuration {
			continue
		}
		link, width, height := bestRendition(video.VideoFiles)
		if link == "" {
			continue
		}
		candidates = append(candidates, artifact.Candidate{
			URL:      link,
			Duration: video.Duration,
			Width:    width,
			Height:   height,
		})
	}
	return candidates, nil
}

// bestRendition picks the rendition closest to a 9:16 portrait frame,
// preferring portrait files over landscape ones.
func bestRendition(files []videoFile) (string, int, int) {
	const target = 9.0 / 16.0

	bestLink := ""
	bestWidth, bestHeight := 0, 0
	bestScore := -1.0
	for _, file := range files {
		if file.Width <= 0 || file.Height <= 0 {
			continue
		}
		if file.FileType != "" && !strings.Contains(file.FileType, "mp4") {
			continue
		}
		ratio := float64(file.Width) / float64(file.Height)
		diff := ratio - target
		if diff < 0 {
			diff = -diff
		}
		// Closer aspect match wins; among equals prefer larger frames.
		score := 1.0/(1.0+diff) + float64(file.Height)/100000.0
		if score > bestScore {
			bestScore = score
			bestLink = file.Link
			bestWidth, bestHeight = file.Width, file.Height
		}
	}
	return bestLink, bestWidth, bestHeight
}

// Download fetches a candidate into destDir and returns it with the probed
// duration and dimensions. Writes go through a temp file so partial
// downloads never surface, and files that fail the probe are discarded.
func (c *Client) Download(ctx context.Context, candidate artifact.Candidate, destDir string) (artifact.Candidate, error) {
	if candidate.URL == "" {
		return artifact.Candidate{}, services.Wrap(services.ErrValidation, stageName, "download", "candidate url required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return artifact.Candidate{}, services.Wrap(services.ErrValidation, stageName, "download", "create destination", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return artifact.Candidate{}, services.Wrap(services.ErrValidation, stageName, "download", "build request", err)
	}
	resp, err := c.downloader.Do(req)
	if err != nil {
		return artifact.Candidate{}, providers.ClassifyTransportError(stageName, "download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return artifact.Candidate{}, providers.ClassifyStatus(stageName, "download", resp.StatusCode, body)
	}

	finalPath := filepath.Join(destDir, downloadFilename(candidate.URL))
	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return artifact.Candidate{}, services.Wrap(services.ErrValidation, stageName, "download", "create temp file", err)
	}
	tmpPath := tmp.Name()
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr == nil {
			copyErr = closeErr
		}
		return artifact.Candidate{}, services.Wrap(services.ErrTransient, stageName, "download", "write body", copyErr)
	}
	if written < minDownloadBytes {
		os.Remove(tmpPath)
		return artifact.Candidate{}, services.Wrap(services.ErrTransient, stageName, "download",
			fmt.Sprintf("truncated download (%d bytes)", written), nil)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return artifact.Candidate{}, services.Wrap(services.ErrValidation, stageName, "download", "finalize file", err)
	}
	return c.verifyDownload(ctx, candidate, finalPath)
}

// verifyDownload probes the delivered file and replaces the provider's
// declared metadata with what was actually received.
func (c *Client) verifyDownload(ctx context.Context, candidate artifact.Candidate, path string) (artifact.Candidate, error) {
	result, err := ffprobe.Inspect(ctx, c.ffprobeBinary, path)
	if err != nil {
		os.Remove(path)
		return artifact.Candidate{}, services.Wrap(services.ErrTransient, stageName, "download", "probe downloaded file", err)
	}
	stream, ok := result.VideoStream()
	if !ok {
		os.Remove(path)
		return artifact.Candidate{}, services.Wrap(services.ErrTransient, stageName, "download", "downloaded file has no video stream", nil)
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		os.Remove(path)
		return artifact.Candidate{}, services.Wrap(services.ErrTransient, stageName, "download", "downloaded file has no duration", nil)
	}
	verified := candidate
	verified.Path = path
	verified.Duration = duration
	if stream.Width > 0 && stream.Height > 0 {
		verified.Width = stream.Width
		verified.Height = stream.Height
	}
	return verified, nil
}

func downloadFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		if base := filepath.Base(parsed.Path); base != "" && base != "." && base != "/" {
			return sanitizeFilename(base)
		}
	}
	return fmt.Sprintf("clip-%d.mp4", time.Now().UnixNano())
}

func sanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if !strings.HasSuffix(cleaned, ".mp4") {
		cleaned += ".mp4"
	}
	return cleaned
}
