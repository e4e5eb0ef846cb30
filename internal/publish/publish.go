// Package publish delivers completion receipts for finished jobs to an
// optional webhook endpoint. When no endpoint is configured, a noop
// implementation is returned so callers never branch.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelgen/internal/config"
)

const userAgent = "reelgen/0.1.0"

// Receipt describes a finished job.
type Receipt struct {
	JobID           int64     `json:"job_id"`
	Prompt          string    `json:"prompt"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	OutputPath      string    `json:"output_path"`
	DurationSeconds float64   `json:"duration_seconds"`
	PartialFailure  bool      `json:"partial_failure"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Publisher defines the completion surface exposed to workflow components.
type Publisher interface {
	Publish(ctx context.Context, receipt Receipt) error
}

// NewPublisher builds a publisher backed by the configured webhook.
func NewPublisher(cfg *config.Config) Publisher {
	endpoint := strings.TrimSpace(cfg.Publish.Endpoint)
	if !cfg.Publish.Enabled || endpoint == "" {
		return noopPublisher{}
	}
	return &webhookPublisher{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.Publish.Token),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Receipt) error { return nil }

type webhookPublisher struct {
	endpoint string
	token    string
	client   *http.Client
}

func (p *webhookPublisher) Publish(ctx context.Context, receipt Receipt) error {
	if receipt.CompletedAt.IsZero() {
		receipt.CompletedAt = time.Now().UTC()
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build receipt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("receipt rejected: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
