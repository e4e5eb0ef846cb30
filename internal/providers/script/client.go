// Package script implements the ScriptGenerator adapter against an
// OpenAI-compatible chat completion endpoint.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/providers"
	"reelgen/internal/services"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	// maxSegmentChars bounds script segment length before whitespace splits.
	maxSegmentChars = 100

	stageName = "scripting"
)

// Client talks to an OpenAI-compatible chat completion API.
type Client struct {
	cfg        config.LLM
	httpClient *http.Client
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

// NewClient constructs a script generation client from configuration.
func NewClient(cfg config.LLM, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Generate produces a segmented narration script for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string, targetDuration time.Duration) (artifact.Script, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return artifact.Script{}, services.Wrap(services.ErrValidation, stageName, "generate", "prompt required", nil)
	}
	duration := fmt.Sprintf("%d seconds", int(targetDuration.Seconds()))
	content, err := c.complete(ctx, scriptSystemPrompt, fmt.Sprintf(scriptUserTemplate, duration, prompt), false)
	if err != nil {
		return artifact.Script{}, err
	}
	raw := strings.ReplaceAll(strings.TrimSpace(content), `"`, "")
	script := artifact.SegmentScript(raw, maxSegmentChars)
	return script, nil
}

// SearchTerms extracts up to max footage keywords for the prompt.
func (c *Client) SearchTerms(ctx context.Context, prompt string, max int) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "search terms", "prompt required", nil)
	}
	if max <= 0 {
		max = 10
	}
	content, err := c.complete(ctx, searchTermsSystemPrompt, fmt.Sprintf(searchTermsUserTemplate, max, prompt), true)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Terms []string `json:"terms"`
	}
	if err := decodeJSONContent(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "search terms", "parse payload", err)
	}

	lower := cases.Lower(language.English)
	terms := make([]string, 0, max)
	seen := make(map[string]struct{})
	for _, term := range parsed.Terms {
		cleaned := lower.String(strings.TrimSpace(strings.ReplaceAll(term, "#", "")))
		if cleaned == "" {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		terms = append(terms, cleaned)
		if len(terms) == max {
			break
		}
	}
	if len(terms) == 0 {
		return nil, services.Wrap(services.ErrTransient, stageName, "search terms", "empty term list", nil)
	}
	return terms, nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, jsonOnly bool) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "complete", "api key required", nil)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if jsonOnly {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "complete", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "complete", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", providers.ClassifyTransportError(stageName, "complete", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "complete", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", providers.ClassifyStatus(stageName, "complete", resp.StatusCode, raw)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "complete", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrProvider, stageName, "complete", completion.Error.Message, nil)
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, stageName, "complete", "empty choices", nil)
	}
	choice := completion.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", services.Wrap(services.ErrProvider, stageName, "complete", "model refusal: "+refusal, nil)
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "complete",
			fmt.Sprintf("empty content (finish_reason=%q)", choice.FinishReason), nil)
	}
	return content, nil
}
