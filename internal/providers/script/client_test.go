package script_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelgen/internal/config"
	"reelgen/internal/providers/script"
	"reelgen/internal/services"
)

func chatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, config.LLM) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.LLM{
		APIKey:         "test-key",
		BaseURL:        server.URL,
		Model:          "gpt-4o-mini",
		TimeoutSeconds: 5,
	}
	return server, cfg
}

func completionBody(content string) []byte {
	payload := map[string]any{
		"choices": []map[string]any{
			{
				"message":       map[string]any{"content": content},
				"finish_reason": "stop",
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestGenerateSegmentsScript(t *testing.T) {
	var gotAuth string
	_, cfg := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody(`The ocean covers most of the planet. "Its deepest trench remains unexplored."`))
	})

	client := script.NewClient(cfg)
	result, err := client.Generate(context.Background(), "ocean facts", 30*time.Second)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(result.Segments), result.Segments)
	}
	for _, seg := range result.Segments {
		for _, r := range seg.Text {
			if r == '"' {
				t.Fatalf("segment retains quote: %q", seg.Text)
			}
		}
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	client := script.NewClient(config.LLM{APIKey: "k", BaseURL: "http://127.0.0.1:0", Model: "m"})
	if _, err := client.Generate(context.Background(), "   ", 30*time.Second); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateClassifiesRateLimit(t *testing.T) {
	_, cfg := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	client := script.NewClient(cfg)
	_, err := client.Generate(context.Background(), "topic", 30*time.Second)
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestGenerateClassifiesAuthFailure(t *testing.T) {
	_, cfg := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	client := script.NewClient(cfg)
	_, err := client.Generate(context.Background(), "topic", 30*time.Second)
	if services.IsRetryable(err) {
		t.Fatalf("auth failure must not be retryable: %v", err)
	}
	if !services.IsTerminalProvider(err) {
		t.Fatalf("expected terminal provider error, got %v", err)
	}
}

func TestSearchTermsParsesAndNormalizes(t *testing.T) {
	_, cfg := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResponseFormat map[string]string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req.ResponseFormat)
		}
		w.Write(completionBody(`{"terms": ["#Ocean Waves", "deep sea", "Deep Sea", "  ", "coral reef"]}`))
	})

	client := script.NewClient(cfg)
	terms, err := client.SearchTerms(context.Background(), "ocean facts", 3)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	want := []string{"ocean waves", "deep sea", "coral reef"}
	if len(terms) != len(want) {
		t.Fatalf("terms = %v, want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("terms[%d] = %q, want %q", i, terms[i], want[i])
		}
	}
}

func TestSearchTermsToleratesCodeFence(t *testing.T) {
	_, cfg := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody("```json\n{\"terms\": [\"sunrise timelapse\"]}\n```"))
	})
	client := script.NewClient(cfg)
	terms, err := client.SearchTerms(context.Background(), "mornings", 5)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(terms) != 1 || terms[0] != "sunrise timelapse" {
		t.Fatalf("terms = %v", terms)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := script.NewClient(config.LLM{BaseURL: "http://127.0.0.1:0", Model: "m"})
	if _, err := client.Generate(context.Background(), "topic", 30*time.Second); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
