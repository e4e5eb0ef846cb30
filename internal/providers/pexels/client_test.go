package pexels_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/providers/pexels"
	"reelgen/internal/services"
)

func searchBody(videos ...map[string]any) []byte {
	raw, _ := json.Marshal(map[string]any{"videos": videos})
	return raw
}

func video(id int, duration float64, files ...map[string]any) map[string]any {
	return map[string]any{
		"id":          id,
		"duration":    duration,
		"width":       1080,
		"height":      1920,
		"video_files": files,
	}
}

func file(link string, width, height int) map[string]any {
	return map[string]any{
		"link":      link,
		"width":     width,
		"height":    height,
		"file_type": "video/mp4",
	}
}

func TestSearchPrefersPortraitRendition(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Write(searchBody(
			video(1, 12,
				file("https://cdn.example/landscape.mp4", 1920, 1080),
				file("https://cdn.example/portrait.mp4", 1080, 1920),
			),
		))
	}))
	defer server.Close()

	client := pexels.NewClient(config.Footage{
		APIKey:        "px-key",
		BaseURL:       server.URL,
		MaxCandidates: 10,
	})
	candidates, err := client.Search(context.Background(), []string{"ocean waves"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotAuth != "px-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotQuery != "ocean waves" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %+v", candidates)
	}
	if candidates[0].URL != "https://cdn.example/portrait.mp4" {
		t.Fatalf("picked %q, want portrait rendition", candidates[0].URL)
	}
	if candidates[0].Width != 1080 || candidates[0].Height != 1920 {
		t.Fatalf("dimensions = %dx%d", candidates[0].Width, candidates[0].Height)
	}
}

func TestSearchFiltersShortClipsAndDuplicates(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(searchBody(
			video(1, 2, file("https://cdn.example/short.mp4", 1080, 1920)),
			video(2, 15, file("https://cdn.example/long.mp4", 1080, 1920)),
		))
	}))
	defer server.Close()

	client := pexels.NewClient(config.Footage{APIKey: "k", BaseURL: server.URL, MaxCandidates: 5})
	candidates, err := client.Search(context.Background(), []string{"first", "second"}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one request per keyword, got %d", calls)
	}
	if len(candidates) != 1 || candidates[0].URL != "https://cdn.example/long.mp4" {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestSearchEmptyPoolIsCompositionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(searchBody())
	}))
	defer server.Close()

	client := pexels.NewClient(config.Footage{APIKey: "k", BaseURL: server.URL})
	_, err := client.Search(context.Background(), []string{"nothing"}, 0)
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected composition error, got %v", err)
	}
}

func TestSearchClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := pexels.NewClient(config.Footage{APIKey: "k", BaseURL: server.URL})
	_, err := client.Search(context.Background(), []string{"topic"}, 0)
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

// fakeProbe writes an ffprobe stub that reports the given JSON for every
// inspected file.
func fakeProbe(t *testing.T, report string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'EOF'\n" + report + "\nEOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	return path
}

func TestDownloadWritesAndProbesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 32<<10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	probe := fakeProbe(t, `{"streams":[{"codec_type":"video","width":720,"height":1280}],"format":{"duration":"9.5"}}`)
	client := pexels.NewClient(
		config.Footage{APIKey: "k", BaseURL: server.URL},
		pexels.WithFFprobeBinary(probe),
	)
	dir := t.TempDir()
	declared := artifact.Candidate{URL: server.URL + "/clip-42.mp4", Duration: 30, Width: 1080, Height: 1920}
	got, err := client.Download(context.Background(), declared, dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	written, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if len(written) != len(payload) {
		t.Fatalf("downloaded %d bytes, want %d", len(written), len(payload))
	}
	if got.Duration != 9.5 {
		t.Fatalf("duration = %v, want probed 9.5 over declared 30", got.Duration)
	}
	if got.Width != 720 || got.Height != 1280 {
		t.Fatalf("dimensions = %dx%d, want probed 720x1280", got.Width, got.Height)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleanup, dir has %d entries", len(entries))
	}
}

func TestDownloadRejectsTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer server.Close()

	client := pexels.NewClient(config.Footage{APIKey: "k", BaseURL: server.URL})
	_, err := client.Download(context.Background(), artifact.Candidate{URL: server.URL + "/clip.mp4"}, t.TempDir())
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable truncation error, got %v", err)
	}
}

func TestDownloadRejectsFileWithoutVideoStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 32<<10))
	}))
	defer server.Close()

	probe := fakeProbe(t, `{"streams":[],"format":{"duration":"9.5"}}`)
	client := pexels.NewClient(
		config.Footage{APIKey: "k", BaseURL: server.URL},
		pexels.WithFFprobeBinary(probe),
	)
	dir := t.TempDir()
	_, err := client.Download(context.Background(), artifact.Candidate{URL: server.URL + "/clip.mp4"}, dir)
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable probe error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected download must be removed, dir has %d entries", len(entries))
	}
}
