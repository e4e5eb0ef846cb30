package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/providers/tts"
	"reelgen/internal/services"
)

func testScript() artifact.Script {
	return artifact.SegmentScript("Hello world. Second line", 100)
}

func alignmentBody(audio []byte, chars []string, starts, ends []float64) []byte {
	payload := map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
		"alignment": map[string]any{
			"characters":                    chars,
			"character_start_times_seconds": starts,
			"character_end_times_seconds":   ends,
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestSynthesizeWritesAudioAndWords(t *testing.T) {
	audio := []byte("fake-mp3-bytes")
	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		gotPath = r.URL.Path
		w.Write(alignmentBody(audio,
			[]string{"H", "i", " ", "y", "o"},
			[]float64{0.0, 0.1, 0.2, 0.3, 0.4},
			[]float64{0.1, 0.2, 0.3, 0.4, 0.5},
		))
	}))
	defer server.Close()

	client := tts.NewClient(config.Voice{
		APIKey:  "voice-key",
		BaseURL: server.URL,
		VoiceID: "voice-1",
	})
	result, err := client.Synthesize(context.Background(), testScript(), t.TempDir())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotKey != "voice-key" {
		t.Fatalf("xi-api-key = %q", gotKey)
	}
	if !strings.Contains(gotPath, "/text-to-speech/voice-1/with-timestamps") {
		t.Fatalf("request path = %q", gotPath)
	}

	written, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if string(written) != string(audio) {
		t.Fatalf("audio bytes mismatch")
	}
	if result.Duration != 0.5 {
		t.Fatalf("duration = %v, want 0.5", result.Duration)
	}
	if len(result.Words) != 2 {
		t.Fatalf("words = %+v, want 2 entries", result.Words)
	}
	if result.Words[0].Text != "Hi" || result.Words[0].Start != 0.0 || result.Words[0].End != 0.2 {
		t.Fatalf("first word = %+v", result.Words[0])
	}
	if result.Words[1].Text != "yo" || result.Words[1].Start != 0.3 || result.Words[1].End != 0.5 {
		t.Fatalf("second word = %+v", result.Words[1])
	}
}

func TestSynthesizeRejectsEmptyScript(t *testing.T) {
	client := tts.NewClient(config.Voice{APIKey: "k", BaseURL: "http://127.0.0.1:0", VoiceID: "v"})
	_, err := client.Synthesize(context.Background(), artifact.Script{}, t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynthesizeRequiresAPIKey(t *testing.T) {
	client := tts.NewClient(config.Voice{BaseURL: "http://127.0.0.1:0", VoiceID: "v"})
	_, err := client.Synthesize(context.Background(), testScript(), t.TempDir())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSynthesizeClassifiesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := tts.NewClient(config.Voice{APIKey: "k", BaseURL: server.URL, VoiceID: "v"})
	_, err := client.Synthesize(context.Background(), testScript(), t.TempDir())
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestSynthesizeMissingAudioIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alignment": null}`))
	}))
	defer server.Close()

	client := tts.NewClient(config.Voice{APIKey: "k", BaseURL: server.URL, VoiceID: "v"})
	_, err := client.Synthesize(context.Background(), testScript(), t.TempDir())
	if !services.IsTerminalProvider(err) {
		t.Fatalf("expected terminal provider error, got %v", err)
	}
}
