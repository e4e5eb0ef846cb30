package footage_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/footage"
	"reelgen/internal/services"
)

func candidate(path string, duration float64) artifact.Candidate {
	return artifact.Candidate{URL: "https://cdn.example/" + path, Path: path, Duration: duration}
}

func TestPlanLoopsAndTrimsSingleClip(t *testing.T) {
	clips, err := footage.Plan([]artifact.Candidate{candidate("a.mp4", 10)}, 25, 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("clips = %+v", clips)
	}
	wantDurations := []float64{10, 10, 5}
	for i, clip := range clips {
		if math.Abs(clip.TrimDuration()-wantDurations[i]) > 1e-9 {
			t.Fatalf("clip %d duration = %v, want %v", i, clip.TrimDuration(), wantDurations[i])
		}
		if clip.Source != "a.mp4" {
			t.Fatalf("clip %d source = %q", i, clip.Source)
		}
	}
	if clips[2].PlaceEnd != 25 {
		t.Fatalf("plan ends at %v", clips[2].PlaceEnd)
	}
}

func TestPlanAppliesClipCap(t *testing.T) {
	clips, err := footage.Plan([]artifact.Candidate{candidate("a.mp4", 12)}, 12, 5)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wantDurations := []float64{5, 5, 2}
	if len(clips) != len(wantDurations) {
		t.Fatalf("clips = %+v", clips)
	}
	for i, clip := range clips {
		if math.Abs(clip.TrimDuration()-wantDurations[i]) > 1e-9 {
			t.Fatalf("clip %d duration = %v, want %v", i, clip.TrimDuration(), wantDurations[i])
		}
	}
}

func TestPlanRotatesThroughCandidates(t *testing.T) {
	clips, err := footage.Plan([]artifact.Candidate{
		candidate("a.mp4", 4),
		candidate("b.mp4", 4),
	}, 10, 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	sources := make([]string, len(clips))
	for i, clip := range clips {
		sources[i] = clip.Source
	}
	want := []string{"a.mp4", "b.mp4", "a.mp4"}
	for i := range want {
		if sources[i] != want[i] {
			t.Fatalf("sources = %v, want %v", sources, want)
		}
	}
	// Contiguous tiling.
	cursor := 0.0
	for i, clip := range clips {
		if clip.PlaceStart != cursor {
			t.Fatalf("clip %d not contiguous: %+v", i, clip)
		}
		cursor = clip.PlaceEnd
	}
	if cursor != 10 {
		t.Fatalf("plan covers %v seconds", cursor)
	}
}

func TestPlanRejectsEmptyPool(t *testing.T) {
	_, err := footage.Plan(nil, 10, 0)
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected composition error, got %v", err)
	}
	_, err = footage.Plan([]artifact.Candidate{{URL: "u", Duration: 0}}, 10, 0)
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected composition error for zero-duration pool, got %v", err)
	}
}

func TestPlanRejectsNonPositiveTarget(t *testing.T) {
	_, err := footage.Plan([]artifact.Candidate{candidate("a.mp4", 10)}, 0, 0)
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected composition error, got %v", err)
	}
}

type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(ctx context.Context, args ...string) error {
	r.calls = append(r.calls, args)
	// The concat step copies an existing file, so fake the outputs.
	output := args[len(args)-1]
	return os.WriteFile(output, []byte("x"), 0o644)
}

func TestComposeNormalizesAndConcatenates(t *testing.T) {
	runner := &recordingRunner{}
	composer, err := footage.NewComposer(runner, config.Render{AspectRatio: "9:16", FrameRate: 30})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	dir := t.TempDir()
	clips := []artifact.FootageClip{
		{Source: "a.mp4", TrimStart: 0, TrimEnd: 5, PlaceStart: 0, PlaceEnd: 5},
		{Source: "b.mp4", TrimStart: 0, TrimEnd: 3, PlaceStart: 5, PlaceEnd: 8},
	}
	output, err := composer.Compose(context.Background(), clips, dir)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if filepath.Base(output) != "background.mp4" {
		t.Fatalf("output = %q", output)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected 2 normalize calls + 1 concat, got %d", len(runner.calls))
	}

	first := strings.Join(runner.calls[0], " ")
	if !strings.Contains(first, "scale=1080:1920") || !strings.Contains(first, "crop=1080:1920") {
		t.Fatalf("normalize args missing portrait filter: %s", first)
	}
	if !strings.Contains(first, "-an") {
		t.Fatalf("normalize must drop audio: %s", first)
	}

	concat := strings.Join(runner.calls[2], " ")
	if !strings.Contains(concat, "-f concat") {
		t.Fatalf("final call is not a concat: %s", concat)
	}
	listData, err := os.ReadFile(filepath.Join(dir, "segments", "concat.txt"))
	if err != nil {
		t.Fatalf("read concat list: %v", err)
	}
	if got := strings.Count(string(listData), "file '"); got != 2 {
		t.Fatalf("concat list has %d entries:\n%s", got, listData)
	}
}

func TestComposeRejectsEmptyPlan(t *testing.T) {
	composer, err := footage.NewComposer(&recordingRunner{}, config.Render{AspectRatio: "9:16"})
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	_, err = composer.Compose(context.Background(), nil, t.TempDir())
	if !errors.Is(err, services.ErrComposition) {
		t.Fatalf("expected composition error, got %v", err)
	}
}
