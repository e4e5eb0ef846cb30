package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/render"
	"reelgen/internal/services"
)

type recordingRunner struct {
	args []string
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, args ...string) error {
	r.args = args
	return r.err
}

func renderInputs(t *testing.T) render.Inputs {
	t.Helper()
	return render.Inputs{
		BackgroundPath: "background.mp4",
		Audio:          artifact.Audio{Path: "narration.mp3", Duration: 28.4},
		Captions: []artifact.CaptionSegment{
			{Start: 0, End: 28.4, Text: "hello", SegmentID: "seg-1"},
		},
		DestDir: t.TempDir(),
	}
}

func TestRenderBurnsCaptionsAndMapsNarration(t *testing.T) {
	runner := &recordingRunner{}
	renderer := render.NewRenderer(runner, config.Render{
		FontName:          "Impact",
		FontSize:          70,
		TextColor:         "#FFFF00",
		StrokeColor:       "#000000",
		StrokeWidth:       3,
		SubtitlesPosition: "center,bottom",
	})

	in := renderInputs(t)
	video, err := renderer.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if video.Duration != 28.4 {
		t.Fatalf("duration = %v", video.Duration)
	}
	if filepath.Base(video.Path) != "final.mp4" {
		t.Fatalf("output = %q", video.Path)
	}
	if _, err := os.Stat(filepath.Join(in.DestDir, "captions.srt")); err != nil {
		t.Fatalf("captions.srt not written: %v", err)
	}

	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "subtitles=") {
		t.Fatalf("missing subtitles filter: %s", joined)
	}
	if !strings.Contains(joined, "FontName=Impact") || !strings.Contains(joined, "Alignment=2") {
		t.Fatalf("missing style: %s", joined)
	}
	// #FFFF00 in ASS byte order is blue-green-red.
	if !strings.Contains(joined, "PrimaryColour=&H0000FFFF") {
		t.Fatalf("missing converted colour: %s", joined)
	}
	if !strings.Contains(joined, "-map 1:a") {
		t.Fatalf("narration not mapped: %s", joined)
	}
	if !strings.Contains(joined, "-t 28.400") {
		t.Fatalf("duration clamp missing: %s", joined)
	}
}

func TestRenderMixesMusicBed(t *testing.T) {
	runner := &recordingRunner{}
	renderer := render.NewRenderer(runner, config.Render{
		BackgroundMusicPath: "bed.mp3",
		MusicVolume:         0.2,
	})

	_, err := renderer.Render(context.Background(), renderInputs(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "volume=0.20") || !strings.Contains(joined, "amix=inputs=2") {
		t.Fatalf("music mix missing: %s", joined)
	}
	if !strings.Contains(joined, "-map [aout]") {
		t.Fatalf("mixed audio not mapped: %s", joined)
	}
}

func TestRenderTextWatermark(t *testing.T) {
	runner := &recordingRunner{}
	renderer := render.NewRenderer(runner, config.Render{
		WatermarkType:       "text",
		WatermarkPathOrText: "@mychannel",
	})
	_, err := renderer.Render(context.Background(), renderInputs(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "drawtext=text='@mychannel'") {
		t.Fatalf("drawtext missing: %s", joined)
	}
}

func TestRenderImageWatermark(t *testing.T) {
	runner := &recordingRunner{}
	renderer := render.NewRenderer(runner, config.Render{
		WatermarkType:       "image",
		WatermarkPathOrText: "logo.png",
	})
	_, err := renderer.Render(context.Background(), renderInputs(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "-i logo.png") || !strings.Contains(joined, "overlay=") {
		t.Fatalf("image overlay missing: %s", joined)
	}
}

func TestRenderValidatesInputs(t *testing.T) {
	renderer := render.NewRenderer(&recordingRunner{}, config.Render{})
	_, err := renderer.Render(context.Background(), render.Inputs{DestDir: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
