package footage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/media/ffmpeg"
	"reelgen/internal/services"
)

const outputHeight = 1920

// Composer renders a footage plan into a single silent background track.
type Composer struct {
	runner ffmpeg.Runner
	render config.Render
	width  int
	height int
}

// NewComposer builds a composer for the configured render settings.
func NewComposer(runner ffmpeg.Runner, render config.Render) (*Composer, error) {
	ratioW, ratioH, err := config.ParseAspectRatio(render.AspectRatio)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "composing", "new composer", "aspect ratio", err)
	}
	width := outputHeight * ratioW / ratioH
	if width%2 != 0 {
		width++
	}
	return &Composer{
		runner: runner,
		render: render,
		width:  width,
		height: outputHeight,
	}, nil
}

// Compose normalizes each planned placement and concatenates them into
// destDir/background.mp4.
func (c *Composer) Compose(ctx context.Context, clips []artifact.FootageClip, destDir string) (string, error) {
	if len(clips) == 0 {
		return "", services.Wrap(services.ErrComposition, "composing", "compose", "empty plan", nil)
	}
	segmentDir := filepath.Join(destDir, "segments")
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrComposition, "composing", "compose", "create segment dir", err)
	}

	segmentPaths := make([]string, 0, len(clips))
	for i, clip := range clips {
		segmentPath := filepath.Join(segmentDir, fmt.Sprintf("segment-%03d.mp4", i))
		if err := c.normalizeClip(ctx, clip, segmentPath); err != nil {
			return "", err
		}
		segmentPaths = append(segmentPaths, segmentPath)
	}

	listPath := filepath.Join(segmentDir, "concat.txt")
	if err := writeConcatList(listPath, segmentPaths); err != nil {
		return "", err
	}

	outputPath := filepath.Join(destDir, "background.mp4")
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	if err := c.runner.Run(ctx, args...); err != nil {
		return "", services.Wrap(services.ErrComposition, "composing", "compose", "concatenate segments", err)
	}
	return outputPath, nil
}

// normalizeClip trims the placement window and scale/crops the source to
// the portrait output frame, dropping any audio track.
func (c *Composer) normalizeClip(ctx context.Context, clip artifact.FootageClip, outputPath string) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d",
		c.width, c.height, c.width, c.height, c.frameRate())
	args := []string{
		"-ss", formatSeconds(clip.TrimStart),
		"-t", formatSeconds(clip.TrimDuration()),
		"-i", clip.Source,
		"-vf", filter,
		"-an",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		outputPath,
	}
	if err := c.runner.Run(ctx, args...); err != nil {
		return services.Wrap(services.ErrComposition, "composing", "normalize clip",
			filepath.Base(clip.Source), err)
	}
	return nil
}

func (c *Composer) frameRate() int {
	if c.render.FrameRate > 0 {
		return c.render.FrameRate
	}
	return 30
}

func writeConcatList(path string, segments []string) error {
	var builder strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&builder, "file '%s'\n", strings.ReplaceAll(segment, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return services.Wrap(services.ErrComposition, "composing", "compose", "write concat list", err)
	}
	return nil
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
