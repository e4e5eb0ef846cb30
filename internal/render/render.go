// Package render muxes the composed background track, narration audio,
// burned-in captions, and optional watermark and music bed into the final
// deliverable video.
package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"reelgen/internal/artifact"
	"reelgen/internal/config"
	"reelgen/internal/media/ffmpeg"
	"reelgen/internal/services"
	"reelgen/internal/subtitle"
)

const outputFilename = "final.mp4"

// Inputs collects everything the final mux consumes.
type Inputs struct {
	BackgroundPath string
	Audio          artifact.Audio
	Captions       []artifact.CaptionSegment
	DestDir        string
}

// Renderer performs the final mux.
type Renderer struct {
	runner ffmpeg.Runner
	render config.Render
}

// NewRenderer builds a renderer for the configured settings.
func NewRenderer(runner ffmpeg.Runner, render config.Render) *Renderer {
	return &Renderer{runner: runner, render: render}
}

// Render burns captions into the background track, mixes narration with the
// optional music bed, applies the watermark, and writes DestDir/final.mp4.
// The output duration matches the narration audio.
func (r *Renderer) Render(ctx context.Context, in Inputs) (artifact.RenderedVideo, error) {
	if in.BackgroundPath == "" || in.Audio.Path == "" {
		return artifact.RenderedVideo{}, services.Wrap(services.ErrValidation, "rendering", "render", "background and audio required", nil)
	}
	if in.Audio.Duration <= 0 {
		return artifact.RenderedVideo{}, services.Wrap(services.ErrValidation, "rendering", "render", "non-positive audio duration", nil)
	}

	srtPath := filepath.Join(in.DestDir, "captions.srt")
	if len(in.Captions) > 0 {
		if err := subtitle.WriteSRTFile(srtPath, in.Captions); err != nil {
			return artifact.RenderedVideo{}, err
		}
	}

	outputPath := filepath.Join(in.DestDir, outputFilename)
	args, err := r.buildArgs(in, srtPath, outputPath)
	if err != nil {
		return artifact.RenderedVideo{}, err
	}
	if err := r.runner.Run(ctx, args...); err != nil {
		return artifact.RenderedVideo{}, services.Wrap(services.ErrComposition, "rendering", "render", "mux output", err)
	}
	return artifact.RenderedVideo{Path: outputPath, Duration: in.Audio.Duration}, nil
}

func (r *Renderer) buildArgs(in Inputs, srtPath, outputPath string) ([]string, error) {
	args := []string{
		"-i", in.BackgroundPath,
		"-i", in.Audio.Path,
	}

	musicInput := -1
	if r.render.BackgroundMusicPath != "" {
		musicInput = 2
		args = append(args, "-stream_loop", "-1", "-i", r.render.BackgroundMusicPath)
	}
	watermarkInput := -1
	if r.render.WatermarkType == "image" && r.render.WatermarkPathOrText != "" {
		watermarkInput = 2
		if musicInput >= 0 {
			watermarkInput = 3
		}
		args = append(args, "-i", r.render.WatermarkPathOrText)
	}

	videoChain, err := r.videoFilter(in, srtPath, watermarkInput)
	if err != nil {
		return nil, err
	}
	audioChain, audioLabel := r.audioFilter(musicInput)

	filter := videoChain
	if audioChain != "" {
		filter += ";" + audioChain
	}
	args = append(args, "-filter_complex", filter)
	args = append(args, "-map", "[vout]", "-map", audioLabel)
	args = append(args,
		"-t", fmt.Sprintf("%.3f", in.Audio.Duration),
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		outputPath,
	)
	return args, nil
}

func (r *Renderer) videoFilter(in Inputs, srtPath string, watermarkInput int) (string, error) {
	stages := []string{}
	if len(in.Captions) > 0 {
		stages = append(stages, fmt.Sprintf("subtitles=%s:force_style='%s'",
			escapeFilterPath(srtPath), r.subtitleStyle()))
	}
	if r.render.WatermarkType == "text" && r.render.WatermarkPathOrText != "" {
		stages = append(stages, fmt.Sprintf(
			"drawtext=text='%s':fontsize=36:fontcolor=white@0.6:x=(w-text_w)/2:y=h-text_h-40",
			escapeDrawtext(r.render.WatermarkPathOrText)))
	}

	chain := "[0:v]"
	if len(stages) > 0 {
		chain += strings.Join(stages, ",")
	} else {
		chain += "null"
	}
	if watermarkInput >= 0 {
		chain += fmt.Sprintf("[vbase];[vbase][%d:v]overlay=W-w-24:H-h-24[vout]", watermarkInput)
	} else {
		chain += "[vout]"
	}
	return chain, nil
}

func (r *Renderer) audioFilter(musicInput int) (string, string) {
	if musicInput < 0 {
		return "", "1:a"
	}
	volume := r.render.MusicVolume
	if volume <= 0 {
		volume = 0.1
	}
	chain := fmt.Sprintf("[%d:a]volume=%.2f[music];[1:a][music]amix=inputs=2:duration=first:dropout_transition=0[aout]",
		musicInput, volume)
	return chain, "[aout]"
}

// subtitleStyle renders the caption appearance as an ASS force_style string.
func (r *Renderer) subtitleStyle() string {
	parts := []string{
		fmt.Sprintf("FontName=%s", styleOr(r.render.FontName, "Arial")),
		fmt.Sprintf("FontSize=%d", sizeOr(r.render.FontSize, 70)),
		fmt.Sprintf("PrimaryColour=%s", assColor(r.render.TextColor, "&H00FFFFFF")),
		fmt.Sprintf("OutlineColour=%s", assColor(r.render.StrokeColor, "&H00000000")),
		fmt.Sprintf("Outline=%d", sizeOr(r.render.StrokeWidth, 2)),
		"BorderStyle=1",
		fmt.Sprintf("Alignment=%d", alignmentCode(r.render.SubtitlesPosition)),
	}
	return strings.Join(parts, ",")
}

func styleOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func sizeOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// assColor converts #RRGGBB to the ASS &HAABBGGRR form. Values already in
// ASS form pass through.
func assColor(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if strings.HasPrefix(value, "&H") {
		return value
	}
	hex := strings.TrimPrefix(value, "#")
	if len(hex) != 6 {
		return fallback
	}
	return fmt.Sprintf("&H00%s%s%s",
		strings.ToUpper(hex[4:6]), strings.ToUpper(hex[2:4]), strings.ToUpper(hex[0:2]))
}

// alignmentCode maps a "horizontal,vertical" position onto the ASS numpad
// alignment scheme.
func alignmentCode(position string) int {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(position)), ",", 2)
	vertical := "center"
	if len(parts) == 2 {
		vertical = strings.TrimSpace(parts[1])
	}
	switch vertical {
	case "top":
		return 8
	case "bottom":
		return 2
	default:
		return 5
	}
}

func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, ":", `\:`, "'", `\'`)
	return replacer.Replace(path)
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "'", `\'`, ":", `\:`, "%", `\%`)
	return replacer.Replace(text)
}
