package subtitle

import (
	"fmt"
	"io"
	"os"
	"strings"

	"reelgen/internal/artifact"
	"reelgen/internal/services"
)

// WriteSRT serializes cues as SubRip text.
func WriteSRT(w io.Writer, cues []artifact.CaptionSegment) error {
	for i, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(cue.Start), srtTimestamp(cue.End), text)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteSRTFile writes cues to path, creating or truncating it.
func WriteSRTFile(path string, cues []artifact.CaptionSegment) error {
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "aligning", "write srt", "create file", err)
	}
	defer file.Close()
	if err := WriteSRT(file, cues); err != nil {
		return services.Wrap(services.ErrValidation, "aligning", "write srt", "serialize cues", err)
	}
	return file.Sync()
}

// srtTimestamp renders seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	millis %= 3600000
	m := millis / 60000
	millis %= 60000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
