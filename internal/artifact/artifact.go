// Package artifact defines the immutable data records passed between
// pipeline stages: the generated script, the synthesized narration, timed
// caption cues, the footage plan, and the final rendered video. All types
// serialize to JSON so they can be persisted in the content cache and on the
// job row.
package artifact

import (
	"fmt"
	"strings"
)

// ScriptSegment is one ordered sentence/clause unit of the generated script.
type ScriptSegment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Script is the generated narration text, segmented into ordered units.
// Immutable once produced.
type Script struct {
	Raw      string          `json:"raw"`
	Segments []ScriptSegment `json:"segments"`
}

// WordStamp is a provider-supplied word-level timestamp hint.
type WordStamp struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Audio is the synthesized narration. Words is empty when the provider does
// not supply timestamp hints.
type Audio struct {
	Path       string      `json:"path"`
	SampleRate int         `json:"sample_rate"`
	Duration   float64     `json:"duration"`
	Words      []WordStamp `json:"words,omitempty"`
}

// CaptionSegment is one timed on-screen caption cue. Sequences are ordered,
// non-overlapping, and cover [0, audio duration] with no gaps.
type CaptionSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	SegmentID string  `json:"segment_id"`
}

// Candidate is a footage search result in provider-ranked order.
type Candidate struct {
	URL      string  `json:"url"`
	Path     string  `json:"path,omitempty"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// FootageClip places a trim window of a source clip onto the output timeline.
// A plan's clips tile [0, target duration] in placement order with no gaps or
// overlaps.
type FootageClip struct {
	Source     string  `json:"source"`
	TrimStart  float64 `json:"trim_start"`
	TrimEnd    float64 `json:"trim_end"`
	PlaceStart float64 `json:"place_start"`
	PlaceEnd   float64 `json:"place_end"`
}

// TrimDuration returns the clip's contribution to the output timeline.
func (c FootageClip) TrimDuration() float64 {
	return c.TrimEnd - c.TrimStart
}

// RenderedVideo is the final muxed output.
type RenderedVideo struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// SegmentScript splits raw script text into ordered segments at sentence
// boundaries (periods and newlines), assigning stable segment IDs. Segments
// longer than maxLen characters are further split at whitespace. Identical
// raw text always yields identical segments.
func SegmentScript(raw string, maxLen int) Script {
	script := Script{Raw: raw}
	if maxLen <= 0 {
		maxLen = 100
	}

	var units []string
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '.' }) {
		unit := strings.TrimSpace(line)
		if unit == "" {
			continue
		}
		units = append(units, splitLong(unit, maxLen)...)
	}

	for i, unit := range units {
		script.Segments = append(script.Segments, ScriptSegment{
			ID:   fmt.Sprintf("seg-%d", i+1),
			Text: unit,
		})
	}
	return script
}

// splitLong breaks text exceeding maxLen at the whitespace boundary nearest
// the midpoint, recursively, so no unit exceeds maxLen unless it has no
// whitespace at all.
func splitLong(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	mid := len(text) / 2
	split := -1
	for offset := 0; offset < mid; offset++ {
		if left := mid - offset; left > 0 && text[left] == ' ' {
			split = left
			break
		}
		if right := mid + offset; right < len(text) && text[right] == ' ' {
			split = right
			break
		}
	}
	if split <= 0 {
		return []string{text}
	}
	head := strings.TrimSpace(text[:split])
	tail := strings.TrimSpace(text[split:])
	out := splitLong(head, maxLen)
	return append(out, splitLong(tail, maxLen)...)
}

// CharCount returns the total character count across script segments,
// used for proportional caption allocation.
func (s Script) CharCount() int {
	total := 0
	for _, seg := range s.Segments {
		total += len([]rune(seg.Text))
	}
	return total
}

// Empty reports whether the script produced no usable segments.
func (s Script) Empty() bool {
	return len(s.Segments) == 0
}
