// Package subtitle converts a segmented script plus synthesized narration
// into timed caption cues. When the voice provider supplies word-level
// timestamps the cues follow actual speech timing; otherwise display time
// is allocated proportionally to segment character counts. Either way the
// resulting cues are ordered, non-overlapping, and cover the full audio
// duration with no gaps.
package subtitle

import (
	"strings"

	"reelgen/internal/artifact"
	"reelgen/internal/services"
)

// Options control cue shaping.
type Options struct {
	// MinDisplay is the shortest acceptable cue duration in seconds. Cues
	// shorter than this borrow time from a neighbor.
	MinDisplay float64
	// MaxDisplay is the longest acceptable cue duration in seconds. Longer
	// cues are split at a whitespace boundary.
	MaxDisplay float64
	// GapTolerance bounds inter-word silences that get folded into the
	// preceding cue. Longer silences are split between neighbors.
	GapTolerance float64
}

// DefaultOptions mirrors the pipeline configuration defaults.
func DefaultOptions() Options {
	return Options{MinDisplay: 0.5, MaxDisplay: 6.0, GapTolerance: 0.05}
}

// Report describes how alignment was performed.
type Report struct {
	// UsedFallback is true when timing came from proportional allocation
	// instead of provider word stamps.
	UsedFallback bool `json:"used_fallback"`
	// EmptyScript is true when the script had no segments and the cue
	// sequence is empty. The render proceeds without captions.
	EmptyScript bool `json:"empty_script"`
	// BorrowedCues counts cues extended to reach the minimum display time.
	BorrowedCues int `json:"borrowed_cues"`
	// SplitCues counts cues divided to respect the maximum display time.
	SplitCues int `json:"split_cues"`
}

// Align produces caption cues for the script over the narration audio.
func Align(script artifact.Script, audio artifact.Audio, opts Options) ([]artifact.CaptionSegment, Report, error) {
	if script.Empty() {
		return nil, Report{EmptyScript: true}, nil
	}
	if audio.Duration <= 0 {
		return nil, Report{}, services.Wrap(services.ErrAlignment, "aligning", "align", "non-positive audio duration", nil)
	}
	if opts.MinDisplay <= 0 || opts.MaxDisplay <= opts.MinDisplay {
		opts = DefaultOptions()
	}

	var report Report
	cues, ok := alignTimestamped(script, audio, opts)
	if !ok {
		cues = alignProportional(script, audio.Duration)
		report.UsedFallback = true
	}

	report.BorrowedCues = enforceMinDisplay(cues, opts.MinDisplay)
	cues, report.SplitCues = enforceMaxDisplay(cues, opts.MaxDisplay)
	snapCoverage(cues, audio.Duration)
	return cues, report, nil
}

// alignTimestamped derives cue windows from word stamps. Each segment
// claims words in order by cumulative character share. Returns false when
// the stamps are missing or unusable.
func alignTimestamped(script artifact.Script, audio artifact.Audio, opts Options) ([]artifact.CaptionSegment, bool) {
	words := audio.Words
	if len(words) == 0 {
		return nil, false
	}
	totalWordChars := 0
	prevEnd := 0.0
	for _, word := range words {
		if word.End < word.Start || word.Start < prevEnd-1e-9 {
			return nil, false
		}
		prevEnd = word.End
		totalWordChars += len([]rune(word.Text))
	}
	totalScriptChars := script.CharCount()
	if totalWordChars == 0 || totalScriptChars == 0 {
		return nil, false
	}

	// Window per segment: advance through words until the word character
	// share catches up with the segment character share.
	cues := make([]artifact.CaptionSegment, 0, len(script.Segments))
	wordIdx := 0
	wordCharCum := 0
	scriptCharCum := 0
	for i, seg := range script.Segments {
		scriptCharCum += len([]rune(seg.Text))
		targetChars := float64(scriptCharCum) / float64(totalScriptChars) * float64(totalWordChars)

		start := words[wordIdx].Start
		end := start
		for wordIdx < len(words) {
			word := words[wordIdx]
			wordCharCum += len([]rune(word.Text))
			end = word.End
			wordIdx++
			if float64(wordCharCum) >= targetChars-1e-9 {
				break
			}
		}
		if i == len(script.Segments)-1 {
			// Trailing words always belong to the final cue.
			if wordIdx < len(words) {
				end = words[len(words)-1].End
				wordIdx = len(words)
			}
		}
		cues = append(cues, artifact.CaptionSegment{
			Start:     start,
			End:       end,
			Text:      seg.Text,
			SegmentID: seg.ID,
		})
	}

	closeGaps(cues, opts.GapTolerance)
	return cues, true
}

// closeGaps makes consecutive cues share a boundary. Silences up to the
// tolerance extend the earlier cue; longer ones are split evenly.
func closeGaps(cues []artifact.CaptionSegment, tolerance float64) {
	for i := 1; i < len(cues); i++ {
		gap := cues[i].Start - cues[i-1].End
		if gap <= 0 {
			// Overlaps shrink the earlier cue back to the later start.
			cues[i-1].End = cues[i].Start
			continue
		}
		if gap <= tolerance {
			cues[i-1].End = cues[i].Start
			continue
		}
		mid := cues[i-1].End + gap/2
		cues[i-1].End = mid
		cues[i].Start = mid
	}
}

// alignProportional splits the audio duration across segments by
// character count.
func alignProportional(script artifact.Script, duration float64) []artifact.CaptionSegment {
	totalChars := script.CharCount()
	cues := make([]artifact.CaptionSegment, 0, len(script.Segments))
	cursor := 0.0
	charCum := 0
	for i, seg := range script.Segments {
		charCum += len([]rune(seg.Text))
		end := float64(charCum) / float64(totalChars) * duration
		if i == len(script.Segments)-1 {
			end = duration
		}
		cues = append(cues, artifact.CaptionSegment{
			Start:     cursor,
			End:       end,
			Text:      seg.Text,
			SegmentID: seg.ID,
		})
		cursor = end
	}
	return cues
}

// enforceMinDisplay lengthens cues below the floor by moving the shared
// boundary into a neighbor, never pushing that neighbor below the floor
// itself. Returns the number of adjusted cues.
func enforceMinDisplay(cues []artifact.CaptionSegment, minDisplay float64) int {
	adjusted := 0
	for i := range cues {
		dur := cues[i].End - cues[i].Start
		if dur >= minDisplay {
			continue
		}
		need := minDisplay - dur
		if i+1 < len(cues) {
			avail := (cues[i+1].End - cues[i+1].Start) - minDisplay
			if take := minFloat(need, avail); take > 0 {
				cues[i].End += take
				cues[i+1].Start += take
				need -= take
			}
		}
		if need > 1e-9 && i > 0 {
			avail := (cues[i-1].End - cues[i-1].Start) - minDisplay
			if take := minFloat(need, avail); take > 0 {
				cues[i].Start -= take
				cues[i-1].End -= take
				need -= take
			}
		}
		if cues[i].End-cues[i].Start > dur+1e-9 {
			adjusted++
		}
	}
	return adjusted
}

// enforceMaxDisplay splits cues above the ceiling at a whitespace boundary
// near the text midpoint, dividing the time window by character share.
func enforceMaxDisplay(cues []artifact.CaptionSegment, maxDisplay float64) ([]artifact.CaptionSegment, int) {
	out := make([]artifact.CaptionSegment, 0, len(cues))
	split := 0
	for _, cue := range cues {
		pieces := splitCue(cue, maxDisplay)
		if len(pieces) > 1 {
			split++
		}
		out = append(out, pieces...)
	}
	return out, split
}

func splitCue(cue artifact.CaptionSegment, maxDisplay float64) []artifact.CaptionSegment {
	if cue.End-cue.Start <= maxDisplay {
		return []artifact.CaptionSegment{cue}
	}
	head, tail, ok := splitTextAtMidpoint(cue.Text)
	if !ok {
		return []artifact.CaptionSegment{cue}
	}
	headChars := float64(len([]rune(head)))
	tailChars := float64(len([]rune(tail)))
	boundary := cue.Start + (cue.End-cue.Start)*headChars/(headChars+tailChars)

	first := artifact.CaptionSegment{Start: cue.Start, End: boundary, Text: head, SegmentID: cue.SegmentID}
	second := artifact.CaptionSegment{Start: boundary, End: cue.End, Text: tail, SegmentID: cue.SegmentID}
	out := splitCue(first, maxDisplay)
	return append(out, splitCue(second, maxDisplay)...)
}

func splitTextAtMidpoint(text string) (string, string, bool) {
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
		return "", "", false
	}
	return strings.TrimSpace(text[:split]), strings.TrimSpace(text[split:]), true
}

// snapCoverage pins the cue sequence to [0, duration].
func snapCoverage(cues []artifact.CaptionSegment, duration float64) {
	if len(cues) == 0 {
		return
	}
	cues[0].Start = 0
	cues[len(cues)-1].End = duration
	for i := 1; i < len(cues); i++ {
		if cues[i].Start != cues[i-1].End {
			cues[i].Start = cues[i-1].End
		}
		if cues[i].End < cues[i].Start {
			cues[i].End = cues[i].Start
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
