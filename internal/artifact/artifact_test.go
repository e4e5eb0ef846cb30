package artifact_test

import (
	"testing"

	"reelgen/internal/artifact"
)

func TestSegmentScriptSplitsAtSentences(t *testing.T) {
	script := artifact.SegmentScript("First sentence. Second one.\nThird line", 100)
	if len(script.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(script.Segments))
	}
	if script.Segments[0].ID != "seg-1" || script.Segments[2].ID != "seg-3" {
		t.Fatalf("unexpected segment ids: %+v", script.Segments)
	}
	if script.Segments[1].Text != "Second one" {
		t.Fatalf("unexpected second segment: %q", script.Segments[1].Text)
	}
}

func TestSegmentScriptDeterministic(t *testing.T) {
	raw := "One. Two. Three."
	a := artifact.SegmentScript(raw, 100)
	b := artifact.SegmentScript(raw, 100)
	if len(a.Segments) != len(b.Segments) {
		t.Fatalf("segment counts differ: %d vs %d", len(a.Segments), len(b.Segments))
	}
	for i := range a.Segments {
		if a.Segments[i] != b.Segments[i] {
			t.Fatalf("segment %d differs: %+v vs %+v", i, a.Segments[i], b.Segments[i])
		}
	}
}

func TestSegmentScriptSplitsLongUnits(t *testing.T) {
	long := "word one two three four five six seven eight nine ten eleven twelve"
	script := artifact.SegmentScript(long, 20)
	if len(script.Segments) < 2 {
		t.Fatalf("expected long unit to be split, got %d segments", len(script.Segments))
	}
	for _, seg := range script.Segments {
		if len(seg.Text) > 20 {
			t.Fatalf("segment exceeds max length: %q", seg.Text)
		}
	}
}

func TestSegmentScriptEmpty(t *testing.T) {
	script := artifact.SegmentScript("   \n  ", 100)
	if !script.Empty() {
		t.Fatalf("expected empty script, got %+v", script.Segments)
	}
	if script.CharCount() != 0 {
		t.Fatalf("expected zero char count, got %d", script.CharCount())
	}
}
