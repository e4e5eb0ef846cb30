package stage

import (
	"testing"
)

func TestParseScript_Valid(t *testing.T) {
	raw := `{"raw":"hello there","segments":[{"id":"seg-1","text":"hello there"}]}`
	script, err := ParseScript(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Segments) != 1 || script.Segments[0].ID != "seg-1" {
		t.Fatalf("unexpected script: %+v", script)
	}
}

func TestParseScript_Missing(t *testing.T) {
	if _, err := ParseScript(""); err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestParseScript_Invalid(t *testing.T) {
	if _, err := ParseScript("{invalid json"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseAudio_Valid(t *testing.T) {
	raw := `{"path":"/tmp/narration.mp3","sample_rate":44100,"duration":12.5}`
	audio, err := ParseAudio(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio.Duration != 12.5 {
		t.Fatalf("unexpected audio: %+v", audio)
	}
}

func TestParseAudio_Missing(t *testing.T) {
	if _, err := ParseAudio(""); err == nil {
		t.Fatal("expected error for missing audio")
	}
}
