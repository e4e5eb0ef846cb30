package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1080, Height: 1920},
			{CodecType: "audio", SampleRate: "44100"},
		},
		Format: Format{
			Duration: "28.4",
		},
	}
	if result.DurationSeconds() != 28.4 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	stream, ok := result.VideoStream()
	if !ok {
		t.Fatal("expected video stream")
	}
	if stream.Width != 1080 || stream.Height != 1920 {
		t.Fatalf("unexpected dimensions: %dx%d", stream.Width, stream.Height)
	}
	if result.AudioSampleRate() != 44100 {
		t.Fatalf("unexpected sample rate: %d", result.AudioSampleRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{Duration: "bad"},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected zero duration for bad input, got %v", result.DurationSeconds())
	}
	if result.AudioSampleRate() != 0 {
		t.Fatalf("expected zero sample rate, got %d", result.AudioSampleRate())
	}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
}
