// Package providers defines the uniform adapter contracts the orchestrator
// uses to reach external capabilities: script generation, narration
// synthesis, and stock footage search. Adapters classify their failures
// through the services error markers (transient versus terminal) and never
// leak transport details to the workflow. Concrete clients live in the
// script, tts, and pexels subpackages.
package providers

import (
	"context"
	"time"

	"reelgen/internal/artifact"
)

// ScriptGenerator produces narration text for a prompt.
type ScriptGenerator interface {
	// Generate returns a segmented script sized for the target duration.
	Generate(ctx context.Context, prompt string, targetDuration time.Duration) (artifact.Script, error)
	// SearchTerms extracts up to max footage search keywords for the prompt.
	SearchTerms(ctx context.Context, prompt string, max int) ([]string, error)
}

// VoiceSynthesizer converts a script into narration audio. The audio file is
// written under destDir; word timestamps are included when the provider
// supplies them.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, script artifact.Script, destDir string) (artifact.Audio, error)
}

// FootageProvider searches for background clips relevant to the keywords.
// Results are provider-ranked; Download materializes a candidate locally and
// returns it with the probed duration and dimensions, since the provider's
// declared metadata may not match the delivered file.
type FootageProvider interface {
	Search(ctx context.Context, keywords []string, minDuration float64) ([]artifact.Candidate, error)
	Download(ctx context.Context, candidate artifact.Candidate, destDir string) (artifact.Candidate, error)
}
