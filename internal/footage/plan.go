// Package footage plans and renders the background video track. Planning
// tiles downloaded clips across the target timeline deterministically;
// rendering normalizes each placement to a portrait frame and concatenates
// the results.
package footage

import (
	"fmt"

	"reelgen/internal/artifact"
	"reelgen/internal/services"
)

// Plan tiles candidates across [0, target] seconds in candidate order,
// looping back to the first candidate when the pool is exhausted and
// trimming the final placement to end exactly at target. maxClipSeconds
// caps each placement; zero disables the cap. Candidates with unknown
// durations are skipped.
func Plan(candidates []artifact.Candidate, target, maxClipSeconds float64) ([]artifact.FootageClip, error) {
	if target <= 0 {
		return nil, services.Wrap(services.ErrComposition, "composing", "plan", "non-positive target duration", nil)
	}

	usable := make([]artifact.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Duration > 0 && candidate.Path != "" {
			usable = append(usable, candidate)
		}
	}
	if len(usable) == 0 {
		return nil, services.Wrap(services.ErrComposition, "composing", "plan", "no usable candidates", nil)
	}

	var clips []artifact.FootageClip
	cursor := 0.0
	idx := 0
	for cursor < target-1e-9 {
		candidate := usable[idx%len(usable)]
		idx++

		length := candidate.Duration
		if maxClipSeconds > 0 && length > maxClipSeconds {
			length = maxClipSeconds
		}
		if remaining := target - cursor; length > remaining {
			length = remaining
		}
		clips = append(clips, artifact.FootageClip{
			Source:     candidate.Path,
			TrimStart:  0,
			TrimEnd:    length,
			PlaceStart: cursor,
			PlaceEnd:   cursor + length,
		})
		cursor += length
	}
	if err := validatePlan(clips, target); err != nil {
		return nil, err
	}
	return clips, nil
}

// validatePlan checks the tiling invariant: placements are contiguous,
// non-overlapping, and end exactly at target.
func validatePlan(clips []artifact.FootageClip, target float64) error {
	cursor := 0.0
	for i, clip := range clips {
		if clip.PlaceStart != cursor {
			return services.Wrap(services.ErrComposition, "composing", "plan",
				fmt.Sprintf("clip %d starts at %.3f, expected %.3f", i, clip.PlaceStart, cursor), nil)
		}
		if clip.TrimDuration() <= 0 {
			return services.Wrap(services.ErrComposition, "composing", "plan",
				fmt.Sprintf("clip %d has non-positive trim", i), nil)
		}
		cursor = clip.PlaceEnd
	}
	if diff := cursor - target; diff > 1e-6 || diff < -1e-6 {
		return services.Wrap(services.ErrComposition, "composing", "plan",
			fmt.Sprintf("plan covers %.3f seconds, target %.3f", cursor, target), nil)
	}
	return nil
}
