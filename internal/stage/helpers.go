package stage

import (
	"encoding/json"

	"reelgen/internal/artifact"
	"reelgen/internal/services"
)

// ParseScript decodes the script artifact persisted on a job row. On
// failure it returns a services.ErrValidation suitable for stage Execute
// methods.
func ParseScript(raw string) (artifact.Script, error) {
	if raw == "" {
		return artifact.Script{}, services.Wrap(
			services.ErrValidation, "stage", "parse script",
			"script artifact missing; rerun script generation", nil)
	}
	var script artifact.Script
	if err := json.Unmarshal([]byte(raw), &script); err != nil {
		return artifact.Script{}, services.Wrap(
			services.ErrValidation, "stage", "parse script",
			"script artifact invalid; rerun script generation", err)
	}
	return script, nil
}

// ParseAudio decodes the narration artifact persisted on a job row.
func ParseAudio(raw string) (artifact.Audio, error) {
	if raw == "" {
		return artifact.Audio{}, services.Wrap(
			services.ErrValidation, "stage", "parse audio",
			"audio artifact missing; rerun synthesis", nil)
	}
	var audio artifact.Audio
	if err := json.Unmarshal([]byte(raw), &audio); err != nil {
		return artifact.Audio{}, services.Wrap(
			services.ErrValidation, "stage", "parse audio",
			"audio artifact invalid; rerun synthesis", err)
	}
	return audio, nil
}

// MarshalArtifact serializes a stage artifact for persistence on the job
// row.
func MarshalArtifact(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "stage", "marshal artifact", "encode", err)
	}
	return string(raw), nil
}
