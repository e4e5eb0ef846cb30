package script

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSONContent unmarshals model output into out, tolerating markdown
// code fences and leading prose around the JSON object.
func decodeJSONContent(content string, out any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("empty content")
	}
	candidates := []string{trimmed}
	if stripped := stripCodeFence(trimmed); stripped != trimmed {
		candidates = append(candidates, stripped)
	}
	if extracted, ok := extractObject(trimmed); ok && extracted != trimmed {
		candidates = append(candidates, extracted)
	}

	var lastErr error
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("no decodable JSON object: %w", lastErr)
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractObject returns the outermost {...} span in text.
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
