package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"reelgen/internal/config"
)

// Fingerprint computes the stable cache key for a stage invocation. Inputs
// are canonicalized through JSON encoding (struct fields in declaration
// order, map keys sorted), so identical inputs always hash identically.
func Fingerprint(stage string, inputs any) (string, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("fingerprint inputs: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00v%d\x00", stage, config.ConfigVersion)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
