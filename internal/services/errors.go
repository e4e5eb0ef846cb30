package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks provider failures that are worth retrying: rate
	// limits, timeouts, 5xx responses, temporary network errors.
	ErrTransient = errors.New("transient failure")
	// ErrProvider marks terminal provider failures such as rejected
	// credentials or content policy refusals.
	ErrProvider = errors.New("provider error")
	// ErrAlignment marks script/audio combinations the caption aligner
	// cannot time, such as narration with no usable duration.
	ErrAlignment = errors.New("alignment error")
	// ErrComposition marks unrecoverable footage composition failures, such
	// as an empty candidate pool or a non-positive target duration.
	ErrComposition = errors.New("composition error")
	// ErrCache marks cache storage failures. Always recoverable: treat as a
	// miss and recompute.
	ErrCache = errors.New("cache error")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the workflow should retry the failed operation
// with backoff instead of failing the job.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsTerminalProvider reports whether a provider failure should abort the job
// immediately without consuming retry budget.
func IsTerminalProvider(err error) bool {
	return errors.Is(err, ErrProvider) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Details extracts the human-readable portion of a wrapped stage error,
// stripping the leading sentinel prefix when present.
type ErrorDetails struct {
	Message string
}

// DetailsOf returns the display message for a stage error.
func DetailsOf(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrTransient, ErrProvider, ErrAlignment, ErrComposition,
		ErrCache, ErrValidation, ErrConfiguration, ErrNotFound,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return ErrorDetails{Message: msg}
}
