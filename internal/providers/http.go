package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"reelgen/internal/services"
)

// ClassifyStatus maps HTTP status codes onto the shared retry taxonomy.
// Rate limits, timeouts, and server errors are retryable; auth failures
// and malformed requests are terminal.
func ClassifyStatus(stage, op string, status int, body []byte) error {
	snippet := SummarizeBody(body)
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stage, op, fmt.Sprintf("http %d: %s", status, snippet), nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrProvider, stage, op, fmt.Sprintf("http %d: %s", status, snippet), nil)
	case status == http.StatusBadRequest:
		return services.Wrap(services.ErrValidation, stage, op, fmt.Sprintf("http %d: %s", status, snippet), nil)
	default:
		return services.Wrap(services.ErrProvider, stage, op, fmt.Sprintf("http %d: %s", status, snippet), nil)
	}
}

// ClassifyTransportError wraps request-level failures. Context
// cancellation passes through untouched so callers can distinguish
// shutdown from provider trouble.
func ClassifyTransportError(stage, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return services.Wrap(services.ErrTransient, stage, op, "network failure", err)
	}
	return services.Wrap(services.ErrTransient, stage, op, "request failed", err)
}

// SummarizeBody trims a response body for inclusion in error messages.
func SummarizeBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
