package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelgen/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProvider, "synthesizing", "request", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"synthesizing", "request", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "scripting", "generate", "timed out", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRetryClassification(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "scripting", "generate", "429", nil)
	if !services.IsRetryable(transient) {
		t.Fatal("expected transient error to be retryable")
	}
	if services.IsTerminalProvider(transient) {
		t.Fatal("transient error must not be terminal")
	}

	terminal := services.Wrap(services.ErrProvider, "synthesizing", "auth", "bad key", nil)
	if services.IsRetryable(terminal) {
		t.Fatal("terminal provider error must not be retryable")
	}
	if !services.IsTerminalProvider(terminal) {
		t.Fatal("expected terminal provider classification")
	}

	if services.IsRetryable(services.Wrap(services.ErrComposition, "composing", "plan", "no candidates", nil)) {
		t.Fatal("composition errors must not be retried")
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrComposition, "composing", "plan", "zero candidates", nil)
	details := services.DetailsOf(err)
	if strings.Contains(details.Message, "composition error") {
		t.Fatalf("expected marker stripped, got %q", details.Message)
	}
	if !strings.Contains(details.Message, "zero candidates") {
		t.Fatalf("expected message retained, got %q", details.Message)
	}
}
