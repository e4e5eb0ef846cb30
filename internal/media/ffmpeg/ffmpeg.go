// Package ffmpeg wraps ffmpeg invocations behind a Runner so stages can be
// tested against stubs.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an ffmpeg command with the provided arguments.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// CommandRunner shells out to a real ffmpeg binary.
type CommandRunner struct {
	Binary string
}

// NewCommandRunner returns a runner for the configured binary.
func NewCommandRunner(binary string) *CommandRunner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &CommandRunner{Binary: binary}
}

// Run executes ffmpeg with -hide_banner and the given arguments. On failure
// the error carries the tail of stderr, which is where ffmpeg reports the
// actual problem.
func (r *CommandRunner) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-y"}, args...)
	cmd := exec.CommandContext(ctx, r.Binary, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", r.Binary, err, stderrTail(stderr.String()))
	}
	return nil
}

func stderrTail(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
