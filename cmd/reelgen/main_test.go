package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a config file rooted in the test temp dir and
// returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
work_dir = %q
cache_dir = %q
output_dir = %q
log_dir = %q

[llm]
api_key = "test"

[voice]
api_key = "test"

[footage]
api_key = "test"
`,
		filepath.Join(base, "work"),
		filepath.Join(base, "cache"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}

	cfgPath := writeTestConfig(t)
	out, err = runCLI(t, "", "config", "validate", "--path", cfgPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "is valid")
}

func TestQueueStatusEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCLI(t, cfgPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestGenerateAsyncQueuesJob(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCLI(t, cfgPath, "generate", "--async", "a", "calm", "ocean")
	if err != nil {
		t.Fatalf("generate --async: %v", err)
	}
	requireContains(t, out, "Queued job 1")

	out, err = runCLI(t, cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "a calm ocean")
	requireContains(t, out, "pending")

	// Same prompt and settings dedupe against the queued job.
	out, err = runCLI(t, cfgPath, "generate", "--async", "a", "calm", "ocean")
	if err != nil {
		t.Fatalf("dedupe generate: %v", err)
	}
	requireContains(t, out, "already queued as job 1")
}

func TestQueueListFiltersUnknownStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCLI(t, cfgPath, "queue", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCLI(t, cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, name := range []string{"scripting", "synthesizing", "composing", "rendering"} {
		requireContains(t, out, name)
	}
	requireContains(t, out, "ready")
}

func TestCacheStats(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCLI(t, cfgPath, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Entries")
}
