package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, base string) string {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_root = %q
log_dir = %q
catalog_path = %q

[cooking]
max_concurrent_jobs = 1
pipeline_workers = 2
pipeline_queue_depth = 4
io_writers = 1
worker_pool_size = 2

[logging]
level = "info"
format = "json"
`,
		filepath.Join(base, "cooked"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "catalog", "kiln.db"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeBakefile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "assets.bake")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bakefile: %v", err)
	}
	return path
}

func findJobDir(t *testing.T, outputRoot string) string {
	t.Helper()
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		t.Fatalf("read output root: %v", err)
	}
	var jobDir string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if jobDir != "" {
			t.Fatalf("expected one job directory, found %s and %s", jobDir, e.Name())
		}
		jobDir = e.Name()
	}
	if jobDir == "" {
		t.Fatal("no job directory under output root")
	}
	return jobDir
}

func TestCLICookThenQueryFlow(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	sourcePath := filepath.Join(base, "verts.bin")
	if err := os.WriteFile(sourcePath, bytes.Repeat([]byte{0x42}, 64), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	bakePath := writeBakefile(t, base, fmt.Sprintf(`label = "smoke"

[[buffer]]
key = "hero/verts"
source = %q
usage = "vertex"

[[material]]
key = "hero/mat"
base_color = [0.5, 0.5, 0.5, 1.0]
metallic = 0.1
roughness = 0.9
`, sourcePath))

	out, _, err := runCLI(t, configPath, "cook", bakePath)
	if err != nil {
		t.Fatalf("cook: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Cooking smoke") {
		t.Fatalf("cook output missing label line: %q", out)
	}
	if !strings.Contains(out, "complete") {
		t.Fatalf("cook output missing completion: %q", out)
	}

	jobID := findJobDir(t, filepath.Join(base, "cooked"))
	jobDir := filepath.Join(base, "cooked", jobID)

	out, _, err = runCLI(t, configPath, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if !strings.Contains(out, "smoke") || !strings.Contains(out, "complete") {
		t.Fatalf("jobs output missing recorded job: %q", out)
	}

	out, _, err = runCLI(t, configPath, "show", jobID[:8])
	if err != nil {
		t.Fatalf("show by prefix: %v", err)
	}
	if !strings.Contains(out, jobID) {
		t.Fatalf("show output missing full job id: %q", out)
	}
	if !strings.Contains(out, "hero/verts") || !strings.Contains(out, "hero/mat") {
		t.Fatalf("show output missing assets: %q", out)
	}

	out, _, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Readiness") || !strings.Contains(out, "no active import service") {
		t.Fatalf("status output missing sections: %q", out)
	}
	if !strings.Contains(out, "Complete") {
		t.Fatalf("status output missing catalog summary: %q", out)
	}

	out, _, err = runCLI(t, configPath, "inspect", jobDir)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "cooked successfully") {
		t.Fatalf("inspect output missing manifest status: %q", out)
	}
	if !strings.Contains(out, "buffers.idx") || !strings.Contains(out, "hero/mat") {
		t.Fatalf("inspect output missing tables or assets: %q", out)
	}

	out, _, err = runCLI(t, configPath, "jobs", "remove", jobID[:8])
	if err != nil {
		t.Fatalf("jobs remove: %v", err)
	}
	if !strings.Contains(out, "Removed job") {
		t.Fatalf("jobs remove output missing confirmation: %q", out)
	}

	out, _, err = runCLI(t, configPath, "jobs")
	if err != nil {
		t.Fatalf("jobs after remove: %v", err)
	}
	if !strings.Contains(out, "No jobs recorded") {
		t.Fatalf("expected empty catalog after remove, got %q", out)
	}
}

func TestCLIJobsOnFreshCatalog(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	out, _, err := runCLI(t, configPath, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if !strings.Contains(out, "No jobs recorded") {
		t.Fatalf("expected empty catalog message, got %q", out)
	}
}

func TestCLIJobsRejectsUnknownStatus(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "jobs", "--status", "banana")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestCLIJobsClearOnFreshCatalog(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	out, _, err := runCLI(t, configPath, "jobs", "clear", "--status", "failed")
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	if !strings.Contains(out, "Cleared 0 jobs") {
		t.Fatalf("expected zero-clear confirmation, got %q", out)
	}
}

func TestCLIJobsRemoveUnknownJob(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "jobs", "remove", "deadbeef")
	if err == nil || !strings.Contains(err.Error(), "no job matches") {
		t.Fatalf("expected lookup failure, got %v", err)
	}
}

func TestCLIShowUnknownJob(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "show", "deadbeef")
	if err == nil || !strings.Contains(err.Error(), "no job matches") {
		t.Fatalf("expected lookup failure, got %v", err)
	}
}

func TestCLICookRejectsBadBakefile(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	bakePath := writeBakefile(t, base, `[[material]]
key = "dup"

[[material]]
key = "dup"
`)

	_, _, err := runCLI(t, configPath, "cook", bakePath)
	if err == nil || !strings.Contains(err.Error(), "load bakefile") {
		t.Fatalf("expected bakefile load error, got %v", err)
	}
}

func TestCLIStatusOnFreshInstall(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	out, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}

	out, _, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "not created yet") {
		t.Fatalf("expected missing catalog note, got %q", out)
	}
	if strings.Contains(out, "ERROR") {
		t.Fatalf("fresh install should pass readiness, got %q", out)
	}
}

func TestCLIInspectWithoutManifest(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	_, _, err := runCLI(t, configPath, "inspect", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "read manifest") {
		t.Fatalf("expected manifest read error, got %v", err)
	}
}

func TestCLILogsPrintsTrailingLines(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	logDir := filepath.Join(base, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("create log dir: %v", err)
	}
	logPath := filepath.Join(logDir, "kiln.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, configPath, "logs", "--lines", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "second") || !strings.Contains(out, "third") {
		t.Fatalf("logs output missing trailing lines: %q", out)
	}
	if strings.Contains(out, "first") {
		t.Fatalf("logs output exceeded --lines: %q", out)
	}
}

func TestCLILogsFollow(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	logDir := filepath.Join(base, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("create log dir: %v", err)
	}
	logPath := filepath.Join(logDir, "kiln.log")
	if err := os.WriteFile(logPath, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", configPath, "logs", "--follow", "--lines", "1"})
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Execute()
	}()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("followed\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()
	time.Sleep(400 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("logs --follow execute: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("logs --follow did not exit")
	}

	if !strings.Contains(stdout.String(), "followed") {
		t.Fatalf("expected follow output to include appended line, got %q", stdout.String())
	}
}

func TestCLIConfigInitAndShow(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	samplePath := filepath.Join(base, "fresh", "kiln.toml")

	out, _, err := runCLI(t, configPath, "config", "init", "--path", samplePath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(samplePath); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	_, _, err = runCLI(t, configPath, "config", "init", "--path", samplePath)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}

	if _, _, err := runCLI(t, configPath, "config", "init", "--path", samplePath, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, filepath.Join(base, "cooked")) {
		t.Fatalf("config show missing resolved output root: %q", out)
	}
}
