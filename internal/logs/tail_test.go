package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kiln/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiln.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestReadLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.ReadLast(path, 2)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != int64(len("a\nb\nc\n")) {
		t.Fatalf("offset = %d, want file end", offset)
	}
}

func TestReadLastShortFile(t *testing.T) {
	path := writeLog(t, "only\n")

	lines, _, err := logs.ReadLast(path, 10)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestReadLastMissingFile(t *testing.T) {
	lines, offset, err := logs.ReadLast(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(lines) != 0 || offset != 0 {
		t.Fatalf("missing file should read empty at zero, got %#v at %d", lines, offset)
	}
}

func TestReadFromResumesAtOffset(t *testing.T) {
	path := writeLog(t, "first\n")

	_, offset, err := logs.ReadLast(path, 1)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}

	appendLog(t, path, "second")
	appendLog(t, path, "third")

	lines, next, err := logs.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 2 || lines[0] != "second" || lines[1] != "third" {
		t.Fatalf("unexpected lines: %#v", lines)
	}

	again, _, err := logs.ReadFrom(path, next)
	if err != nil {
		t.Fatalf("ReadFrom at end: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no new lines, got %#v", again)
	}
}

func TestReadFromClampsStaleOffset(t *testing.T) {
	path := writeLog(t, "short\n")

	lines, next, err := logs.ReadFrom(path, 1<<20)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("stale offset should clamp to end, got %#v", lines)
	}
	if next != int64(len("short\n")) {
		t.Fatalf("next = %d, want file end", next)
	}
}

func TestAwaitReturnsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")

	_, offset, err := logs.ReadLast(path, 1)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}

	done := make(chan []string, 1)
	go func() {
		lines, _, err := logs.Await(context.Background(), path, offset, 5*time.Second)
		if err != nil {
			t.Errorf("Await: %v", err)
		}
		done <- lines
	}()

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "later")

	select {
	case lines := <-done:
		if len(lines) != 1 || lines[0] != "later" {
			t.Fatalf("unexpected lines: %#v", lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Await did not return")
	}
}

func TestAwaitTimesOutQuietly(t *testing.T) {
	path := writeLog(t, "start\n")

	_, offset, err := logs.ReadLast(path, 1)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}

	lines, next, err := logs.Await(context.Background(), path, offset, 0)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected timeout without lines, got %#v", lines)
	}
	if next != offset {
		t.Fatalf("offset moved from %d to %d without new data", offset, next)
	}
}

func TestAwaitHonorsCancellation(t *testing.T) {
	path := writeLog(t, "start\n")

	_, offset, err := logs.ReadLast(path, 1)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, _, err = logs.Await(ctx, path, offset, -1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}
