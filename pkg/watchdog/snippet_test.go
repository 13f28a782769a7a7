package watchdog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeChildLog(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write child log: %v", err)
	}
}

func snippetLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snippet: %v", err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestWriteSnippetTail(t *testing.T) {
	dir := t.TempDir()
	childLog := filepath.Join(dir, "elysia.log")
	snippet := filepath.Join(dir, "crash_snippet.txt")
	writeChildLog(t, childLog, 50)

	n, err := writeSnippet(childLog, snippet, 30)
	if err != nil {
		t.Fatalf("writeSnippet: %v", err)
	}
	if n != 30 {
		t.Errorf("expected 30 lines written, got %d", n)
	}

	lines := snippetLines(t, snippet)
	if len(lines) != 30 {
		t.Fatalf("expected 30 snippet lines, got %d", len(lines))
	}
	if lines[0] != "line 21" {
		t.Errorf("expected first line %q, got %q", "line 21", lines[0])
	}
	if lines[29] != "line 50" {
		t.Errorf("expected last line %q, got %q", "line 50", lines[29])
	}
}

func TestWriteSnippetShortLog(t *testing.T) {
	dir := t.TempDir()
	childLog := filepath.Join(dir, "elysia.log")
	snippet := filepath.Join(dir, "crash_snippet.txt")
	writeChildLog(t, childLog, 3)

	n, err := writeSnippet(childLog, snippet, 30)
	if err != nil {
		t.Fatalf("writeSnippet: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 lines written, got %d", n)
	}
	lines := snippetLines(t, snippet)
	if len(lines) != 3 || lines[0] != "line 1" || lines[2] != "line 3" {
		t.Errorf("unexpected snippet content: %v", lines)
	}
}

func TestWriteSnippetOverwrites(t *testing.T) {
	dir := t.TempDir()
	childLog := filepath.Join(dir, "elysia.log")
	snippet := filepath.Join(dir, "crash_snippet.txt")

	writeChildLog(t, childLog, 50)
	if _, err := writeSnippet(childLog, snippet, 30); err != nil {
		t.Fatalf("first writeSnippet: %v", err)
	}

	// A shorter log on the next crash must fully replace the file.
	writeChildLog(t, childLog, 2)
	n, err := writeSnippet(childLog, snippet, 30)
	if err != nil {
		t.Fatalf("second writeSnippet: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 lines written, got %d", n)
	}
	lines := snippetLines(t, snippet)
	if len(lines) != 2 {
		t.Fatalf("expected 2 snippet lines after overwrite, got %d: %v", len(lines), lines)
	}
	if lines[0] != "line 1" || lines[1] != "line 2" {
		t.Errorf("stale content survived overwrite: %v", lines)
	}
}

func TestWriteSnippetRepeatIdentical(t *testing.T) {
	dir := t.TempDir()
	childLog := filepath.Join(dir, "elysia.log")
	snippet := filepath.Join(dir, "crash_snippet.txt")
	writeChildLog(t, childLog, 10)

	if _, err := writeSnippet(childLog, snippet, 30); err != nil {
		t.Fatalf("first writeSnippet: %v", err)
	}
	first, err := os.ReadFile(snippet)
	if err != nil {
		t.Fatalf("read snippet: %v", err)
	}

	if _, err := writeSnippet(childLog, snippet, 30); err != nil {
		t.Fatalf("second writeSnippet: %v", err)
	}
	second, err := os.ReadFile(snippet)
	if err != nil {
		t.Fatalf("read snippet: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("repeated capture of unchanged log differs:\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestWriteSnippetMissingChildLog(t *testing.T) {
	dir := t.TempDir()
	snippet := filepath.Join(dir, "crash_snippet.txt")

	n, err := writeSnippet(filepath.Join(dir, "nope.log"), snippet, 30)
	if err != nil {
		t.Fatalf("missing child log should not error, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 lines written, got %d", n)
	}
	data, err := os.ReadFile(snippet)
	if err != nil {
		t.Fatalf("snippet file should exist: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty snippet, got %q", data)
	}
}

func TestWriteSnippetEmptyChildLog(t *testing.T) {
	dir := t.TempDir()
	childLog := filepath.Join(dir, "elysia.log")
	snippet := filepath.Join(dir, "crash_snippet.txt")
	if err := os.WriteFile(childLog, nil, 0o644); err != nil {
		t.Fatalf("write child log: %v", err)
	}

	n, err := writeSnippet(childLog, snippet, 30)
	if err != nil {
		t.Fatalf("empty child log should not error, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 lines written, got %d", n)
	}
	if _, err := os.Stat(snippet); err != nil {
		t.Errorf("snippet file should exist: %v", err)
	}
}
