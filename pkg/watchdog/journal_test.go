package watchdog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readJournal(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestJournalAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart_log.txt")
	j := NewJournal(path)

	if err := j.Append("starting child: %s", "python3 main_app.py"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append("child crashed (exit code %d), restarting in %s", 1, 2*time.Second); err != nil {
		t.Fatalf("append: %v", err)
	}

	lines := readJournal(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if !strings.HasSuffix(lines[0], "starting child: python3 main_app.py") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "child crashed (exit code 1), restarting in 2s") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestJournalAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart_log.txt")

	j := NewJournal(path)
	if err := j.Append("first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}

	// A fresh journal on the same path must extend the file, never
	// rewrite it.
	j2 := NewJournal(path)
	if err := j2.Append("second"); err != nil {
		t.Fatalf("append: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}

	if !strings.HasPrefix(string(after), string(before)) {
		t.Errorf("existing journal content was rewritten:\nbefore: %q\nafter:  %q", before, after)
	}
	lines := readJournal(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestJournalTimestampPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart_log.txt")
	j := NewJournal(path)
	if err := j.Append("starting child: true"); err != nil {
		t.Fatalf("append: %v", err)
	}

	lines := readJournal(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if len(line) < len(journalTimeLayout)+1 {
		t.Fatalf("line too short for timestamp prefix: %q", line)
	}
	stamp := line[:len(journalTimeLayout)]
	parsed, err := time.Parse(journalTimeLayout, stamp)
	if err != nil {
		t.Fatalf("timestamp %q does not match layout: %v", stamp, err)
	}
	if d := time.Since(parsed); d < -time.Minute || d > time.Minute {
		t.Errorf("timestamp %v not close to now", parsed)
	}
	if rest := line[len(journalTimeLayout):]; rest != " starting child: true" {
		t.Errorf("unexpected message after timestamp: %q", rest)
	}
}

func TestJournalPath(t *testing.T) {
	j := NewJournal("/var/lib/elysia/restart_log.txt")
	if got := j.Path(); got != "/var/lib/elysia/restart_log.txt" {
		t.Errorf("Path() = %q", got)
	}
}
