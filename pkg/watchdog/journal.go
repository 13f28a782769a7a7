// Package watchdog supervises a single child process: launch, wait,
// journal every lifecycle transition, capture a crash snippet, and
// relaunch after a fixed pause until the child exits cleanly.
package watchdog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// journalTimeLayout is the timestamp prefix on every restart log line.
const journalTimeLayout = "2006-01-02 15:04:05"

// Journal is the append-only restart log. Each lifecycle transition is
// one timestamped free-form line. The file is opened with O_APPEND for
// every write, so existing lines are never touched and history survives
// watchdog restarts.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal creates a journal writing to path. The file is created on
// first append.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one timestamped line to the restart log.
func (j *Journal) Append(format string, args ...any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	line := time.Now().Format(journalTimeLayout) + " " + fmt.Sprintf(format, args...) + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
