package watchdog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/layer5one/elysia/pkg/tail"
)

// writeSnippet overwrites the snippet file with the last limit lines of
// the child log. The write always replaces the whole file, so content
// from an earlier crash never leaks into the current one. A missing or
// empty child log yields an empty snippet; the returned error is
// diagnostic only and the snippet file is still written when possible.
func writeSnippet(childLog, snippetPath string, limit int) (int, error) {
	lines, readErr := tail.LastLines(childLog, limit)
	if os.IsNotExist(readErr) {
		// The child never got as far as logging. Capture that as-is.
		lines, readErr = nil, nil
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(snippetPath, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write snippet: %w", err)
	}
	return len(lines), readErr
}
