package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Detect builds a starter config for an assistant checkout at dir by
// probing for the application entrypoint and a virtualenv interpreter.
func Detect(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir: %w", err)
	}

	entry := "main_app.py"
	if _, err := os.Stat(filepath.Join(abs, entry)); err != nil {
		return nil, fmt.Errorf("%s does not appear to hold the assistant (no %s)", abs, entry)
	}

	python := "python3"
	for _, cand := range []string{".venv/bin/python", "venv/bin/python"} {
		if _, err := os.Stat(filepath.Join(abs, cand)); err == nil {
			python = filepath.Join(abs, cand)
			break
		}
	}

	c := &Config{
		Version:      1,
		Name:         filepath.Base(abs),
		Command:      python + " " + entry,
		Dir:          abs,
		Restart:      "on-failure",
		Journal:      filepath.Join(abs, DefaultJournal),
		Snippet:      filepath.Join(abs, DefaultSnippet),
		SnippetLines: DefaultSnippetLines,
		RestartDelay: Duration(DefaultRestartDelay),
	}

	// The assistant appends its own runtime log next to the entrypoint.
	c.ChildLog = filepath.Join(abs, "elysia.log")

	return c, nil
}
