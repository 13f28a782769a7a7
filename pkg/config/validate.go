package config

import (
	"fmt"
	"time"

	"github.com/layer5one/elysia/pkg/core"
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if c.Command == "" {
		errs = append(errs, fmt.Errorf("command is required"))
	}

	if c.Restart != "" {
		if _, err := core.ParseRestartPolicy(c.Restart); err != nil {
			errs = append(errs, err)
		}
	}

	if c.SnippetLines < 1 {
		errs = append(errs, fmt.Errorf("snippet_lines must be at least 1, got %d", c.SnippetLines))
	}

	if c.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("restart_delay must not be negative, got %s", c.RestartDelay))
	}

	return errs
}

// String makes Duration readable in validation messages.
func (d Duration) String() string {
	return time.Duration(d).String()
}
