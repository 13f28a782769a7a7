// Package config loads and validates the elysia.yaml watchdog configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "elysia.yaml"

const (
	DefaultJournal      = "restart_log.txt"
	DefaultSnippet      = "crash_snippet.txt"
	DefaultSnippetLines = 30
	DefaultRestartDelay = 2 * time.Second
)

// Config represents an elysia.yaml configuration file.
type Config struct {
	Version      int               `yaml:"version"                 json:"version"`
	Name         string            `yaml:"name,omitempty"          json:"name,omitempty"`
	Command      string            `yaml:"command"                 json:"command"`
	Dir          string            `yaml:"dir,omitempty"           json:"dir,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"           json:"env,omitempty"`
	Restart      string            `yaml:"restart,omitempty"       json:"restart,omitempty"` // always|on-failure|never
	ChildLog     string            `yaml:"child_log,omitempty"     json:"child_log,omitempty"`
	Journal      string            `yaml:"journal,omitempty"       json:"journal,omitempty"`
	Snippet      string            `yaml:"snippet,omitempty"       json:"snippet,omitempty"`
	SnippetLines int               `yaml:"snippet_lines,omitempty" json:"snippet_lines,omitempty"`
	RestartDelay Duration          `yaml:"restart_delay,omitempty" json:"restart_delay,omitempty"`
	Socket       string            `yaml:"socket,omitempty"        json:"socket,omitempty"`
	HTTPAddr     string            `yaml:"http_addr,omitempty"     json:"http_addr,omitempty"`
}

// Duration is a time.Duration that marshals as a human scalar like "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads and parses a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Parse unmarshals config data, fills defaults, and interpolates ${dir}.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.Normalize()
	return &c, nil
}

// Save writes the config to disk as YAML.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize fills defaults, expands ${dir}, and anchors relative artifact
// paths under dir. Safe to call on configs assembled from flags.
func (c *Config) Normalize() {
	if c.Name == "" {
		c.Name = "elysia"
	}
	if c.Restart == "" {
		c.Restart = "on-failure"
	}
	if c.Journal == "" {
		c.Journal = DefaultJournal
	}
	if c.Snippet == "" {
		c.Snippet = DefaultSnippet
	}
	if c.SnippetLines == 0 {
		c.SnippetLines = DefaultSnippetLines
	}
	if c.RestartDelay == 0 {
		c.RestartDelay = Duration(DefaultRestartDelay)
	}

	interp := func(s string) string {
		return strings.ReplaceAll(s, "${dir}", c.Dir)
	}
	c.ChildLog = interp(c.ChildLog)
	c.Journal = interp(c.Journal)
	c.Snippet = interp(c.Snippet)
	c.Socket = interp(c.Socket)
	for k, v := range c.Env {
		c.Env[k] = interp(v)
	}

	// Artifact paths follow the child's working directory so that a bare
	// "restart_log.txt" lands next to the supervised app.
	if c.Dir != "" {
		anchor := func(p string) string {
			if p == "" || filepath.IsAbs(p) {
				return p
			}
			return filepath.Join(c.Dir, p)
		}
		c.ChildLog = anchor(c.ChildLog)
		c.Journal = anchor(c.Journal)
		c.Snippet = anchor(c.Snippet)
	}
}

// Delay returns the restart pause as a time.Duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.RestartDelay)
}
