package core

// LogLine represents a single line read from the child's log file.
type LogLine struct {
	TsUnixMs int64  `json:"ts_unix_ms"`
	Line     string `json:"line"`
}
