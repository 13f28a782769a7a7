package core

// Status is a point-in-time snapshot of the watchdog and its child,
// served over the control socket and the HTTP API.
type Status struct {
	Name          string        `json:"name"`
	State         State         `json:"state"`
	Policy        RestartPolicy `json:"policy"`
	Command       string        `json:"command"`
	PID           int           `json:"pid,omitempty"`
	StartedUnixMs int64         `json:"started_unix_ms,omitempty"`
	UptimeSec     uint64        `json:"uptime_sec"`
	Starts        int           `json:"starts"`
	Restarts      int           `json:"restarts"`
	StartFailures int           `json:"start_failures"`
	LastExitCode  *int          `json:"last_exit_code,omitempty"`
	LastSignal    string        `json:"last_signal,omitempty"`
	CPUPct        float64       `json:"cpu_pct"`
	MemBytes      uint64        `json:"mem_bytes"`
	JournalPath   string        `json:"journal_path"`
	SnippetPath   string        `json:"snippet_path"`
	ChildLogPath  string        `json:"child_log_path,omitempty"`
}
