package core

import "fmt"

// State represents the watchdog's view of the supervised child.
type State string

const (
	// StateIdle means no child has been launched yet.
	StateIdle State = "idle"
	// StateRunning means the child process is alive and being waited on.
	StateRunning State = "running"
	// StateRestarting means the child exited abnormally and the watchdog
	// is pausing before the next launch.
	StateRestarting State = "restarting"
	// StateStopped means the child exited cleanly and supervision ended.
	StateStopped State = "stopped"
)

// RestartPolicy defines when the watchdog relaunches the child.
type RestartPolicy string

const (
	RestartAlways    RestartPolicy = "always"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartNever     RestartPolicy = "never"
)

// ParseRestartPolicy validates a policy string from config or flags.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch RestartPolicy(s) {
	case RestartAlways, RestartOnFailure, RestartNever:
		return RestartPolicy(s), nil
	}
	return "", fmt.Errorf("invalid restart policy %q: expected always, on-failure, or never", s)
}
