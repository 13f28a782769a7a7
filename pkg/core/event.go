package core

import "time"

// EventType identifies a lifecycle transition of the supervised child.
type EventType string

const (
	// EventStarting is emitted immediately before a launch attempt.
	EventStarting EventType = "starting"
	// EventStarted is emitted once the child process is running.
	EventStarted EventType = "started"
	// EventStartFailed is emitted when the child could not be spawned at all.
	EventStartFailed EventType = "start_failed"
	// EventCrashed is emitted when the child exits with a nonzero status.
	EventCrashed EventType = "crashed"
	// EventCleanExit is emitted when the child exits with status zero.
	EventCleanExit EventType = "clean_exit"
	// EventSnippet is emitted after the crash snippet file has been written.
	EventSnippet EventType = "snippet"
	// EventStopping is emitted when the watchdog itself is shutting down.
	EventStopping EventType = "stopping"
)

// Event is a single entry in the child's lifecycle history.
type Event struct {
	Type     EventType `json:"type"`
	TsUnixMs int64     `json:"ts_unix_ms"`
	Attempt  int       `json:"attempt"`
	PID      int       `json:"pid,omitempty"`
	ExitCode int       `json:"exit_code,omitempty"`
	Signal   string    `json:"signal,omitempty"`
	Message  string    `json:"message"`
}

// NewEvent stamps an event with the current wall clock.
func NewEvent(typ EventType, attempt int, message string) Event {
	return Event{
		Type:     typ,
		TsUnixMs: time.Now().UnixMilli(),
		Attempt:  attempt,
		Message:  message,
	}
}

// Time converts the millisecond timestamp back to a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.TsUnixMs)
}
