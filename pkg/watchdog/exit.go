package watchdog

import (
	"fmt"
	"os/exec"
	"syscall"
)

// ExitStatus describes how a child run ended. Any status that is not a
// clean exit code 0 takes the restart path; the extra detail only
// feeds journal lines and the event history.
type ExitStatus struct {
	Code     int    // -1 when signaled or never started
	Signal   string // signal name when the child died on one
	StartErr error  // set when the process could not be spawned at all
}

// Clean reports whether the child exited normally.
func (e ExitStatus) Clean() bool {
	return e.StartErr == nil && e.Code == 0
}

// Describe renders the status for journal lines and events.
func (e ExitStatus) Describe() string {
	switch {
	case e.StartErr != nil:
		return fmt.Sprintf("failed to start: %v", e.StartErr)
	case e.Signal != "":
		return fmt.Sprintf("exit code %d, signal: %s", e.Code, e.Signal)
	default:
		return fmt.Sprintf("exit code %d", e.Code)
	}
}

// exitStatusFrom inspects a finished exec.Cmd.
func exitStatusFrom(cmd *exec.Cmd) ExitStatus {
	st := ExitStatus{Code: -1}
	ps := cmd.ProcessState
	if ps == nil {
		return st
	}
	st.Code = ps.ExitCode()
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		st.Signal = ws.Signal().String()
	}
	return st
}
