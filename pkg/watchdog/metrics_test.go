package watchdog

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/layer5one/elysia/pkg/core"
)

func TestMetricsObserveLifecycle(t *testing.T) {
	m := NewMetrics()

	// First launch crashes once, then a relaunch exits cleanly.
	m.Observe(core.NewEvent(core.EventStarting, 1, "starting child"))
	m.Observe(core.NewEvent(core.EventStarted, 1, "child running"))
	crash := core.NewEvent(core.EventCrashed, 1, "child crashed")
	crash.ExitCode = 7
	m.Observe(crash)
	m.Observe(core.NewEvent(core.EventSnippet, 1, "crash snippet written"))
	m.Observe(core.NewEvent(core.EventStarting, 2, "starting child"))
	m.Observe(core.NewEvent(core.EventStarted, 2, "child running"))
	m.Observe(core.NewEvent(core.EventCleanExit, 2, "child exited normally"))

	if got := testutil.ToFloat64(m.childStarts); got != 2 {
		t.Errorf("child starts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.restarts); got != 1 {
		t.Errorf("restarts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.crashes); got != 1 {
		t.Errorf("crashes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.snippetCaptures); got != 1 {
		t.Errorf("snippet captures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.childUp); got != 0 {
		t.Errorf("child up = %v, want 0 after clean exit", got)
	}
	if got := testutil.ToFloat64(m.lastExitCode); got != 0 {
		t.Errorf("last exit code = %v, want 0 after clean exit", got)
	}
}

func TestMetricsCrashRecordsExitCode(t *testing.T) {
	m := NewMetrics()
	m.Observe(core.NewEvent(core.EventStarted, 1, "child running"))

	crash := core.NewEvent(core.EventCrashed, 1, "child crashed")
	crash.ExitCode = 137
	m.Observe(crash)

	if got := testutil.ToFloat64(m.lastExitCode); got != 137 {
		t.Errorf("last exit code = %v, want 137", got)
	}
	if got := testutil.ToFloat64(m.childUp); got != 0 {
		t.Errorf("child up = %v, want 0 after crash", got)
	}
}

func TestMetricsStartFailure(t *testing.T) {
	m := NewMetrics()
	m.Observe(core.NewEvent(core.EventStartFailed, 1, "failed to start child"))

	if got := testutil.ToFloat64(m.startFailures); got != 1 {
		t.Errorf("start failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.childUp); got != 0 {
		t.Errorf("child up = %v, want 0", got)
	}
}

func TestMetricsFirstStartingIsNotRestart(t *testing.T) {
	m := NewMetrics()
	m.Observe(core.NewEvent(core.EventStarting, 1, "starting child"))

	if got := testutil.ToFloat64(m.restarts); got != 0 {
		t.Errorf("restarts = %v, want 0 for the first launch", got)
	}
}

func TestMetricsSetChildUsage(t *testing.T) {
	m := NewMetrics()
	m.SetChildUsage(12.5, 2048, 3*time.Second)

	if got := testutil.ToFloat64(m.childCPU); got != 12.5 {
		t.Errorf("child cpu = %v, want 12.5", got)
	}
	if got := testutil.ToFloat64(m.childMem); got != 2048 {
		t.Errorf("child mem = %v, want 2048", got)
	}
	if got := testutil.ToFloat64(m.childUptime); got != 3 {
		t.Errorf("child uptime = %v, want 3", got)
	}
}
