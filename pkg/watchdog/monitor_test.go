package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/layer5one/elysia/pkg/config"
	"github.com/layer5one/elysia/pkg/core"
	"github.com/layer5one/elysia/pkg/transport/uds"
)

// startMonitor wires a watchdog, monitor, and socket server together
// and returns them with a connected client. The watchdog is not
// running; tests that need a live child start Run themselves.
func startMonitor(t *testing.T, cfg *config.Config) (*Watchdog, *Monitor, *uds.Client) {
	t.Helper()

	w, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sock := filepath.Join(t.TempDir(), "elysiad.sock")
	srv := uds.NewServer(sock, testLogger())
	m := NewMonitor(w, srv, NewMetrics(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(srv.Shutdown)
	t.Cleanup(cancel)
	go srv.Start(ctx)

	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, "socket to appear")

	client, err := uds.Dial(sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return w, m, client
}

func reqCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMonitorPing(t *testing.T) {
	dir := t.TempDir()
	_, _, client := startMonitor(t, testConfig(dir, "true"))

	if err := client.Ping(reqCtx(t)); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMonitorStatusOverSocket(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, "true")
	_, _, client := startMonitor(t, cfg)

	resp, err := client.Request(reqCtx(t), uds.MethodStatus, nil)
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	var st core.Status
	if err := resp.UnmarshalData(&st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.Name != "elysia" {
		t.Errorf("expected name elysia, got %q", st.Name)
	}
	if st.State != core.StateIdle {
		t.Errorf("expected state %s, got %s", core.StateIdle, st.State)
	}
	if st.JournalPath != cfg.Journal {
		t.Errorf("expected journal path %q, got %q", cfg.Journal, st.JournalPath)
	}
}

func TestMonitorEventsTail(t *testing.T) {
	dir := t.TempDir()
	_, m, client := startMonitor(t, testConfig(dir, "true"))

	for i := 1; i <= 5; i++ {
		m.onEvent(core.NewEvent(core.EventStarting, i, "starting child"))
	}

	resp, err := client.Request(reqCtx(t), uds.MethodEvents, nil)
	if err != nil {
		t.Fatalf("events request: %v", err)
	}
	var all []core.Event
	if err := resp.UnmarshalData(&all); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}

	resp, err = client.Request(reqCtx(t), uds.MethodEvents, uds.TailRequest{Limit: 2})
	if err != nil {
		t.Fatalf("events request: %v", err)
	}
	var tail []core.Event
	if err := resp.UnmarshalData(&tail); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 events, got %d", len(tail))
	}
	if tail[0].Attempt != 4 || tail[1].Attempt != 5 {
		t.Errorf("expected the newest two events, got attempts %d and %d",
			tail[0].Attempt, tail[1].Attempt)
	}
}

func TestMonitorLogsTail(t *testing.T) {
	dir := t.TempDir()
	_, m, client := startMonitor(t, testConfig(dir, "true"))

	ch := make(chan core.LogLine, 3)
	ch <- core.LogLine{TsUnixMs: 1, Line: "one"}
	ch <- core.LogLine{TsUnixMs: 2, Line: "two"}
	ch <- core.LogLine{TsUnixMs: 3, Line: "three"}
	close(ch)
	m.PumpLines(context.Background(), ch)

	if lines := m.Lines(0); len(lines) != 3 {
		t.Fatalf("expected 3 ringed lines, got %d", len(lines))
	}

	resp, err := client.Request(reqCtx(t), uds.MethodLogs, uds.TailRequest{Limit: 2})
	if err != nil {
		t.Fatalf("logs request: %v", err)
	}
	var tail []core.LogLine
	if err := resp.UnmarshalData(&tail); err != nil {
		t.Fatalf("unmarshal logs: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(tail))
	}
	if tail[0].Line != "two" || tail[1].Line != "three" {
		t.Errorf("expected the newest two lines, got %q and %q", tail[0].Line, tail[1].Line)
	}
}

func TestMonitorEventBroadcast(t *testing.T) {
	dir := t.TempDir()
	_, m, client := startMonitor(t, testConfig(dir, "true"))

	got := make(chan uds.Message, 1)
	client.OnEvent(func(msg uds.Message) {
		select {
		case got <- msg:
		default:
		}
	})

	m.onEvent(core.NewEvent(core.EventCrashed, 2, "child crashed (exit code 1)"))

	select {
	case msg := <-got:
		if msg.Method != uds.EventChildState {
			t.Errorf("expected method %s, got %s", uds.EventChildState, msg.Method)
		}
		var ev core.Event
		if err := msg.UnmarshalData(&ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type != core.EventCrashed || ev.Attempt != 2 {
			t.Errorf("unexpected event payload: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event broadcast received")
	}
}

func TestMonitorActionUnknown(t *testing.T) {
	dir := t.TempDir()
	_, _, client := startMonitor(t, testConfig(dir, "true"))

	_, err := client.Request(reqCtx(t), uds.MethodAction, uds.ActionRequest{Action: "flail"})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if !strings.Contains(err.Error(), `unknown action "flail"`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMonitorActionChildNotRunning(t *testing.T) {
	dir := t.TempDir()
	_, _, client := startMonitor(t, testConfig(dir, "true"))

	_, err := client.Request(reqCtx(t), uds.MethodAction, uds.ActionRequest{Action: "restart"})
	if err == nil {
		t.Fatal("expected error when no child is running")
	}
	if !strings.Contains(err.Error(), "child is not running") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMonitorActionRestartSignalsChild(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, writeScript(t, dir, "sleep 60\n"))
	w, _, client := startMonitor(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return w.PID() != 0 }, "child to start")

	resp, err := client.Request(reqCtx(t), uds.MethodAction, uds.ActionRequest{Action: "restart"})
	if err != nil {
		t.Fatalf("restart action: %v", err)
	}
	var ack map[string]bool
	if err := resp.UnmarshalData(&ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if !ack["ok"] {
		t.Errorf("expected ok ack, got %v", ack)
	}

	// The SIGTERMed child counts as a signal death and takes the
	// restart path.
	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(journalText(cfg.Journal), "signal: terminated")
	}, "signal death to be journaled")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
