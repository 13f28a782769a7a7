package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/layer5one/elysia/pkg/core"
	"github.com/layer5one/elysia/pkg/transport/uds"
)

const (
	eventRingSize = 256
	lineRingSize  = 500
)

// Monitor exposes the watchdog over the control socket: status queries,
// event and log history, child actions, and pushed updates for watchers.
type Monitor struct {
	w       *Watchdog
	server  *uds.Server
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	events []core.Event
	lines  []core.LogLine
}

// NewMonitor wires the watchdog to a control socket server. metrics may
// be nil. The monitor registers itself as an event sink, so construct
// it before calling Watchdog.Run.
func NewMonitor(w *Watchdog, server *uds.Server, metrics *Metrics, logger *slog.Logger) *Monitor {
	m := &Monitor{
		w:       w,
		server:  server,
		metrics: metrics,
		logger:  logger,
	}
	m.registerHandlers()
	w.AddSink(m.onEvent)
	return m
}

func (m *Monitor) registerHandlers() {
	m.server.Handle(uds.MethodPing, m.handlePing)
	m.server.Handle(uds.MethodStatus, m.handleStatus)
	m.server.Handle(uds.MethodEvents, m.handleEvents)
	m.server.Handle(uds.MethodLogs, m.handleLogs)
	m.server.Handle(uds.MethodAction, m.handleAction)
}

// onEvent records history, updates metrics, and pushes to subscribers.
func (m *Monitor) onEvent(ev core.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	if len(m.events) > eventRingSize {
		m.events = m.events[len(m.events)-eventRingSize:]
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Observe(ev)
	}
	if msg, err := uds.NewEvent(uds.EventChildState, ev); err == nil {
		m.server.Broadcast(msg)
	}
}

// PumpLines forwards child log lines into the ring and to subscribers.
// Blocks until ctx is done or ch is closed.
func (m *Monitor) PumpLines(ctx context.Context, ch <-chan core.LogLine) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			m.mu.Lock()
			m.lines = append(m.lines, line)
			if len(m.lines) > lineRingSize {
				m.lines = m.lines[len(m.lines)-lineRingSize:]
			}
			m.mu.Unlock()

			if msg, err := uds.NewEvent(uds.EventLogLine, line); err == nil {
				m.server.Broadcast(msg)
			}
		}
	}
}

// Events returns up to limit recent lifecycle events, oldest first.
// limit <= 0 returns the full retained window.
func (m *Monitor) Events(limit int) []core.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	out := make([]core.Event, len(evs))
	copy(out, evs)
	return out
}

// Lines returns up to limit recent child log lines, oldest first.
func (m *Monitor) Lines(limit int) []core.LogLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.lines
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	out := make([]core.LogLine, len(lines))
	copy(out, lines)
	return out
}

// Status returns the watchdog's current snapshot.
func (m *Monitor) Status() core.Status {
	return m.w.Status()
}

func (m *Monitor) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true}, nil
}

func (m *Monitor) handleStatus(_ context.Context, _ uds.Message) (any, error) {
	return m.w.Status(), nil
}

func (m *Monitor) handleEvents(_ context.Context, msg uds.Message) (any, error) {
	var req uds.TailRequest
	if len(msg.Data) > 0 {
		if err := msg.UnmarshalData(&req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
	}
	return m.Events(req.Limit), nil
}

func (m *Monitor) handleLogs(_ context.Context, msg uds.Message) (any, error) {
	var req uds.TailRequest
	if len(msg.Data) > 0 {
		if err := msg.UnmarshalData(&req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
	}
	return m.Lines(req.Limit), nil
}

func (m *Monitor) handleAction(_ context.Context, msg uds.Message) (any, error) {
	var req uds.ActionRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	var sig syscall.Signal
	switch req.Action {
	case "restart":
		sig = syscall.SIGTERM
	case "kill":
		sig = syscall.SIGKILL
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}

	if err := m.w.Signal(sig); err != nil {
		return nil, err
	}
	m.logger.Info("child action", "action", req.Action)
	return map[string]bool{"ok": true}, nil
}
