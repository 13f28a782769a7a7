package watchdog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/layer5one/elysia/pkg/config"
	"github.com/layer5one/elysia/pkg/core"
)

// stopGrace is how long a SIGTERMed child gets before SIGKILL.
const stopGrace = 10 * time.Second

// EventSink receives lifecycle events. Sinks run on the supervision
// goroutine and must not block.
type EventSink func(core.Event)

// Watchdog supervises a single child process.
type Watchdog struct {
	cfg     *config.Config
	policy  core.RestartPolicy
	journal *Journal
	logger  *slog.Logger
	sinks   []EventSink

	// Stdout and Stderr receive the child's own output. They default to
	// the watchdog's stdio; the child's log file is read separately.
	Stdout io.Writer
	Stderr io.Writer

	mu            sync.Mutex
	state         core.State
	cmd           *exec.Cmd
	pid           int
	startedAt     time.Time
	starts        int
	restarts      int
	startFailures int
	lastExit      *ExitStatus
	cpuPct        float64
	memBytes      uint64
}

// New creates a watchdog for the configured child command.
func New(cfg *config.Config, logger *slog.Logger) (*Watchdog, error) {
	policy, err := core.ParseRestartPolicy(cfg.Restart)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("empty command")
	}
	return &Watchdog{
		cfg:     cfg,
		policy:  policy,
		journal: NewJournal(cfg.Journal),
		logger:  logger,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		state:   core.StateIdle,
	}, nil
}

// AddSink registers a lifecycle event callback. Register all sinks
// before calling Run.
func (w *Watchdog) AddSink(sink EventSink) {
	w.sinks = append(w.sinks, sink)
}

// Journal returns the restart log.
func (w *Watchdog) Journal() *Journal {
	return w.journal
}

// Run drives the supervision loop: journal a starting line, launch the
// child, block until it exits, then either stop (clean exit) or capture
// a snippet and relaunch after the fixed pause. It returns nil on a
// clean stop or context cancellation, and an error when supervision
// cannot continue.
func (w *Watchdog) Run(ctx context.Context) error {
	argv := strings.Fields(w.cfg.Command)
	delay := w.cfg.Delay()

	for attempt := 1; ; attempt++ {
		if err := w.journal.Append("starting child: %s", w.cfg.Command); err != nil {
			return err
		}
		w.emit(core.NewEvent(core.EventStarting, attempt, "starting child: "+w.cfg.Command))

		st := w.runOnce(ctx, argv, attempt)

		if ctx.Err() != nil {
			if err := w.journal.Append("watchdog stopping, child terminated"); err != nil {
				w.logger.Error("journal write", "err", err)
			}
			w.emit(core.NewEvent(core.EventStopping, attempt, "watchdog stopping, child terminated"))
			w.setState(core.StateStopped)
			return nil
		}

		switch {
		case st.StartErr != nil:
			w.mu.Lock()
			w.startFailures++
			w.mu.Unlock()
			w.logger.Error("child start failed", "err", st.StartErr, "attempt", attempt)
			if w.policy == core.RestartNever {
				if err := w.journal.Append("failed to start child: %v, stopping", st.StartErr); err != nil {
					return err
				}
			} else {
				if err := w.journal.Append("failed to start child: %v, retrying in %s", st.StartErr, delay); err != nil {
					return err
				}
			}
			ev := core.NewEvent(core.EventStartFailed, attempt, fmt.Sprintf("failed to start child: %v", st.StartErr))
			ev.ExitCode = st.Code
			w.emit(ev)
			if w.policy == core.RestartNever {
				w.setState(core.StateStopped)
				return fmt.Errorf("start child: %w", st.StartErr)
			}

		case st.Clean():
			w.logger.Info("child exited normally", "attempt", attempt)
			if w.policy == core.RestartAlways {
				if err := w.journal.Append("child exited normally, restarting in %s", delay); err != nil {
					return err
				}
				w.emit(core.NewEvent(core.EventCleanExit, attempt, "child exited normally, restarting"))
				break
			}
			if err := w.journal.Append("child exited normally, stopping"); err != nil {
				return err
			}
			w.emit(core.NewEvent(core.EventCleanExit, attempt, "child exited normally, stopping"))
			w.setState(core.StateStopped)
			return nil

		default:
			w.logger.Warn("child crashed", "exit_code", st.Code, "signal", st.Signal, "attempt", attempt)
			if w.policy == core.RestartNever {
				if err := w.journal.Append("child crashed (%s), stopping", st.Describe()); err != nil {
					return err
				}
			} else {
				if err := w.journal.Append("child crashed (%s), restarting in %s", st.Describe(), delay); err != nil {
					return err
				}
			}
			ev := core.NewEvent(core.EventCrashed, attempt, fmt.Sprintf("child crashed (%s)", st.Describe()))
			ev.ExitCode = st.Code
			ev.Signal = st.Signal
			w.emit(ev)

			w.captureSnippet(attempt)

			if w.policy == core.RestartNever {
				w.setState(core.StateStopped)
				return fmt.Errorf("child crashed (%s)", st.Describe())
			}
		}

		w.mu.Lock()
		w.restarts++
		w.state = core.StateRestarting
		w.mu.Unlock()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if err := w.journal.Append("watchdog stopping"); err != nil {
				w.logger.Error("journal write", "err", err)
			}
			w.emit(core.NewEvent(core.EventStopping, attempt, "watchdog stopping"))
			w.setState(core.StateStopped)
			return nil
		}
	}
}

// runOnce launches the child and blocks until it exits or ctx is
// cancelled, in which case the child's process group is terminated.
func (w *Watchdog) runOnce(ctx context.Context, argv []string, attempt int) ExitStatus {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = w.cfg.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = w.Stdout
	cmd.Stderr = w.Stderr

	// Build env
	cmd.Env = os.Environ()
	for k, v := range w.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		return ExitStatus{Code: -1, StartErr: err}
	}

	pid := cmd.Process.Pid
	w.mu.Lock()
	w.cmd = cmd
	w.pid = pid
	w.state = core.StateRunning
	w.startedAt = time.Now()
	w.starts++
	w.mu.Unlock()

	w.logger.Info("child started", "pid", pid, "command", w.cfg.Command, "attempt", attempt)
	ev := core.NewEvent(core.EventStarted, attempt, fmt.Sprintf("child running (pid %d)", pid))
	ev.PID = pid
	w.emit(ev)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-ctx.Done():
		w.terminate(cmd, done)
	}

	st := exitStatusFrom(cmd)
	w.mu.Lock()
	w.cmd = nil
	w.pid = 0
	w.lastExit = &st
	w.cpuPct = 0
	w.memBytes = 0
	w.mu.Unlock()
	return st
}

// terminate sends SIGTERM to the child's process group, escalating to
// SIGKILL after the grace period. done is the Wait result channel.
func (w *Watchdog) terminate(cmd *exec.Cmd, done <-chan error) {
	pid := cmd.Process.Pid
	w.logger.Info("terminating child", "pid", pid)
	syscall.Kill(-pid, syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(stopGrace):
		w.logger.Warn("child ignored SIGTERM, killing", "pid", pid)
		syscall.Kill(-pid, syscall.SIGKILL)
		<-done
	}
}

// captureSnippet writes the crash snippet and emits the capture event.
// Snippet problems never stop the supervision loop.
func (w *Watchdog) captureSnippet(attempt int) {
	if w.cfg.ChildLog == "" {
		w.logger.Debug("no child log configured, skipping snippet")
		return
	}
	n, err := writeSnippet(w.cfg.ChildLog, w.cfg.Snippet, w.cfg.SnippetLines)
	if err != nil {
		w.logger.Warn("snippet capture", "err", err, "path", w.cfg.Snippet)
		return
	}
	w.logger.Info("crash snippet written", "lines", n, "path", w.cfg.Snippet)
	w.emit(core.NewEvent(core.EventSnippet, attempt, fmt.Sprintf("crash snippet written (%d lines)", n)))
}

// Signal delivers sig to the running child's process group. The
// supervision loop then treats the resulting exit like any other.
func (w *Watchdog) Signal(sig syscall.Signal) error {
	w.mu.Lock()
	pid := w.pid
	w.mu.Unlock()
	if pid == 0 {
		return fmt.Errorf("child is not running")
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		return fmt.Errorf("signal child: %w", err)
	}
	return nil
}

// PID returns the running child's pid, or 0.
func (w *Watchdog) PID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pid
}

// Status returns a snapshot of the watchdog and its child.
func (w *Watchdog) Status() core.Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := core.Status{
		Name:          w.cfg.Name,
		State:         w.state,
		Policy:        w.policy,
		Command:       w.cfg.Command,
		Starts:        w.starts,
		Restarts:      w.restarts,
		StartFailures: w.startFailures,
		CPUPct:        w.cpuPct,
		MemBytes:      w.memBytes,
		JournalPath:   w.journal.Path(),
		SnippetPath:   w.cfg.Snippet,
		ChildLogPath:  w.cfg.ChildLog,
	}
	if w.pid != 0 {
		st.PID = w.pid
		st.StartedUnixMs = w.startedAt.UnixMilli()
		st.UptimeSec = uint64(time.Since(w.startedAt).Seconds())
	}
	if w.lastExit != nil {
		code := w.lastExit.Code
		st.LastExitCode = &code
		st.LastSignal = w.lastExit.Signal
	}
	return st
}

func (w *Watchdog) emit(ev core.Event) {
	for _, sink := range w.sinks {
		sink(ev)
	}
}

func (w *Watchdog) setState(s core.State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// setUsage records the latest resource sample for status reporting.
func (w *Watchdog) setUsage(cpuPct float64, memBytes uint64) {
	w.mu.Lock()
	w.cpuPct = cpuPct
	w.memBytes = memBytes
	w.mu.Unlock()
}

// Uptime returns how long the current child has been running, or 0.
func (w *Watchdog) Uptime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pid == 0 {
		return 0
	}
	return time.Since(w.startedAt)
}
