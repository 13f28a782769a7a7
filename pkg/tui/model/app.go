package model

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/layer5one/elysia/pkg/core"
	"github.com/layer5one/elysia/pkg/transport/uds"
)

// Pane identifies which TUI pane is focused.
type Pane int

const (
	PaneStatus Pane = iota
	PaneEvents
	PaneLogs
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeConfirmKill
)

const (
	eventWindow = 256
	logWindow   = 500
)

// App is the root Bubble Tea model for the watch view.
type App struct {
	// Connection
	client     *uds.Client
	socketPath string
	connected  bool

	// State
	status    core.Status
	events    []core.Event
	eventIdx  int
	logLines  []core.LogLine
	logPaused bool

	// UI
	activePane Pane
	mode       Mode
	filter     textinput.Model
	spin       spinner.Model
	width      int
	height     int

	// Server pushes land here; a command re-arms the receive after
	// every delivery.
	push chan tea.Msg

	statusMsg string
}

// New creates a new TUI app model.
func New(socketPath string) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	return App{
		socketPath: socketPath,
		filter:     newFilterInput(),
		spin:       sp,
		activePane: PaneStatus,
		mode:       ModeNormal,
		eventIdx:   -1,
		push:       make(chan tea.Msg, 256),
	}
}

// Init connects to the watchdog.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath, a.push),
		a.spin.Tick,
		tea.SetWindowTitle("elysiad"),
	)
}

// tickMsg triggers periodic status refresh.
type tickMsg time.Time

// connectedMsg indicates successful watchdog connection.
type connectedMsg struct{ client *uds.Client }

// statusResultMsg carries a status snapshot from the watchdog.
type statusResultMsg struct{ status core.Status }

// eventsMsg carries the event history backfill.
type eventsMsg struct{ events []core.Event }

// logsMsg carries the log line backfill.
type logsMsg struct{ lines []core.LogLine }

// childEventMsg carries a pushed lifecycle event.
type childEventMsg core.Event

// logLineMsg carries a pushed child log line.
type logLineMsg core.LogLine

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// actionResultMsg carries the result of an action.
type actionResultMsg struct{ msg string }

func connectCmd(socketPath string, push chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}
		client.OnEvent(func(m uds.Message) {
			var msg tea.Msg
			switch m.Method {
			case uds.EventChildState:
				var ev core.Event
				if err := m.UnmarshalData(&ev); err != nil {
					return
				}
				msg = childEventMsg(ev)
			case uds.EventLogLine:
				var line core.LogLine
				if err := m.UnmarshalData(&line); err != nil {
					return
				}
				msg = logLineMsg(line)
			default:
				return
			}
			select {
			case push <- msg:
			default:
			}
		})
		return connectedMsg{client}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitPushCmd(push chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-push
	}
}

func fetchStatusCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodStatus, nil)
		if err != nil {
			return errorMsg{err}
		}
		var st core.Status
		if err := resp.UnmarshalData(&st); err != nil {
			return errorMsg{err}
		}
		return statusResultMsg{st}
	}
}

func fetchEventsCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodEvents, nil)
		if err != nil {
			return errorMsg{err}
		}
		var events []core.Event
		if err := resp.UnmarshalData(&events); err != nil {
			return errorMsg{err}
		}
		return eventsMsg{events}
	}
}

func fetchLogsCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodLogs, uds.TailRequest{Limit: 100})
		if err != nil {
			return errorMsg{err}
		}
		var lines []core.LogLine
		if err := resp.UnmarshalData(&lines); err != nil {
			return errorMsg{err}
		}
		return logsMsg{lines}
	}
}

func actionCmd(client *uds.Client, action string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := client.Request(ctx, uds.MethodAction, uds.ActionRequest{Action: action})
		if err != nil {
			return errorMsg{err}
		}
		return actionResultMsg{msg: action + " sent"}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case spinner.TickMsg:
		if a.connected {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case connectedMsg:
		a.client = msg.client
		a.connected = true
		a.statusMsg = "connected"
		return a, tea.Batch(
			tickCmd(),
			fetchStatusCmd(a.client),
			fetchEventsCmd(a.client),
			fetchLogsCmd(a.client),
			waitPushCmd(a.push),
		)

	case tickMsg:
		if a.client != nil {
			return a, tea.Batch(tickCmd(), fetchStatusCmd(a.client))
		}
		return a, tickCmd()

	case statusResultMsg:
		a.status = msg.status
		return a, nil

	case eventsMsg:
		a.events = msg.events
		a.eventIdx = -1
		return a, nil

	case logsMsg:
		a.logLines = msg.lines
		return a, nil

	case childEventMsg:
		a.events = append(a.events, core.Event(msg))
		if len(a.events) > eventWindow {
			a.events = a.events[len(a.events)-eventWindow:]
		}
		// Lifecycle changes make the polled status stale immediately.
		return a, tea.Batch(fetchStatusCmd(a.client), waitPushCmd(a.push))

	case logLineMsg:
		if !a.logPaused {
			a.logLines = append(a.logLines, core.LogLine(msg))
			if len(a.logLines) > logWindow {
				a.logLines = a.logLines[len(a.logLines)-logWindow:]
			}
		}
		return a, waitPushCmd(a.push)

	case actionResultMsg:
		a.statusMsg = msg.msg
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Filter mode
	if a.mode == ModeFilter {
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.filter.SetValue("")
			a.filter.Blur()
			a.eventIdx = -1
			return a, nil
		case "enter":
			a.mode = ModeNormal
			a.filter.Blur()
			a.eventIdx = -1
			return a, nil
		default:
			var cmd tea.Cmd
			a.filter, cmd = a.filter.Update(msg)
			return a, cmd
		}
	}

	// Kill confirmation mode
	if a.mode == ModeConfirmKill {
		switch msg.String() {
		case "y", "Y":
			a.mode = ModeNormal
			if a.client == nil {
				a.statusMsg = "not connected"
				return a, nil
			}
			a.statusMsg = "killing child..."
			return a, actionCmd(a.client, "kill")
		default:
			a.mode = ModeNormal
			a.statusMsg = "kill cancelled"
			return a, nil
		}
	}

	// Normal mode
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "j", "down":
		if a.activePane == PaneEvents {
			filtered := a.filteredEvents()
			if a.eventIdx == -1 {
				break
			}
			if a.eventIdx < len(filtered)-1 {
				a.eventIdx++
			} else {
				a.eventIdx = -1
			}
		}
	case "k", "up":
		if a.activePane == PaneEvents {
			filtered := a.filteredEvents()
			if a.eventIdx == -1 {
				a.eventIdx = max(0, len(filtered)-2)
			} else if a.eventIdx > 0 {
				a.eventIdx--
			}
		}

	case "tab":
		a.activePane = (a.activePane + 1) % 3

	case "/":
		a.activePane = PaneEvents
		a.mode = ModeFilter
		a.filter.Focus()
		return a, textinput.Blink

	case "r":
		if a.client == nil {
			a.statusMsg = "not connected"
			return a, nil
		}
		a.statusMsg = "restarting child..."
		return a, actionCmd(a.client, "restart")

	case "X":
		a.mode = ModeConfirmKill
		a.statusMsg = "Kill child? (y/n)"

	case "l":
		a.activePane = PaneLogs

	case " ":
		if a.activePane == PaneLogs {
			a.logPaused = !a.logPaused
		}
	}

	return a, nil
}
