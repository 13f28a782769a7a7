package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/layer5one/elysia/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusStopped = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusRestart = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	if !a.connected {
		return "\n  " + a.spin.View() + "connecting to elysiad...\n\n" +
			helpStyle.Render("  socket: "+a.socketPath+"   q:quit")
	}

	statusBarH := 2
	logPaneH := max(a.height/4, 5)
	mainH := a.height - logPaneH - statusBarH - 2
	statusW := a.width*2/5 - 2
	eventsW := a.width - statusW - 4

	status := a.renderStatus(statusW, mainH)
	statusPane := a.paneBox(PaneStatus, " Child ", status, statusW, mainH)

	events := a.renderEvents(eventsW, mainH)
	eventsPane := a.paneBox(PaneEvents, " History ", events, eventsW, mainH)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, statusPane, eventsPane)

	logs := a.renderLogs(a.width-4, logPaneH)
	logPane := a.paneBox(PaneLogs, a.logTitle(), logs, a.width-4, logPaneH)

	statusBar := a.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, topRow, logPane, statusBar)
}

func (a App) paneBox(pane Pane, title, content string, w, h int) string {
	style := paneStyle
	if a.activePane == pane {
		style = activePaneStyle
	}
	return style.Width(w).Height(h).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

func (a App) renderStatus(w, h int) string {
	st := a.status
	if st.Name == "" {
		return dimStyle.Render("waiting for status")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name:      %s\n", st.Name)
	fmt.Fprintf(&b, "State:     %s %s\n", stateIndicator(st.State), colorState(st.State))
	fmt.Fprintf(&b, "Policy:    %s\n", st.Policy)
	fmt.Fprintf(&b, "Command:   %s\n", truncate(st.Command, max(w-11, 8)))

	if st.PID > 0 {
		fmt.Fprintf(&b, "PID:       %d\n", st.PID)
		fmt.Fprintf(&b, "Uptime:    %s\n", formatDuration(st.UptimeSec))
	}
	if st.CPUPct > 0 {
		fmt.Fprintf(&b, "CPU:       %.1f%%\n", st.CPUPct)
	}
	if st.MemBytes > 0 {
		fmt.Fprintf(&b, "Memory:    %s\n", formatBytes(st.MemBytes))
	}

	fmt.Fprintf(&b, "Starts:    %d\n", st.Starts)
	fmt.Fprintf(&b, "Restarts:  %d\n", st.Restarts)
	if st.StartFailures > 0 {
		fmt.Fprintf(&b, "Failures:  %d\n", st.StartFailures)
	}
	if st.LastExitCode != nil {
		exit := fmt.Sprintf("code %d", *st.LastExitCode)
		if st.LastSignal != "" {
			exit += ", " + st.LastSignal
		}
		if *st.LastExitCode == 0 {
			fmt.Fprintf(&b, "Last exit: %s\n", statusStopped.Render(exit))
		} else {
			fmt.Fprintf(&b, "Last exit: %s\n", statusFailed.Render(exit))
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("journal: "+truncate(st.JournalPath, max(w-11, 8))))
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("snippet: "+truncate(st.SnippetPath, max(w-11, 8))))
	if st.ChildLogPath != "" {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render("child log: "+truncate(st.ChildLogPath, max(w-13, 8))))
	}

	return b.String()
}

func (a App) renderEvents(w, h int) string {
	events := a.filteredEvents()
	if len(events) == 0 {
		return dimStyle.Render("no events yet")
	}

	maxVisible := h - 2
	if a.mode == ModeFilter {
		maxVisible -= 2
	}
	if maxVisible < 1 {
		maxVisible = 1
	}

	sel := a.eventIdx
	if sel < 0 || sel >= len(events) {
		sel = len(events) - 1
	}
	start := 0
	if sel >= maxVisible {
		start = sel - maxVisible + 1
	}

	var b strings.Builder
	for i := start; i < len(events) && i-start < maxVisible; i++ {
		line := formatEvent(events[i], w)
		if i == sel && a.activePane == PaneEvents {
			line = selectedStyle.Width(w).Render(line)
		}
		b.WriteString(line + "\n")
	}

	if a.mode == ModeFilter {
		b.WriteString("\n" + a.filter.View())
	}

	return b.String()
}

func (a App) renderLogs(w, h int) string {
	if len(a.logLines) == 0 {
		return dimStyle.Render("no log output")
	}

	start := 0
	if len(a.logLines) > h-1 {
		start = len(a.logLines) - h + 1
	}

	var b strings.Builder
	for i := start; i < len(a.logLines); i++ {
		line := truncate(a.logLines[i].Line, w)
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a App) logTitle() string {
	title := " " + logName(a.status) + " "
	if a.logPaused {
		title += dimStyle.Render("[PAUSED]") + " "
	}
	return title
}

func logName(st core.Status) string {
	if st.ChildLogPath == "" {
		return "Logs"
	}
	parts := strings.Split(st.ChildLogPath, "/")
	return parts[len(parts)-1]
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "j/k:scroll tab:pane /:filter r:restart X:kill space:pause q:quit"
	if a.mode == ModeFilter {
		right = "enter:apply esc:cancel"
	}
	if a.mode == ModeConfirmKill {
		right = "y:confirm other:cancel"
	}

	gap := a.width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func stateIndicator(state core.State) string {
	switch state {
	case core.StateRunning:
		return statusRunning.Render("●")
	case core.StateStopped:
		return statusStopped.Render("○")
	case core.StateRestarting:
		return statusRestart.Render("↻")
	case core.StateIdle:
		return dimStyle.Render("◌")
	default:
		return dimStyle.Render("?")
	}
}

func colorState(state core.State) string {
	s := string(state)
	switch state {
	case core.StateRunning:
		return statusRunning.Render(s)
	case core.StateStopped:
		return statusStopped.Render(s)
	case core.StateRestarting:
		return statusRestart.Render(s)
	default:
		return dimStyle.Render(s)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func formatBytes(b uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatDuration(sec uint64) string {
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	if sec < 3600 {
		return fmt.Sprintf("%dm%ds", sec/60, sec%60)
	}
	return fmt.Sprintf("%dh%dm", sec/3600, (sec%3600)/60)
}
