package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/layer5one/elysia/pkg/core"
)

func newFilterInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "filter events..."
	ti.CharLimit = 64
	return ti
}

// filteredEvents applies the filter input to the event history. Matches
// run over the event type, message, and signal name.
func (a App) filteredEvents() []core.Event {
	q := strings.ToLower(a.filter.Value())
	if q == "" {
		return a.events
	}
	var filtered []core.Event
	for _, ev := range a.events {
		if strings.Contains(strings.ToLower(string(ev.Type)), q) ||
			strings.Contains(strings.ToLower(ev.Message), q) ||
			strings.Contains(strings.ToLower(ev.Signal), q) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func eventGlyph(typ core.EventType) string {
	switch typ {
	case core.EventStarting:
		return statusRestart.Render("↻")
	case core.EventStarted:
		return statusRunning.Render("●")
	case core.EventCrashed, core.EventStartFailed:
		return statusFailed.Render("✖")
	case core.EventCleanExit:
		return statusStopped.Render("○")
	case core.EventSnippet:
		return dimStyle.Render("✎")
	case core.EventStopping:
		return statusStopped.Render("■")
	default:
		return dimStyle.Render("?")
	}
}

// formatEvent renders one history row: timestamp, glyph, message.
func formatEvent(ev core.Event, width int) string {
	stamp := ev.Time().Format("15:04:05")
	msg := truncate(ev.Message, max(width-12, 8))
	return fmt.Sprintf("%s %s %s", dimStyle.Render(stamp), eventGlyph(ev.Type), msg)
}
