package watchdog

import (
	"fmt"
	"log/slog"

	sdnotify "github.com/coreos/go-systemd/v22/daemon"

	"github.com/layer5one/elysia/pkg/core"
)

// NotifySystemd returns an event sink that raises sd_notify readiness
// and status updates when elysiad runs as a Type=notify unit. Outside
// systemd the notifications are no-ops.
func NotifySystemd(logger *slog.Logger) EventSink {
	return func(ev core.Event) {
		var state string
		switch ev.Type {
		case core.EventStarted:
			state = sdnotify.SdNotifyReady + "\nSTATUS=child running (pid " + fmt.Sprint(ev.PID) + ")"
		case core.EventCrashed, core.EventStartFailed:
			state = "STATUS=" + ev.Message
		case core.EventCleanExit:
			state = "STATUS=" + ev.Message
		case core.EventStopping:
			state = sdnotify.SdNotifyStopping
		default:
			return
		}

		sent, err := sdnotify.SdNotify(false, state)
		if err != nil {
			logger.Debug("sd_notify", "err", err)
			return
		}
		if sent {
			logger.Debug("sd_notify sent", "state", state)
		}
	}
}
