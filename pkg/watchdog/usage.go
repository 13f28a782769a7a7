package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// UsageSampler periodically reads the child's CPU and memory usage and
// feeds the readings into the status snapshot and metrics gauges.
type UsageSampler struct {
	w        *Watchdog
	metrics  *Metrics
	interval time.Duration
	logger   *slog.Logger
}

// NewUsageSampler creates a sampler. metrics may be nil.
func NewUsageSampler(w *Watchdog, metrics *Metrics, interval time.Duration, logger *slog.Logger) *UsageSampler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &UsageSampler{w: w, metrics: metrics, interval: interval, logger: logger}
}

// Run samples until ctx is cancelled.
func (u *UsageSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.tick()
		}
	}
}

func (u *UsageSampler) tick() {
	pid := u.w.PID()
	if pid == 0 {
		u.w.setUsage(0, 0)
		if u.metrics != nil {
			u.metrics.SetChildUsage(0, 0, 0)
		}
		return
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		// The child can exit between PID() and here.
		u.logger.Debug("usage sample", "pid", pid, "err", err)
		return
	}

	cpuPct, err := proc.Percent(0)
	if err != nil {
		cpuPct = 0
	}
	var rss uint64
	if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
		rss = mi.RSS
	}

	u.w.setUsage(cpuPct, rss)
	if u.metrics != nil {
		u.metrics.SetChildUsage(cpuPct, rss, u.w.Uptime())
	}
}
