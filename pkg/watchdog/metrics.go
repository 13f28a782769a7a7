package watchdog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/layer5one/elysia/pkg/core"
)

// Metrics exposes supervision counters and child gauges to Prometheus.
// Collectors live on a private registry so tests and multiple instances
// never collide.
type Metrics struct {
	registry *prometheus.Registry

	childStarts     prometheus.Counter
	restarts        prometheus.Counter
	startFailures   prometheus.Counter
	crashes         prometheus.Counter
	snippetCaptures prometheus.Counter
	childUp         prometheus.Gauge
	lastExitCode    prometheus.Gauge
	childCPU        prometheus.Gauge
	childMem        prometheus.Gauge
	childUptime     prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.childStarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elysiad_child_starts_total",
		Help: "Times the child process was launched.",
	})
	m.restarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elysiad_restarts_total",
		Help: "Times the watchdog relaunched the child after a non-clean end.",
	})
	m.startFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elysiad_start_failures_total",
		Help: "Times the child could not be spawned.",
	})
	m.crashes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elysiad_child_crashes_total",
		Help: "Times the child exited with a nonzero status.",
	})
	m.snippetCaptures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elysiad_snippet_captures_total",
		Help: "Times the crash snippet file was written.",
	})
	m.childUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elysiad_child_up",
		Help: "Whether the child process is currently running.",
	})
	m.lastExitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elysiad_last_exit_code",
		Help: "Exit code of the most recent child exit.",
	})
	m.childCPU = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elysiad_child_cpu_percent",
		Help: "CPU usage of the child process.",
	})
	m.childMem = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elysiad_child_memory_bytes",
		Help: "Resident memory of the child process.",
	})
	m.childUptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "elysiad_child_uptime_seconds",
		Help: "How long the current child has been running.",
	})

	m.registry.MustRegister(
		m.childStarts,
		m.restarts,
		m.startFailures,
		m.crashes,
		m.snippetCaptures,
		m.childUp,
		m.lastExitCode,
		m.childCPU,
		m.childMem,
		m.childUptime,
	)
	return m
}

// Registry returns the private registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe applies a lifecycle event to the collectors.
func (m *Metrics) Observe(ev core.Event) {
	switch ev.Type {
	case core.EventStarting:
		if ev.Attempt > 1 {
			m.restarts.Inc()
		}
	case core.EventStarted:
		m.childStarts.Inc()
		m.childUp.Set(1)
	case core.EventStartFailed:
		m.startFailures.Inc()
		m.childUp.Set(0)
	case core.EventCrashed:
		m.crashes.Inc()
		m.childUp.Set(0)
		m.lastExitCode.Set(float64(ev.ExitCode))
	case core.EventCleanExit:
		m.childUp.Set(0)
		m.lastExitCode.Set(0)
	case core.EventSnippet:
		m.snippetCaptures.Inc()
	}
}

// SetChildUsage updates the resource gauges from the latest sample.
func (m *Metrics) SetChildUsage(cpuPct float64, memBytes uint64, uptime time.Duration) {
	m.childCPU.Set(cpuPct)
	m.childMem.Set(float64(memBytes))
	m.childUptime.Set(uptime.Seconds())
}
