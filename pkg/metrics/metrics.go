// Package metrics tracks GoChat runtime statistics and exports them to Prometheus.
package metrics

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gochat"

// Metrics tracks server runtime statistics.
// Counters are plain atomics so hot paths stay lock-free; Prometheus reads
// them through CounterFunc/GaugeFunc collectors at scrape time.
type Metrics struct {
	startTime time.Time
	reg       *prometheus.Registry

	// Connection counters
	TotalConnections atomic.Int64 // lifetime connections accepted (TCP + WebSocket)
	TotalDisconnects atomic.Int64
	ActiveSessions   atomic.Int64 // registry entries, anonymous included
	OnlineUsers      atomic.Int64 // sessions bound to a user

	// Presence counters
	Logins        atomic.Int64
	FailedLogins  atomic.Int64
	Logouts       atomic.Int64
	Displacements atomic.Int64 // sessions evicted by a login elsewhere

	// Fanout counters
	FanoutDelivered atomic.Int64
	FanoutFailed    atomic.Int64
	FanoutOffline   atomic.Int64 // recipients with no live connection

	workflowResults *prometheus.CounterVec
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		reg:       prometheus.NewRegistry(),
		workflowResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_results_total",
			Help:      "Processed inbound messages by type and outcome.",
		}, []string{"type", "result"}),
	}

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(v.Load()) })
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: "uptime_seconds", Help: "Server uptime in seconds."},
			func() float64 { return time.Since(m.startTime).Seconds() }),
		counter("connections_total", "Lifetime connections accepted.", &m.TotalConnections),
		counter("disconnects_total", "Total client disconnects.", &m.TotalDisconnects),
		gauge("sessions_active", "Registered sessions, anonymous included.", &m.ActiveSessions),
		gauge("users_online", "Sessions bound to a logged-in user.", &m.OnlineUsers),
		counter("logins_total", "Successful logins.", &m.Logins),
		counter("logins_failed_total", "Rejected login attempts.", &m.FailedLogins),
		counter("logouts_total", "Completed logouts.", &m.Logouts),
		counter("displacements_total", "Sessions evicted by a duplicate login.", &m.Displacements),
		counter("fanout_delivered_total", "Notifications written to a connection.", &m.FanoutDelivered),
		counter("fanout_failed_total", "Notifications whose send failed.", &m.FanoutFailed),
		counter("fanout_offline_total", "Notifications skipped because the recipient was offline.", &m.FanoutOffline),
		m.workflowResults,
	)
	return m
}

// WorkflowResult counts one processed message of the given type.
func (m *Metrics) WorkflowResult(msgType string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.workflowResults.WithLabelValues(msgType, result).Inc()
}

// Registry returns the Prometheus registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	slog.Info("metrics",
		"uptime", time.Since(m.startTime).Truncate(time.Second).String(),
		"sessions", m.ActiveSessions.Load(),
		"online", m.OnlineUsers.Load(),
		"logins", m.Logins.Load(),
		"displacements", m.Displacements.Load(),
		"fanout_delivered", m.FanoutDelivered.Load(),
		"fanout_failed", m.FanoutFailed.Load(),
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
