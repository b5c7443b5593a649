// Package metrics exposes Prometheus instruments for the session pool
// and the workflows built on it. A nil *Metrics is a no-op so tests and
// embedded use need no registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the instruments the automation core updates.
type Metrics struct {
	sessionsInFlight prometheus.Gauge
	sessionOpens     *prometheus.CounterVec
	commandsSent     prometheus.Counter
	snapshotsTaken   prometheus.Counter
	rollbacks        *prometheus.CounterVec
}

// New registers the instrument set on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arava",
			Name:      "sessions_in_flight",
			Help:      "Device CLI sessions currently holding a pool slot.",
		}),
		sessionOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arava",
			Name:      "session_opens_total",
			Help:      "Session open attempts by outcome.",
		}, []string{"outcome"}),
		commandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arava",
			Name:      "commands_sent_total",
			Help:      "CLI commands sent to devices.",
		}),
		snapshotsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arava",
			Name:      "snapshots_total",
			Help:      "Configuration snapshots captured.",
		}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arava",
			Name:      "rollbacks_total",
			Help:      "Rollback operations by terminal status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.sessionsInFlight, m.sessionOpens, m.commandsSent, m.snapshotsTaken, m.rollbacks)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsInFlight.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessionsInFlight.Dec()
}

func (m *Metrics) SessionOpen(outcome string) {
	if m == nil {
		return
	}
	m.sessionOpens.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CommandSent() {
	if m == nil {
		return
	}
	m.commandsSent.Inc()
}

func (m *Metrics) SnapshotTaken() {
	if m == nil {
		return
	}
	m.snapshotsTaken.Inc()
}

func (m *Metrics) RollbackFinished(status string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(status).Inc()
}
