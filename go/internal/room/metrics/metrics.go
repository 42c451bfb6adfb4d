// Package metrics exports the readiness protocol to Prometheus.
package metrics

import (
	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
	"github.com/prometheus/client_golang/prometheus"
)

var phases = []coordinator.Phase{
	coordinator.PhaseIdle,
	coordinator.PhaseSyncPending,
	coordinator.PhaseConverged,
	coordinator.PhaseEnded,
}

// RoomMetrics implements coordinator.MetricsCollector
type RoomMetrics struct {
	syncEpochs  *prometheus.CounterVec
	hardReloads *prometheus.CounterVec
	convergence prometheus.Histogram
	convergedAt prometheus.Gauge
	clients     prometheus.Gauge
	phase       *prometheus.GaugeVec
}

var _ coordinator.MetricsCollector = (*RoomMetrics)(nil)

// NewRoomMetrics creates the room collectors and registers them with reg
func NewRoomMetrics(reg prometheus.Registerer) (*RoomMetrics, error) {
	m := &RoomMetrics{
		syncEpochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchroom",
			Subsystem: "room",
			Name:      "sync_epochs_total",
			Help:      "Sync epochs started, by reason.",
		}, []string{"reason"}),
		hardReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchroom",
			Subsystem: "room",
			Name:      "hard_reloads_total",
			Help:      "Hard reloads, by trigger.",
		}, []string{"trigger"}),
		convergence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "watchroom",
			Subsystem: "room",
			Name:      "convergence_seconds",
			Help:      "Logical time from the start of a sync epoch until every client was ready.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 10, 15},
		}),
		convergedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchroom",
			Subsystem: "room",
			Name:      "converged_clients",
			Help:      "Clients in the room at the last convergence.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchroom",
			Subsystem: "room",
			Name:      "clients",
			Help:      "Connected clients.",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchroom",
			Subsystem: "room",
			Name:      "phase",
			Help:      "1 for the current readiness phase, 0 otherwise.",
		}, []string{"phase"}),
	}

	for _, c := range []prometheus.Collector{m.syncEpochs, m.hardReloads, m.convergence, m.convergedAt, m.clients, m.phase} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	m.RecordPhase(coordinator.PhaseIdle)
	return m, nil
}

func (m *RoomMetrics) RecordSyncStarted(reason coordinator.SyncReason) {
	m.syncEpochs.WithLabelValues(string(reason)).Inc()
}

func (m *RoomMetrics) RecordConverged(clients int, elapsed float64) {
	m.convergence.Observe(elapsed)
	m.convergedAt.Set(float64(clients))
}

func (m *RoomMetrics) RecordHardReload(manual bool) {
	trigger := "deadline"
	if manual {
		trigger = "manual"
	}
	m.hardReloads.WithLabelValues(trigger).Inc()
}

func (m *RoomMetrics) RecordClients(count int) {
	m.clients.Set(float64(count))
}

func (m *RoomMetrics) RecordPhase(phase coordinator.Phase) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.phase.WithLabelValues(string(p)).Set(v)
	}
}
