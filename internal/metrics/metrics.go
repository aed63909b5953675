// Package metrics holds the agent's Prometheus instrumentation, grounded on
// internal/escrow/metrics.go's promauto-registered CounterVec/GaugeVec
// style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and gauge the pipeline updates.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	Alerts       *prometheus.CounterVec
	BlockActions *prometheus.CounterVec
	BlockedTotal prometheus.Gauge
	RecordsDropped *prometheus.CounterVec
	StorageErrors  *prometheus.CounterVec
	NotifyErrors   *prometheus.CounterVec
}

// New creates and registers all metrics against the default registry.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_decisions_total",
				Help: "Detector decisions by kind and outcome.",
			},
			[]string{"kind", "decision"},
		),
		Alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_alerts_total",
				Help: "Threat alerts raised by kind.",
			},
			[]string{"kind"},
		),
		BlockActions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_block_actions_total",
				Help: "Firewall block attempts by result.",
			},
			[]string{"result"},
		),
		BlockedTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agent_blocked_sources",
				Help: "Current cardinality of the blocked-source set.",
			},
		),
		RecordsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_records_dropped_total",
				Help: "Ring records dropped by reason.",
			},
			[]string{"ring", "reason"},
		),
		StorageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_storage_errors_total",
				Help: "Storage collaborator failures.",
			},
			[]string{"op"},
		),
		NotifyErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_notify_errors_total",
				Help: "Notification collaborator failures.",
			},
			[]string{"channel"},
		),
	}
}
