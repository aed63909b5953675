// Package pipeline wires the Ring Consumer's decoded events into the
// Detector and, on an Exceeded decision, into the Reactor — named after the
// teacher's cmd/probe pipeline concept that strings worker-pool stages
// together. It holds no state of its own; it is pure glue so that
// ringconsumer never imports detector or reactor directly (spec §9).
package pipeline

import (
	"net/netip"

	"github.com/maheshbhatiya73/secrds/internal/detector"
	"github.com/maheshbhatiya73/secrds/internal/events"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
)

// Reactor is the subset of reactor.Reactor's contract this package needs,
// kept narrow so tests can supply a fake without constructing a full
// Reactor and its collaborators.
type Reactor interface {
	React(addr netip.Addr, kind events.ThreatKind, count uint64, eventType uint8)
}

// Pipeline implements ringconsumer.Sink.
type Pipeline struct {
	detector *detector.Detector
	reactor  Reactor
	metrics  *metrics.Metrics
}

// New builds a Pipeline over an already-constructed Detector and Reactor.
func New(d *detector.Detector, r Reactor, m *metrics.Metrics) *Pipeline {
	return &Pipeline{detector: d, reactor: r, metrics: m}
}

// SSH implements ringconsumer.Sink for decoded SSH events.
func (p *Pipeline) SSH(addr netip.Addr, eventType uint8) {
	p.handle("ssh", events.KindSSHBruteForce, addr, eventType, p.detector.ObserveSSH(addr))
}

// TCP implements ringconsumer.Sink for decoded TCP events. Both scan and
// flood share the same counter and threshold (spec §4.C: one table per
// protocol, not per threat kind); the Reactor is told which kind to alert
// as based on the observed event_type so downstream consumers can
// distinguish them without re-deriving it.
func (p *Pipeline) TCP(addr netip.Addr, eventType uint8) {
	kind := events.KindTCPPortScan
	if eventType == tcpFloodEventType {
		kind = events.KindTCPFlood
	}
	p.handle("tcp", kind, addr, eventType, p.detector.ObserveTCP(addr))
}

// tcpFloodEventType is the event_type value the TCP probe tags a
// connection-flood record with, as opposed to a port-scan record. Kept
// local to pipeline since only alert labeling cares about the distinction —
// the Detector treats both identically (spec §4.C Non-goal: no separate
// flood/scan thresholds).
const tcpFloodEventType = 2

func (p *Pipeline) handle(ringLabel string, kind events.ThreatKind, addr netip.Addr, eventType uint8, outcome detector.Outcome) {
	p.metrics.Decisions.WithLabelValues(ringLabel, decisionLabel(outcome.Decision)).Inc()
	if outcome.Decision != detector.Exceeded {
		return
	}
	p.reactor.React(addr, kind, outcome.Count, eventType)
}

func decisionLabel(d detector.Decision) string {
	switch d {
	case detector.Exceeded:
		return "exceeded"
	case detector.Ignored:
		return "ignored"
	default:
		return "below_threshold"
	}
}
