// Package detector implements the sliding-window rate detector and blocked
// set described in spec §4.C. It is grounded directly on
// original_source/ebpf-detector-agent/src/threat_detector.rs: one exclusive
// lock guarding three maps, append-then-prune-then-compare, with the same
// "insert first, short-circuit on blocked" ordering.
package detector

import (
	"net/netip"
	"sync"
	"time"

	"github.com/maheshbhatiya73/secrds/internal/config"
	"github.com/maheshbhatiya73/secrds/internal/events"
)

// Decision is the outcome of one observation, per spec §4.C.
type Decision int

const (
	// BelowThreshold means count <= threshold; no alert.
	BelowThreshold Decision = iota
	// Exceeded means count > threshold; the Reactor should fire.
	Exceeded
	// Ignored means the source is already blocked; no further action.
	Ignored
)

// Outcome bundles a Decision with the count that produced it, for logging
// and metrics without a second lock acquisition.
type Outcome struct {
	Decision Decision
	Count    uint64
}

// Clock abstracts the monotonic and wall clocks so tests can control time
// without sleeping. Production code uses realClock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Detector holds the process-wide state described in spec §3: per-address
// observation sequences for SSH and TCP, and the set of blocked sources.
// All three are mutated only under mu, satisfying invariant I3 — no caller
// ever sees ssh_attempts/tcp_connections and blocked_ips separately.
type Detector struct {
	mu sync.Mutex

	sshAttempts    map[netip.Addr][]time.Time
	tcpConnections map[netip.Addr][]time.Time
	blockedIPs     map[netip.Addr]struct{}

	sshWindow     time.Duration
	sshThreshold  uint64
	tcpWindow     time.Duration
	tcpThreshold  uint64

	clock Clock
}

// New constructs a Detector from the Config collaborator's detection
// parameters (spec §6). The Detector is created once at startup and lives
// for process lifetime (spec §3 Lifecycle).
func New(cfg config.DetectionConfig) *Detector {
	return NewWithClock(cfg, realClock{})
}

// NewWithClock is New with an injectable clock, for deterministic tests of
// pruning (P1) and threshold strictness (P2).
func NewWithClock(cfg config.DetectionConfig, clock Clock) *Detector {
	return &Detector{
		sshAttempts:    make(map[netip.Addr][]time.Time),
		tcpConnections: make(map[netip.Addr][]time.Time),
		blockedIPs:     make(map[netip.Addr]struct{}),
		sshWindow:      time.Duration(cfg.SSHWindowSeconds) * time.Second,
		sshThreshold:   cfg.SSHThreshold,
		tcpWindow:      time.Duration(cfg.TCPWindowSeconds) * time.Second,
		tcpThreshold:   cfg.TCPThreshold,
		clock:          clock,
	}
}

// ObserveSSH runs the algorithm of spec §4.C step 1-5 against ssh_attempts.
func (d *Detector) ObserveSSH(addr netip.Addr) Outcome {
	return d.observe(addr, d.sshAttempts, d.sshWindow, d.sshThreshold)
}

// ObserveTCP runs the same algorithm against tcp_connections.
func (d *Detector) ObserveTCP(addr netip.Addr) Outcome {
	return d.observe(addr, d.tcpConnections, d.tcpWindow, d.tcpThreshold)
}

// observe is the single exclusive critical section shared by both
// operations (spec §4.C: "Both operations execute under the same exclusive
// critical section to preserve I3"). table is either d.sshAttempts or
// d.tcpConnections, passed by reference via the map's reference semantics —
// Go maps are already reference types, so mutations here are visible to the
// Detector's field directly.
func (d *Detector) observe(addr netip.Addr, table map[netip.Addr][]time.Time, window time.Duration, threshold uint64) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, blocked := d.blockedIPs[addr]; blocked {
		return Outcome{Decision: Ignored}
	}

	now := d.clock.Now()
	table[addr] = append(table[addr], now)
	table[addr] = pruneBefore(table[addr], now, window)

	count := uint64(len(table[addr]))
	if count > threshold {
		return Outcome{Decision: Exceeded, Count: count}
	}
	return Outcome{Decision: BelowThreshold, Count: count}
}

// pruneBefore retains instants t with now-t < window, using a saturating
// subtraction: an instant strictly after now (possible under clock skew
// across goroutines, spec §4.C step 4) is treated as distance zero and
// retained rather than discarded.
func pruneBefore(instants []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := instants[:0]
	for _, t := range instants {
		age := now.Sub(t)
		if age < 0 {
			age = 0
		}
		if age < window {
			kept = append(kept, t)
		}
	}
	return kept
}

// Block inserts addr into the blocked set. It is called by the Reactor
// (spec §4.D step 3) re-acquiring this same lock, before the firewall
// mutation is issued, so that a concurrent observation of addr is
// short-circuited to Ignored for the remainder of process lifetime
// (invariant I2, property P3).
func (d *Detector) Block(addr netip.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blockedIPs[addr] = struct{}{}
}

// IsBlocked reports current membership, for the admin status surface.
func (d *Detector) IsBlocked(addr netip.Addr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.blockedIPs[addr]
	return ok
}

// BlockedCount reports the current cardinality of the blocked set, for the
// Supervisor's heartbeat and /status endpoint.
func (d *Detector) BlockedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blockedIPs)
}

// BlockedAddrs returns a snapshot of the blocked set, for the admin
// /blocked endpoint.
func (d *Detector) BlockedAddrs() []netip.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]netip.Addr, 0, len(d.blockedIPs))
	for a := range d.blockedIPs {
		out = append(out, a)
	}
	return out
}
