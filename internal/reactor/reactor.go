// Package reactor implements spec §4.D: on a confirmed threat, persist,
// notify, and optionally block — in that order, with the block step
// inserting into the Detector's blocked set before invoking the firewall,
// per spec §9's ordering requirement for idempotence at the Detector level.
package reactor

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/maheshbhatiya73/secrds/internal/events"
	"github.com/maheshbhatiya73/secrds/internal/firewall"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
	"github.com/maheshbhatiya73/secrds/internal/notify"
	"github.com/maheshbhatiya73/secrds/internal/storage"
)

// Blocker is the subset of the Detector's contract the Reactor needs: it
// inserts into the blocked set and reports the set's cardinality for the
// BlockedTotal gauge, but never reads attempt/connection state, keeping the
// Detector unaware the Reactor exists (spec §9, cyclic ownership note).
type Blocker interface {
	Block(addr netip.Addr)
	BlockedCount() int
}

// LiveBroadcaster pushes alerts to connected dashboards. Best-effort: it
// never returns an error the Reactor needs to act on.
type LiveBroadcaster interface {
	Broadcast(alert events.ThreatAlert)
}

// Reactor is constructed once at startup and shared by every pipeline
// consumer goroutine; it holds no mutable state of its own beyond its
// collaborators, so it needs no internal lock.
type Reactor struct {
	store    storage.AlertStore
	notifier notify.Notifier
	firewall firewall.Blocker
	blocker  Blocker
	live     LiveBroadcaster
	metrics  *metrics.Metrics

	enableBlocking bool
}

// Config bundles Reactor's construction-time collaborators and options.
type Config struct {
	Store           storage.AlertStore
	Notifier        notify.Notifier
	Firewall        firewall.Blocker
	Blocker         Blocker
	Live            LiveBroadcaster
	Metrics         *metrics.Metrics
	EnableIPBlocking bool
}

// New builds a Reactor from its collaborators.
func New(cfg Config) *Reactor {
	return &Reactor{
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		firewall:       cfg.Firewall,
		blocker:        cfg.Blocker,
		live:           cfg.Live,
		metrics:        cfg.Metrics,
		enableBlocking: cfg.EnableIPBlocking,
	}
}

// React executes the three side effects of spec §4.D for a confirmed
// Exceeded decision. Each step's failure is logged and does not prevent the
// next (spec §4.D steps 1-2; §7).
func (r *Reactor) React(addr netip.Addr, kind events.ThreatKind, count uint64, eventType uint8) {
	alert := events.ThreatAlert{
		ID:        uuid.NewString(),
		Address:   addr,
		Kind:      kind,
		Count:     count,
		EventType: eventType,
		At:        time.Now(),
	}

	r.metrics.Alerts.WithLabelValues(string(kind)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.StoreAlert(ctx, alert); err != nil {
		slog.Warn("storage failed for alert", "alert_id", alert.ID, "error", err)
		r.metrics.StorageErrors.WithLabelValues("store_alert").Inc()
	}

	if r.live != nil {
		r.live.Broadcast(alert)
	}

	if err := r.notifier.SendAlert(alert); err != nil {
		slog.Warn("notification failed for alert", "alert_id", alert.ID, "error", err)
		r.metrics.NotifyErrors.WithLabelValues("send_alert").Inc()
	}

	if !r.enableBlocking {
		return
	}

	// Insert into the blocked set before invoking the firewall: a
	// concurrent observation of addr is short-circuited to Ignored for
	// the rest of process lifetime the instant this line runs, even if
	// the firewall call below fails (spec §9).
	r.blocker.Block(addr)
	r.metrics.BlockedTotal.Set(float64(r.blocker.BlockedCount()))

	if err := r.store.AddBlockedIP(ctx, addr.String()); err != nil {
		slog.Warn("storage failed recording blocked ip", "ip", addr.String(), "error", err)
		r.metrics.StorageErrors.WithLabelValues("add_blocked_ip").Inc()
	}

	if err := r.firewall.Block(ctx, addr.String()); err != nil {
		slog.Warn("firewall block failed; in-memory block stands", "ip", addr.String(), "error", err)
		r.metrics.BlockActions.WithLabelValues("error").Inc()
		return
	}
	r.metrics.BlockActions.WithLabelValues("ok").Inc()
}
