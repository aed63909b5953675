// Package storage implements the Storage collaborator of spec §6:
// store_alert and add_blocked_ip, both of which may fail without being
// fatal to the pipeline (spec §4.D, §7). Two backends are offered, the same
// SQLite/Spanner factory split internal/reputation used in the teacher
// repo — here Postgres (via lib/pq) replaces SQLite as the default
// single-host backend, since lib/pq is the teacher's actual SQL driver
// dependency.
package storage

import (
	"context"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

// AlertStore is the Storage collaborator's contract (spec §6).
type AlertStore interface {
	StoreAlert(ctx context.Context, alert events.ThreatAlert) error
	AddBlockedIP(ctx context.Context, ip string) error
	Close() error
}

// FromConfig selects a backend by cfg.Storage.Backend, mirroring
// internal/reputation/factory.go's NewReputationStoreFromEnv switch.
func FromConfig(backend, postgresDSN, spannerProject, spannerInstance, spannerDatabase string) (AlertStore, error) {
	switch backend {
	case "spanner":
		return NewSpannerStore(spannerProject, spannerInstance, spannerDatabase)
	default:
		return NewPostgresStore(postgresDSN)
	}
}
