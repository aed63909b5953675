package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

// PostgresStore is the default AlertStore backend.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a lib/pq connection and ensures the alerts and
// blocked_ips tables exist.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS threat_alerts (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	kind TEXT NOT NULL,
	count BIGINT NOT NULL,
	event_type SMALLINT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS blocked_ips (
	address TEXT PRIMARY KEY,
	blocked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) StoreAlert(ctx context.Context, alert events.ThreatAlert) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO threat_alerts (id, address, kind, count, event_type, observed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
		alert.ID, alert.Address.String(), string(alert.Kind), int64(alert.Count), int16(alert.EventType), alert.At)
	return err
}

func (s *PostgresStore) AddBlockedIP(ctx context.Context, ip string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO blocked_ips (address) VALUES ($1)
ON CONFLICT (address) DO NOTHING`, ip)
	return err
}

func (s *PostgresStore) Close() error { return s.db.Close() }
