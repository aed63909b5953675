package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/spanner"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

// SpannerStore is the alternate AlertStore backend, grounded on
// internal/reputation/spanner.go's NewSpannerWallet — same client
// construction, same mutation-buffering write style.
type SpannerStore struct {
	client *spanner.Client
	logger *log.Logger
}

// NewSpannerStore opens a Spanner client for the given database path.
func NewSpannerStore(project, instance, database string) (*SpannerStore, error) {
	ctx := context.Background()
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, database)

	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating spanner client: %w", err)
	}

	return &SpannerStore{
		client: client,
		logger: log.New(log.Writer(), "[SpannerStore] ", log.LstdFlags),
	}, nil
}

func (s *SpannerStore) StoreAlert(ctx context.Context, alert events.ThreatAlert) error {
	mutation := spanner.InsertOrUpdate("ThreatAlerts",
		[]string{"AlertID", "Address", "Kind", "Count", "EventType", "ObservedAt"},
		[]interface{}{alert.ID, alert.Address.String(), string(alert.Kind), int64(alert.Count), int64(alert.EventType), alert.At},
	)
	_, err := s.client.Apply(ctx, []*spanner.Mutation{mutation})
	if err != nil {
		return fmt.Errorf("writing alert to spanner: %w", err)
	}
	return nil
}

func (s *SpannerStore) AddBlockedIP(ctx context.Context, ip string) error {
	mutation := spanner.InsertOrUpdate("BlockedIPs",
		[]string{"Address", "BlockedAt"},
		[]interface{}{ip, time.Now()},
	)
	_, err := s.client.Apply(ctx, []*spanner.Mutation{mutation})
	if err != nil {
		return fmt.Errorf("writing blocked ip to spanner: %w", err)
	}
	return nil
}

func (s *SpannerStore) Close() error {
	s.client.Close()
	return nil
}
