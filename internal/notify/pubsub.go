package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

// PubSubNotifier publishes alerts to a Pub/Sub topic, as a second
// independent notification channel for downstream SOC tooling
// (SPEC_FULL.md §4.D expanded). It has no relationship to storage or the
// webhook channel — its failure must never block either.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubNotifier creates a client and resolves the publish topic.
func NewPubSubNotifier(ctx context.Context, project, topicID string) (*PubSubNotifier, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	return &PubSubNotifier{client: client, topic: client.Topic(topicID)}, nil
}

func (n *PubSubNotifier) SendAlert(alert events.ThreatAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind": string(alert.Kind),
		},
	})
	_, err = result.Get(ctx)
	return err
}

func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
