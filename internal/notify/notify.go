// Package notify implements the Notification collaborator of spec §6
// (send_alert, may fail, non-fatal) grounded on internal/webhooks: a signed
// HTTP webhook as the primary channel, optionally backed by Google Cloud
// Tasks for durable at-least-once delivery the way
// internal/webhooks/cloud_dispatcher.go layers over the in-memory
// Dispatcher, plus an optional Pub/Sub channel as a second, independent
// fan-out target for downstream SOC tooling (SPEC_FULL.md §DOMAIN STACK).
package notify

import "github.com/maheshbhatiya73/secrds/internal/events"

// Notifier is the Notification collaborator's contract.
type Notifier interface {
	SendAlert(alert events.ThreatAlert) error
}

// Chain fans one alert out to every configured channel, collecting but not
// stopping on individual failures — the Reactor only needs to know whether
// every channel succeeded, and none of them may block the others.
type Chain struct {
	channels []Notifier
}

// NewChain builds a Notifier that calls every channel, in order.
func NewChain(channels ...Notifier) *Chain {
	return &Chain{channels: channels}
}

func (c *Chain) SendAlert(alert events.ThreatAlert) error {
	var first error
	for _, ch := range c.channels {
		if err := ch.SendAlert(alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
