package live

import (
	"encoding/json"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

func testAlert(t *testing.T) events.ThreatAlert {
	addr, err := netip.ParseAddr("10.0.0.1")
	require.NoError(t, err)
	return events.ThreatAlert{
		ID:      "alert-1",
		Address: addr,
		Kind:    events.KindSSHBruteForce,
		Count:   6,
		At:      time.Unix(0, 0).UTC(),
	}
}

func TestMarshalForTest_RoundTripsThroughJSON(t *testing.T) {
	alert := testAlert(t)

	b, err := MarshalForTest(alert)
	require.NoError(t, err)

	var got events.ThreatAlert
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, alert.ID, got.ID)
	assert.Equal(t, alert.Address, got.Address)
	assert.Equal(t, alert.Kind, got.Kind)
	assert.Equal(t, alert.Count, got.Count)
}

func newRegisteredClient(h *Hub, buf int) *client {
	c := &client{send: make(chan events.ThreatAlert, buf)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func TestHub_BroadcastDeliversToEveryClient(t *testing.T) {
	h := NewHub()
	a := newRegisteredClient(h, 4)
	b := newRegisteredClient(h, 4)
	alert := testAlert(t)

	h.Broadcast(alert)

	select {
	case got := <-a.send:
		assert.Equal(t, alert.ID, got.ID)
	default:
		t.Fatal("client a never received the alert")
	}
	select {
	case got := <-b.send:
		assert.Equal(t, alert.ID, got.ID)
	default:
		t.Fatal("client b never received the alert")
	}
}

func TestHub_BroadcastDropsClientWhoseBufferIsFull(t *testing.T) {
	h := NewHub()
	c := newRegisteredClient(h, 1)
	alert := testAlert(t)

	h.Broadcast(alert) // fills the 1-slot buffer
	h.Broadcast(alert) // must drop c instead of blocking

	h.mu.Lock()
	_, stillRegistered := h.clients[c]
	h.mu.Unlock()
	assert.False(t, stillRegistered)

	<-c.send // the alert buffered by the first Broadcast
	_, ok := <-c.send
	assert.False(t, ok, "send channel should be closed once the client is dropped")
}

func TestHub_RemoveIsSafeToCallTwice(t *testing.T) {
	h := NewHub()
	c := newRegisteredClient(h, 1)

	assert.NotPanics(t, func() {
		h.remove(c)
		h.remove(c)
	})
}
