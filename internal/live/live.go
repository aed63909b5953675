// Package live serves the live alert feed to SOC dashboards over a
// websocket, replacing the teacher's go-socket.io hub
// (internal/websocket's dispatcher) with gorilla/websocket per
// SPEC_FULL.md's DOMAIN STACK mapping. Broadcast is unconditional: dashboard
// visibility must not depend on storage health (SPEC_FULL.md §4.D
// expanded).
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected dashboard sockets and fans alerts out to all of
// them. A slow or dead client is dropped rather than allowed to back up
// the Reactor.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan events.ThreatAlert
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection until it closes or falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live feed upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan events.ThreatAlert, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop exists only to notice the client going away; dashboards never
// send anything meaningful over this socket.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for alert := range c.send {
		if err := c.conn.WriteJSON(alert); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast pushes alert to every connected client, dropping clients whose
// send buffer is already full instead of blocking the Reactor.
func (h *Hub) Broadcast(alert events.ThreatAlert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- alert:
		default:
			slog.Warn("dropping slow live feed client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// MarshalForTest is a small helper exercised by tests to confirm alerts
// round-trip through JSON the way dashboards expect.
func MarshalForTest(alert events.ThreatAlert) ([]byte, error) {
	return json.Marshal(alert)
}
