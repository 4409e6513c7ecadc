package gateway

import (
	"sync"

	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
)

// Broadcaster is the fan-out surface the coordinator and reaper publish
// through. Hub implements it; tests substitute a recorder.
type Broadcaster interface {
	// Broadcast delivers an event to every connected dashboard client.
	// Delivery is best-effort and never blocks the caller.
	Broadcast(event string, payload any)
}

// ConnCloser closes a connection by its ID.
// The hub implements it; the coordinator uses it to evict superseded
// connections without holding a reference to the transport.
type ConnCloser interface {
	CloseConn(connID string)
}

// Hub tracks connected WebSocket clients and fans events out to dashboards.
//
// Device clients are registered here too (so shutdown and supersession can
// close them), but broadcasts go only to dashboard clients. Each client has
// a buffered send channel; a slow dashboard drops frames rather than
// stalling the publisher.
type Hub struct {
	logger  *logging.Logger
	clients map[*Client]struct{}
	byID    map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[*Client]struct{}),
		byID:    make(map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.byID[client.id] = client
	h.mu.Unlock()
	h.logger.Debug("client connected",
		"conn_id", client.id,
		"dashboard", client.dashboard,
		"clients", h.ClientCount(),
	)
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	if h.byID[client.id] == client {
		delete(h.byID, client.id)
	}
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("client disconnected", "conn_id", client.id, "clients", h.ClientCount())
}

// Broadcast sends an event to all dashboard clients.
//
// The client list is snapshotted under the hub lock, then released before
// sending so a full client buffer never holds the lock.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.dashboard {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}

	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "event", event, "recipients", len(clients))
	}
}

// CloseConn closes the connection with the given ID, if still present.
//
// Used when a device re-registers on a new connection: the superseded
// connection is closed, its readPump exits, and its disconnect resolves as a
// no-op through compare-and-remove.
func (h *Hub) CloseConn(connID string) {
	h.mu.RLock()
	client := h.byID[connID]
	h.mu.RUnlock()

	if client != nil && client.conn != nil {
		client.conn.Close() //nolint:errcheck // Best-effort close of superseded connection
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly. Called on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close() //nolint:errcheck // Shutdown path
		}
		delete(h.clients, client)
		delete(h.byID, client.id)
	}
}
