package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/config"
)

// Client represents one WebSocket connection, device or dashboard.
//
// Each client runs a read pump and a write pump. All outbound traffic goes
// through the buffered send channel; trySend drops frames for a slow client
// rather than blocking the sender.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	coord *Coordinator

	// dashboard marks authenticated dashboard clients, which receive
	// broadcasts and may not submit device traffic.
	dashboard bool

	// subject is the token subject for dashboard clients, empty for devices.
	subject string
}

// Send encodes an event and queues it for delivery.
// Implements Sender. Delivery is best-effort.
func (c *Client) Send(event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		c.hub.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}
	c.trySend(data)
}

// trySend attempts to queue data for the write pump.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *Client) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// readPump reads frames from the connection and dispatches them.
//
// On exit the client is unregistered from the hub and its disconnect runs
// through the coordinator, where compare-and-remove decides whether the
// device actually goes offline.
func (c *Client) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // Read side is done either way
		c.coord.Disconnect(context.Background(), c.id)
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "conn_id", c.id, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "conn_id", c.id, "error", err)
			}
			return
		}
		// Any frame resets the read deadline; devices that heartbeat at the
		// application level stay alive even without protocol pongs.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.dispatch(message)
	}
}

// writePump writes queued frames and protocol pings to the connection.
func (c *Client) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // Write side is done either way
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame to the coordinator.
func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.Send(EventDeviceError, ErrorPayload{Error: "invalid JSON frame"})
		return
	}

	// Dashboards are read-only subscribers.
	if c.dashboard {
		c.Send(EventDeviceError, ErrorPayload{Error: "dashboard connections cannot submit device events"})
		return
	}

	ctx := context.Background()

	switch env.Event {
	case EventDeviceRegister:
		var payload RegisterPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.Send(EventDeviceError, ErrorPayload{Error: "invalid register payload"})
			return
		}
		c.coord.Register(ctx, c, c.id, payload) //nolint:errcheck // Errors are reported to the device via Send

	case EventDeviceHeartbeat:
		var payload HeartbeatPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.Send(EventDeviceError, ErrorPayload{Error: "invalid heartbeat payload"})
			return
		}
		c.coord.Heartbeat(ctx, c, payload)

	case EventTelemetryData:
		var payload TelemetryPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.Send(EventTelemetryError, ErrorPayload{Error: "invalid telemetry payload"})
			return
		}
		c.coord.Ingest(ctx, c, payload) //nolint:errcheck // Errors are reported to the device via Send

	default:
		c.Send(EventDeviceError, ErrorPayload{Error: "unknown event: " + env.Event})
	}
}
