package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldgrid/fieldgrid-core/internal/device"
	"github.com/fieldgrid/fieldgrid-core/internal/telemetry"
)

// Wire event names.
//
// These are fixed protocol identifiers shared with device firmware and the
// dashboard frontend. Changing one is a breaking protocol change.
const (
	// Inbound (device -> core).
	EventDeviceRegister  = "device:register"
	EventDeviceHeartbeat = "device:heartbeat"
	EventTelemetryData   = "telemetry:data"

	// Outbound (core -> device or dashboard).
	EventDeviceRegistered = "device:registered"
	EventDeviceError      = "device:error"
	EventHeartbeatAck     = "device:heartbeat:ack"
	EventDeviceStatus     = "device:status"
	EventTelemetryUpdate  = "telemetry:update"
	EventTelemetryError   = "telemetry:error"
)

// Envelope is the framing for every WebSocket message in both directions.
//
// Payload decoding is deferred so the dispatcher can route on the event name
// before committing to a payload shape.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RegisterPayload is the payload of device:register.
type RegisterPayload struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"deviceName"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type,omitempty"`
}

// HeartbeatPayload is the payload of device:heartbeat.
type HeartbeatPayload struct {
	DeviceID string `json:"deviceId"`
}

// TelemetryPayload is the payload of telemetry:data.
type TelemetryPayload struct {
	DeviceID string             `json:"deviceId"`
	Metrics  []telemetry.Sample `json:"metrics"`
}

// RegisteredPayload is the payload of device:registered.
type RegisteredPayload struct {
	Success bool           `json:"success"`
	Device  *device.Device `json:"device"`
}

// ErrorPayload is the payload of device:error and telemetry:error.
type ErrorPayload struct {
	Error string `json:"error"`
}

// HeartbeatAckPayload is the payload of device:heartbeat:ack.
// Heartbeats are always acked, known device or not.
type HeartbeatAckPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// StatusPayload is the payload of the device:status broadcast.
type StatusPayload struct {
	DeviceID   string     `json:"deviceId"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt"`
}

// UpdatePayload is the payload of the telemetry:update broadcast.
// Data carries the stored records, ids and shared timestamp included.
type UpdatePayload struct {
	DeviceID  string             `json:"deviceId"`
	Data      []telemetry.Record `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
}

// encodeEvent marshals an event and payload into a wire frame.
func encodeEvent(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", event, err)
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", event, err)
	}
	return data, nil
}
