package device

import "time"

// Default values applied when a registration omits optional fields.
const (
	// DefaultLocation is recorded when a device registers without a location.
	DefaultLocation = "Unknown"

	// DefaultType is recorded when a device registers without a type.
	DefaultType = "sensor"
)

// Device is the persistent record for a field device.
//
// A device row is created (or refreshed) when the device first registers and
// survives across connections. IsOnline reflects connectivity as the registry
// and reaper see it; LastSeenAt is refreshed by heartbeats and accepted
// telemetry as well as registration.
type Device struct {
	// ID is the device-chosen stable identifier (e.g., "kiln-temp-01").
	ID string `json:"deviceId"`

	// Name is the human-readable device name.
	Name string `json:"deviceName"`

	// Location describes where the device is installed. Nil means unknown.
	Location *string `json:"location,omitempty"`

	// Type categorises the device (e.g., "sensor", "actuator").
	Type string `json:"type"`

	// IsOnline is true while the device has a live session, and until the
	// reaper demotes it after the stale threshold passes with no heartbeat.
	IsOnline bool `json:"isOnline"`

	// LastSeenAt is the last registration, heartbeat, or accepted telemetry
	// batch. Nil for devices that have never been seen (not expected in
	// practice since registration sets it).
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`

	// TelemetryCount is the lifetime count of accepted telemetry readings.
	TelemetryCount int64 `json:"telemetryCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registration carries the identity a device announces when it connects.
// Optional fields default to DefaultLocation and DefaultType when empty.
type Registration struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"deviceName"`
	Location string `json:"location"`
	Type     string `json:"type"`
}
