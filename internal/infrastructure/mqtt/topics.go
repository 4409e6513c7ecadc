package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefix for all FieldGrid MQTT topics.
//
// Scheme: fieldgrid/{category}/{device_id}
//   - fieldgrid/telemetry/{device_id}  telemetry batches from devices
//   - fieldgrid/heartbeat/{device_id}  liveness pings from devices
//   - fieldgrid/device/{device_id}/events  acks and errors back to a device
//   - fieldgrid/system/status          bridge online/offline status (retained)
const TopicPrefix = "fieldgrid"

// Topics provides builders for FieldGrid MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.Telemetry("kiln-temp-01")
//	// Returns: "fieldgrid/telemetry/kiln-temp-01"
type Topics struct{}

// Telemetry returns the topic a device publishes telemetry batches to.
//
// Example: fieldgrid/telemetry/kiln-temp-01
func (Topics) Telemetry(deviceID string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefix, deviceID)
}

// Heartbeat returns the topic a device publishes heartbeats to.
//
// Example: fieldgrid/heartbeat/kiln-temp-01
func (Topics) Heartbeat(deviceID string) string {
	return fmt.Sprintf("%s/heartbeat/%s", TopicPrefix, deviceID)
}

// DeviceEvents returns the topic for acks and errors sent back to a device.
//
// Example: fieldgrid/device/kiln-temp-01/events
func (Topics) DeviceEvents(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/events", TopicPrefix, deviceID)
}

// AllTelemetry returns the wildcard pattern matching telemetry from any device.
//
// Example: fieldgrid/telemetry/+
func (Topics) AllTelemetry() string {
	return TopicPrefix + "/telemetry/+"
}

// AllHeartbeats returns the wildcard pattern matching heartbeats from any device.
//
// Example: fieldgrid/heartbeat/+
func (Topics) AllHeartbeats() string {
	return TopicPrefix + "/heartbeat/+"
}

// SystemStatus returns the topic for bridge online/offline status.
// Messages on this topic are retained so new subscribers see the last state.
//
// Example: fieldgrid/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceIDFromTopic extracts the device ID from a telemetry or heartbeat topic.
//
// Returns the empty string if the topic does not match either scheme.
//
// Example: "fieldgrid/telemetry/kiln-temp-01" -> "kiln-temp-01"
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix {
		return ""
	}
	if parts[1] != "telemetry" && parts[1] != "heartbeat" {
		return ""
	}
	return parts[2]
}
