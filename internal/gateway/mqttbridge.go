package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/mqtt"
	"github.com/fieldgrid/fieldgrid-core/internal/telemetry"
)

// Bridge feeds MQTT-delivered telemetry and heartbeats into the coordinator.
//
// The bridge is ingest-only: MQTT devices never hold a registry session, so
// they have no online/offline lifecycle here beyond the last-seen refreshes
// their traffic causes. Devices must have registered once over WebSocket (or
// been provisioned) before their telemetry is accepted; unknown devices get
// an error on their events topic.
type Bridge struct {
	client *mqtt.Client
	coord  *Coordinator
	qos    byte
	logger *logging.Logger
}

// mqttTelemetryPayload is the batch shape devices publish to their telemetry
// topic. The device ID comes from the topic, not the payload.
type mqttTelemetryPayload struct {
	Metrics []telemetry.Sample `json:"metrics"`
}

// NewBridge creates an MQTT ingest bridge over a connected client.
func NewBridge(client *mqtt.Client, coord *Coordinator, qos byte, logger *logging.Logger) *Bridge {
	return &Bridge{
		client: client,
		coord:  coord,
		qos:    qos,
		logger: logger.With("component", "mqtt_bridge"),
	}
}

// Start subscribes to the telemetry and heartbeat wildcards.
func (b *Bridge) Start() error {
	topics := mqtt.Topics{}

	if err := b.client.Subscribe(topics.AllTelemetry(), b.qos, b.handleTelemetry); err != nil {
		return fmt.Errorf("subscribing to telemetry: %w", err)
	}
	if err := b.client.Subscribe(topics.AllHeartbeats(), b.qos, b.handleHeartbeat); err != nil {
		return fmt.Errorf("subscribing to heartbeats: %w", err)
	}

	b.logger.Info("mqtt ingest bridge started",
		"telemetry_topic", topics.AllTelemetry(),
		"heartbeat_topic", topics.AllHeartbeats(),
	)
	return nil
}

// handleTelemetry processes one telemetry batch from a device topic.
func (b *Bridge) handleTelemetry(topic string, payload []byte) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("unparseable telemetry topic %q", topic)
	}

	var batch mqttTelemetryPayload
	if err := json.Unmarshal(payload, &batch); err != nil {
		return fmt.Errorf("unmarshalling telemetry from %s: %w", deviceID, err)
	}

	sender := b.senderFor(deviceID)
	//nolint:errcheck // Errors are reported to the device via its events topic
	b.coord.Ingest(context.Background(), sender, TelemetryPayload{
		DeviceID: deviceID,
		Metrics:  batch.Metrics,
	})
	return nil
}

// handleHeartbeat processes one heartbeat from a device topic.
func (b *Bridge) handleHeartbeat(topic string, _ []byte) error {
	deviceID := mqtt.DeviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("unparseable heartbeat topic %q", topic)
	}

	sender := b.senderFor(deviceID)
	b.coord.Heartbeat(context.Background(), sender, HeartbeatPayload{DeviceID: deviceID})
	return nil
}

// senderFor returns a Sender that publishes replies to the device's events topic.
func (b *Bridge) senderFor(deviceID string) Sender {
	return &mqttSender{
		client:   b.client,
		topic:    mqtt.Topics{}.DeviceEvents(deviceID),
		qos:      b.qos,
		deviceID: deviceID,
		logger:   b.logger,
	}
}

// mqttSender adapts the coordinator's reply path onto MQTT publish.
type mqttSender struct {
	client   *mqtt.Client
	topic    string
	qos      byte
	deviceID string
	logger   *logging.Logger
}

// Send publishes an event frame to the device's events topic.
// Uses the same envelope encoding as the WebSocket transport.
func (s *mqttSender) Send(event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		s.logger.Error("failed to encode mqtt reply", "event", event, "error", err)
		return
	}
	if err := s.client.Publish(s.topic, data, s.qos, false); err != nil {
		s.logger.Warn("failed to publish mqtt reply",
			"device_id", s.deviceID,
			"event", event,
			"error", err,
		)
	}
}
