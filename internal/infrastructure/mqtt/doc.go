// Package mqtt provides MQTT broker connectivity for the optional ingest bridge.
//
// WebSocket is the primary device transport; this package lets constrained
// devices publish telemetry and heartbeats over MQTT instead. The bridge is
// ingest-only: MQTT devices get no registry session and no online/offline
// lifecycle beyond last-seen refreshes.
//
// Topic scheme:
//
//	fieldgrid/telemetry/{device_id}      telemetry batches from devices
//	fieldgrid/heartbeat/{device_id}      liveness pings from devices
//	fieldgrid/device/{device_id}/events  acks and errors back to a device
//	fieldgrid/system/status              bridge status (retained, with LWT)
//
// The client handles reconnection with exponential backoff and restores
// subscriptions automatically after a reconnect.
package mqtt
