// Package telemetry implements the telemetry ingestion pipeline.
//
// Batches arrive from the WebSocket gateway or the MQTT bridge, are validated
// as a unit, stamped with a single ingestion timestamp, and persisted
// atomically together with the owning device's lifetime counter and last-seen
// refresh. Accepted records are returned to the caller for fan-out; the store
// is never re-queried to build a broadcast.
package telemetry
