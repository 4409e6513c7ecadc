// Package device holds the persistent device model for FieldGrid Core.
//
// A device row outlives any single connection: registration upserts it,
// heartbeats and telemetry refresh last_seen_at, and the stale-session reaper
// demotes rows whose last_seen_at has fallen behind the threshold. The
// Repository interface abstracts persistence so session and gateway logic can
// be tested against mocks.
package device
