// Package influxdb provides the optional time-series mirror for telemetry.
//
// SQLite is the system of record for devices and telemetry; when InfluxDB is
// enabled in configuration, accepted telemetry batches and heartbeats are
// additionally written here for long-range queries and dashboarding. The
// mirror is strictly best-effort: writes are batched and non-blocking, and a
// failed or absent InfluxDB never affects ingestion or session handling.
package influxdb
