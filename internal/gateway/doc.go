// Package gateway is the connectivity core of FieldGrid: the WebSocket
// server devices and dashboards connect to, the hub that fans events out,
// the session lifecycle coordinator, and the stale-session reaper.
//
// Connection roles are asymmetric. Dashboards present a JWT and become
// read-only subscribers; devices connect bare and claim an identity by
// registering. A device's identity is bound to its connection in the session
// registry with last-write-wins semantics, and every teardown path
// (disconnect, supersession, reaper) resolves through compare-and-remove so
// a stale connection can never take a fresh session offline.
//
// The optional MQTT bridge reuses the same coordinator for devices that
// publish over MQTT instead of holding a WebSocket.
package gateway
