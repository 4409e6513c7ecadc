package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry mirrors an accepted telemetry reading to InfluxDB.
//
// The write is non-blocking; points are batched and sent asynchronously.
// All readings in one batch share the same timestamp, so callers pass the
// batch's ingestion time rather than time.Now().
//
// Parameters:
//   - deviceID: Device identifier (e.g., "kiln-temp-01")
//   - metric: The metric name (e.g., "temperature", "humidity")
//   - value: The numeric reading
//   - unit: Optional unit string; empty means unitless
//   - ts: The ingestion timestamp shared by the batch
//
// Example:
//
//	client.WriteTelemetry("kiln-temp-01", "temperature", 812.4, "celsius", batchTime)
func (c *Client) WriteTelemetry(deviceID, metric string, value float64, unit string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"metric":    metric,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"telemetry",
		tags,
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteHeartbeat records a device heartbeat as a liveness point.
//
// Heartbeats carry no payload beyond the device identity; the point value
// is a constant 1 so dashboards can count beats per interval.
func (c *Client) WriteHeartbeat(deviceID string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"alive": 1,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, ts)
	c.writeAPI.WritePoint(point)
}
