package telemetry

import "time"

// Sample is one named reading inside a batch, as sent by a device.
type Sample struct {
	// Name is the metric name (e.g., "temperature", "vibration_rms").
	Name string `json:"name"`

	// Value is the numeric reading. NaN and infinities are rejected at
	// validation; they have no JSON representation and poison aggregates.
	Value float64 `json:"value"`

	// Unit is the optional unit string (e.g., "celsius"). Nil means unitless.
	Unit *string `json:"unit,omitempty"`
}

// Batch is a set of samples submitted together by one device.
// All samples in a batch are stamped with a single ingestion timestamp.
type Batch struct {
	DeviceID string   `json:"deviceId"`
	Samples  []Sample `json:"metrics"`
}

// Record is a stored telemetry reading.
//
// JSON field names match the wire format broadcast to dashboards.
type Record struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      *string   `json:"unit,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
