package telemetry

import (
	"fmt"
	"math"
	"strings"
)

// Validation limits for telemetry batches.
const (
	// maxSamplesPerBatch bounds a single submission. Larger batches suggest
	// a misbehaving device buffering far beyond its reporting interval.
	maxSamplesPerBatch = 1000

	// maxMetricNameLength bounds metric names.
	maxMetricNameLength = 64

	// maxUnitLength bounds unit strings.
	maxUnitLength = 32
)

// validateBatch checks a batch before persistence.
//
// A batch is rejected as a whole on the first problem found; there is no
// partial acceptance. Returned errors wrap ErrMalformedBatch.
func validateBatch(batch Batch) error {
	if batch.DeviceID == "" {
		return fmt.Errorf("%w: missing device id", ErrMalformedBatch)
	}
	if len(batch.Samples) == 0 {
		return fmt.Errorf("%w: empty batch", ErrMalformedBatch)
	}
	if len(batch.Samples) > maxSamplesPerBatch {
		return fmt.Errorf("%w: %d samples exceeds limit of %d", ErrMalformedBatch, len(batch.Samples), maxSamplesPerBatch)
	}

	for i, s := range batch.Samples {
		if err := validateSample(s); err != nil {
			return fmt.Errorf("%w: sample %d: %v", ErrMalformedBatch, i, err)
		}
	}

	return nil
}

// validateSample checks a single reading.
func validateSample(s Sample) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("empty metric name")
	}
	if len(name) > maxMetricNameLength {
		return fmt.Errorf("metric name exceeds %d characters", maxMetricNameLength)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return fmt.Errorf("metric %q: value is not finite", name)
	}
	if s.Unit != nil && len(*s.Unit) > maxUnitLength {
		return fmt.Errorf("metric %q: unit exceeds %d characters", name, maxUnitLength)
	}
	return nil
}
