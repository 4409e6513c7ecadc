package telemetry

import "errors"

// Domain-specific errors for telemetry ingestion.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedBatch is returned when a batch fails validation.
	// Nothing from a malformed batch is persisted: batches are all-or-nothing.
	ErrMalformedBatch = errors.New("telemetry: malformed batch")

	// ErrStorageUnavailable is returned when persistence fails.
	// The batch may be retried; no partial writes survive.
	ErrStorageUnavailable = errors.New("telemetry: storage unavailable")
)
