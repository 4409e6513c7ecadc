package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
)

// Pipeline validates, stamps, and persists telemetry batches.
//
// It is the single ingestion path: the WebSocket gateway and the MQTT bridge
// both feed batches through here, so validation and the batch-atomic
// timestamp rule live in exactly one place.
type Pipeline struct {
	store  Store
	logger *logging.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewPipeline creates a telemetry ingestion pipeline.
func NewPipeline(store Store, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		logger: logger.With("component", "telemetry"),
		now:    time.Now,
	}
}

// Ingest validates and persists a batch.
//
// Every sample in an accepted batch is stamped with the same ingestion
// timestamp, which is also returned so callers can echo it in acks and
// broadcasts. Rejection is all-or-nothing: a malformed batch persists
// nothing and returns ErrMalformedBatch; a persistence failure returns
// ErrStorageUnavailable with nothing committed.
//
// The returned records are exactly what was stored. Callers broadcast these
// directly rather than re-querying the store, so a concurrent write can
// never leak someone else's rows into this batch's fan-out.
func (p *Pipeline) Ingest(ctx context.Context, batch Batch) ([]Record, time.Time, error) {
	if err := validateBatch(batch); err != nil {
		p.logger.Warn("telemetry batch rejected",
			"device_id", batch.DeviceID,
			"samples", len(batch.Samples),
			"error", err,
		)
		return nil, time.Time{}, err
	}

	stamp := p.now().UTC()

	records := make([]Record, 0, len(batch.Samples))
	for _, s := range batch.Samples {
		records = append(records, Record{
			ID:        uuid.NewString(),
			DeviceID:  batch.DeviceID,
			Metric:    s.Name,
			Value:     s.Value,
			Unit:      s.Unit,
			CreatedAt: stamp,
		})
	}

	if err := p.store.InsertBatch(ctx, records); err != nil {
		p.logger.Error("telemetry batch persistence failed",
			"device_id", batch.DeviceID,
			"samples", len(records),
			"error", err,
		)
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	p.logger.Debug("telemetry batch accepted",
		"device_id", batch.DeviceID,
		"samples", len(records),
	)

	return records, stamp, nil
}

// Recent returns the most recent stored records for a device, newest first.
func (p *Pipeline) Recent(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	return p.store.RecentByDevice(ctx, deviceID, limit)
}
