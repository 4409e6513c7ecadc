package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store defines the interface for telemetry persistence.
// This abstraction enables unit testing the pipeline without a database.
type Store interface {
	// InsertBatch persists a set of records atomically, incrementing the
	// owning device's lifetime telemetry count and refreshing its
	// last_seen_at in the same transaction. All records must share one
	// device and one timestamp.
	InsertBatch(ctx context.Context, records []Record) error

	// RecentByDevice returns the most recent records for a device, newest
	// first, up to limit.
	RecentByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed telemetry store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InsertBatch persists records and the device counter bump in one transaction.
//
// Atomicity is the point: a failure anywhere rolls back every insert and the
// counter update, so the lifetime count never drifts from the stored rows.
func (s *SQLiteStore) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	deviceID := records[0].DeviceID
	seenAt := records[0].CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	insert := `
		INSERT INTO telemetry (id, device_id, metric, value, unit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	for _, rec := range records {
		var unit sql.NullString
		if rec.Unit != nil {
			unit = sql.NullString{String: *rec.Unit, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, insert,
			rec.ID,
			rec.DeviceID,
			rec.Metric,
			rec.Value,
			unit,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting telemetry record: %w", err)
		}
	}

	now := time.Now().UTC()
	update := `
		UPDATE devices
		SET telemetry_count = telemetry_count + ?,
		    last_seen_at = ?,
		    updated_at = ?
		WHERE id = ?`

	result, err := tx.ExecContext(ctx, update,
		len(records),
		seenAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		deviceID,
	)
	if err != nil {
		return fmt.Errorf("updating device counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Foreign keys would also catch this on insert; keep the message
		// specific either way.
		return fmt.Errorf("device %s not found", deviceID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing telemetry batch: %w", err)
	}
	return nil
}

// RecentByDevice returns the most recent records for a device, newest first.
func (s *SQLiteStore) RecentByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, device_id, metric, value, unit, created_at
		FROM telemetry
		WHERE device_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var unit sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Metric, &rec.Value, &unit, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry record: %w", err)
		}

		if unit.Valid {
			rec.Unit = &unit.String
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry: %w", err)
	}

	return records, nil
}
