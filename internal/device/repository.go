package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Upsert creates or refreshes a device from a registration.
	//
	// For a new device the registration fields are stored as given. For an
	// existing device the name, location, and type are overwritten with the
	// registration's values; telemetry_count and created_at are preserved.
	// Either way the device comes back online with last_seen_at = seenAt.
	Upsert(ctx context.Context, reg Registration, seenAt time.Time) (*Device, error)

	// Touch refreshes last_seen_at for a device without touching any other
	// field. Unknown devices are a silent no-op: heartbeats from devices
	// that never registered must not create records or fail.
	Touch(ctx context.Context, id string, seenAt time.Time) error

	// MarkOffline clears the online flag for a device. The stored
	// last_seen_at is left as-is; it records when the device was last heard
	// from, not when it was demoted.
	// Returns ErrDeviceNotFound if the device does not exist.
	MarkOffline(ctx context.Context, id string) error

	// DemoteStale atomically marks offline every device that is currently
	// online and was last seen strictly before cutoff, returning the
	// demoted devices with their stored last_seen_at values.
	//
	// The conditional update and the result set come from one statement, so
	// a device that heartbeats between sweep scheduling and execution is
	// never demoted.
	DemoteStale(ctx context.Context, cutoff time.Time) ([]Device, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// deviceColumns is the canonical column list for device queries.
const deviceColumns = `id, name, location, type, is_online, last_seen_at, telemetry_count, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Upsert creates or refreshes a device from a registration.
func (r *SQLiteRepository) Upsert(ctx context.Context, reg Registration, seenAt time.Time) (*Device, error) {
	now := time.Now().UTC()
	seen := seenAt.UTC().Format(time.RFC3339)

	// ON CONFLICT keeps telemetry_count and created_at; identity fields are
	// overwritten so a re-registration can rename or relocate a device.
	query := `
		INSERT INTO devices (id, name, location, type, is_online, last_seen_at, telemetry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			type = excluded.type,
			is_online = 1,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		reg.DeviceID,
		reg.Name,
		reg.Location,
		reg.Type,
		seen,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting device: %w", err)
	}

	return r.GetByID(ctx, reg.DeviceID)
}

// Touch refreshes last_seen_at for a device.
// A zero-row update (unknown device) is not an error.
func (r *SQLiteRepository) Touch(ctx context.Context, id string, seenAt time.Time) error {
	now := time.Now().UTC()
	query := `UPDATE devices SET last_seen_at = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query,
		seenAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}
	return nil
}

// MarkOffline clears the online flag for a device.
func (r *SQLiteRepository) MarkOffline(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `UPDATE devices SET is_online = 0, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("marking device offline: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// DemoteStale marks every stale online device offline in a single statement
// and returns the demoted set.
//
// Requires SQLite 3.35+ for RETURNING (satisfied by mattn/go-sqlite3's
// bundled library).
func (r *SQLiteRepository) DemoteStale(ctx context.Context, cutoff time.Time) ([]Device, error) {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET is_online = 0, updated_at = ?
		WHERE is_online = 1
		  AND last_seen_at IS NOT NULL
		  AND last_seen_at < ?
		RETURNING ` + deviceColumns

	rows, err := r.db.QueryContext(ctx, query,
		now.Format(time.RFC3339),
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("demoting stale devices: %w", err)
	}
	defer rows.Close()

	var demoted []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning demoted device: %w", err)
		}
		// The row was updated in place; reflect the demotion in the result.
		d.IsOnline = false
		demoted = append(demoted, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating demoted devices: %w", err)
	}

	return demoted, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var location sql.NullString
	var lastSeenAt sql.NullString
	var isOnline int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&location,
		&d.Type,
		&isOnline,
		&lastSeenAt,
		&d.TelemetryCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.IsOnline = isOnline != 0

	if location.Valid {
		d.Location = &location.String
	}
	if lastSeenAt.Valid {
		t, err := time.Parse(time.RFC3339, lastSeenAt.String)
		if err == nil {
			d.LastSeenAt = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}
