package device_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldgrid/fieldgrid-core/internal/device"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/database"
	_ "github.com/fieldgrid/fieldgrid-core/migrations"
)

// newTestRepo creates a migrated temp database and returns a repository on it.
func newTestRepo(t *testing.T) *device.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	return device.NewSQLiteRepository(db.DB)
}

func testRegistration(id string) device.Registration {
	return device.Registration{
		DeviceID: id,
		Name:     "Test Device",
		Location: "Lab",
		Type:     "sensor",
	}
}

func TestUpsert_CreatesDevice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	d, err := repo.Upsert(ctx, testRegistration("kiln-temp-01"), now)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if d.ID != "kiln-temp-01" {
		t.Errorf("ID = %q", d.ID)
	}
	if !d.IsOnline {
		t.Error("IsOnline = false, want true after registration")
	}
	if d.TelemetryCount != 0 {
		t.Errorf("TelemetryCount = %d, want 0", d.TelemetryCount)
	}
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(now) {
		t.Errorf("LastSeenAt = %v, want %v", d.LastSeenAt, now)
	}
}

func TestUpsert_RefreshesExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	first := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	created, err := repo.Upsert(ctx, testRegistration("kiln-temp-01"), first)
	if err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	// Simulate accumulated telemetry, then re-register with new identity.
	if err := repo.MarkOffline(ctx, "kiln-temp-01"); err != nil {
		t.Fatalf("MarkOffline() error = %v", err)
	}

	second := first.Add(30 * time.Minute)
	reg := testRegistration("kiln-temp-01")
	reg.Name = "Kiln Temperature (recalibrated)"
	reg.Location = "Furnace Hall"

	updated, err := repo.Upsert(ctx, reg, second)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if updated.Name != "Kiln Temperature (recalibrated)" {
		t.Errorf("Name = %q, want refreshed name", updated.Name)
	}
	if updated.Location == nil || *updated.Location != "Furnace Hall" {
		t.Errorf("Location = %v, want refreshed location", updated.Location)
	}
	if !updated.IsOnline {
		t.Error("IsOnline = false, want true after re-registration")
	}
	if updated.LastSeenAt == nil || !updated.LastSeenAt.Equal(second) {
		t.Errorf("LastSeenAt = %v, want %v", updated.LastSeenAt, second)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on upsert: %v != %v", updated.CreatedAt, created.CreatedAt)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "ghost-01")
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestTouch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	if _, err := repo.Upsert(ctx, testRegistration("kiln-temp-01"), start); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	later := start.Add(5 * time.Minute)
	if err := repo.Touch(ctx, "kiln-temp-01", later); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	d, err := repo.GetByID(ctx, "kiln-temp-01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", d.LastSeenAt, later)
	}
}

func TestTouch_UnknownDeviceIsNoOp(t *testing.T) {
	repo := newTestRepo(t)

	// Unknown devices must neither error nor create a record.
	if err := repo.Touch(context.Background(), "ghost-01", time.Now()); err != nil {
		t.Fatalf("Touch() error = %v, want nil for unknown device", err)
	}

	_, err := repo.GetByID(context.Background(), "ghost-01")
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Error("Touch() created a record for an unknown device")
	}
}

func TestMarkOffline(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if _, err := repo.Upsert(ctx, testRegistration("kiln-temp-01"), now); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.MarkOffline(ctx, "kiln-temp-01"); err != nil {
		t.Fatalf("MarkOffline() error = %v", err)
	}

	d, err := repo.GetByID(ctx, "kiln-temp-01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.IsOnline {
		t.Error("IsOnline = true after MarkOffline()")
	}
	// last_seen_at records when the device was heard from, not demoted.
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(now) {
		t.Errorf("LastSeenAt = %v, want untouched %v", d.LastSeenAt, now)
	}

	if err := repo.MarkOffline(ctx, "ghost-01"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("MarkOffline(unknown) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestDemoteStale(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// stale-01 last seen 10 minutes ago, fresh-01 seen just now,
	// offline-01 already offline and must not reappear in the demoted set.
	if _, err := repo.Upsert(ctx, testRegistration("stale-01"), now.Add(-10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Upsert(ctx, testRegistration("fresh-01"), now); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Upsert(ctx, testRegistration("offline-01"), now.Add(-20*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkOffline(ctx, "offline-01"); err != nil {
		t.Fatal(err)
	}

	cutoff := now.Add(-5 * time.Minute)
	demoted, err := repo.DemoteStale(ctx, cutoff)
	if err != nil {
		t.Fatalf("DemoteStale() error = %v", err)
	}

	if len(demoted) != 1 {
		t.Fatalf("demoted %d devices, want 1", len(demoted))
	}
	if demoted[0].ID != "stale-01" {
		t.Errorf("demoted %q, want stale-01", demoted[0].ID)
	}
	if demoted[0].IsOnline {
		t.Error("demoted device reported as online")
	}
	want := now.Add(-10 * time.Minute)
	if demoted[0].LastSeenAt == nil || !demoted[0].LastSeenAt.Equal(want) {
		t.Errorf("demoted LastSeenAt = %v, want stored %v", demoted[0].LastSeenAt, want)
	}

	// Verify persisted state.
	stale, _ := repo.GetByID(ctx, "stale-01")
	if stale.IsOnline {
		t.Error("stale-01 still online in store")
	}
	fresh, _ := repo.GetByID(ctx, "fresh-01")
	if !fresh.IsOnline {
		t.Error("fresh-01 was demoted")
	}

	// A second sweep finds nothing.
	again, err := repo.DemoteStale(ctx, cutoff)
	if err != nil {
		t.Fatalf("second DemoteStale() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second sweep demoted %d devices, want 0", len(again))
	}
}

func TestList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	regB := testRegistration("b-device")
	regB.Name = "Bravo"
	regA := testRegistration("a-device")
	regA.Name = "Alpha"

	if _, err := repo.Upsert(ctx, regB, now); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Upsert(ctx, regA, now); err != nil {
		t.Fatal(err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("List() returned %d devices, want 2", len(devices))
	}
	if devices[0].Name != "Alpha" || devices[1].Name != "Bravo" {
		t.Errorf("List() not ordered by name: %q, %q", devices[0].Name, devices[1].Name)
	}
}
