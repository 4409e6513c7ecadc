package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/fieldgrid/fieldgrid-core/internal/device"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
	"github.com/fieldgrid/fieldgrid-core/internal/session"
)

func newTestReaper(repo *MockRepository, registry *session.Registry, hub *MockBroadcaster, now time.Time) *Reaper {
	r := NewReaper(repo, registry, hub, logging.Default(), time.Minute, 5*time.Minute)
	r.now = func() time.Time { return now }
	return r
}

func onlineDevice(id string, lastSeen time.Time) *device.Device {
	seen := lastSeen
	return &device.Device{ID: id, Name: id, IsOnline: true, LastSeenAt: &seen}
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC)
	repo := NewMockRepository()
	registry := session.NewRegistry()
	hub := &MockBroadcaster{}

	// Two stale, one fresh.
	staleSeen := now.Add(-10 * time.Minute)
	repo.devices["kiln-temp-01"] = onlineDevice("kiln-temp-01", staleSeen)
	repo.devices["motor-01"] = onlineDevice("motor-01", staleSeen)
	repo.devices["fresh-01"] = onlineDevice("fresh-01", now.Add(-time.Minute))

	registry.Put(session.Session{DeviceID: "kiln-temp-01", ConnID: "conn-a", CreatedAt: staleSeen})
	registry.Put(session.Session{DeviceID: "motor-01", ConnID: "conn-b", CreatedAt: staleSeen})

	r := newTestReaper(repo, registry, hub, now)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	// One offline broadcast per stale device, none for the fresh one.
	if len(hub.events) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(hub.events))
	}
	seen := map[string]bool{}
	for _, e := range hub.events {
		if e.event != EventDeviceStatus {
			t.Fatalf("broadcast event = %q, want device:status", e.event)
		}
		status := e.payload.(StatusPayload)
		if status.IsOnline {
			t.Errorf("demotion broadcast for %s reports online", status.DeviceID)
		}
		// Broadcast carries the stored last-seen time, not the sweep time.
		if status.LastSeenAt == nil || !status.LastSeenAt.Equal(staleSeen) {
			t.Errorf("LastSeenAt = %v, want %v", status.LastSeenAt, staleSeen)
		}
		seen[status.DeviceID] = true
	}
	if !seen["kiln-temp-01"] || !seen["motor-01"] || seen["fresh-01"] {
		t.Errorf("broadcast set = %v", seen)
	}

	// Stale sessions evicted.
	if registry.Len() != 0 {
		t.Errorf("registry.Len() = %d, want 0", registry.Len())
	}
	if repo.devices["fresh-01"].IsOnline != true {
		t.Error("fresh device was demoted")
	}
}

func TestSweep_ReconnectMidSweep(t *testing.T) {
	now := time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC)
	repo := NewMockRepository()
	registry := session.NewRegistry()
	hub := &MockBroadcaster{}

	// The store already demoted the device (its row was stale at query time),
	// but the device re-registered since: its registry session is newer than
	// the sweep start.
	repo.demoteList = []device.Device{*onlineDevice("kiln-temp-01", now.Add(-10*time.Minute))}
	registry.Put(session.Session{
		DeviceID:  "kiln-temp-01",
		ConnID:    "conn-new",
		CreatedAt: now.Add(time.Second),
	})

	r := newTestReaper(repo, registry, hub, now)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	// No offline broadcast, fresh session retained.
	if len(hub.events) != 0 {
		t.Errorf("broadcasts = %+v, want none for a reconnected device", hub.events)
	}
	if s, ok := registry.Find("kiln-temp-01"); !ok || s.ConnID != "conn-new" {
		t.Error("fresh session was evicted")
	}
}

func TestSweep_NothingStale(t *testing.T) {
	now := time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC)
	repo := NewMockRepository()
	repo.devices["fresh-01"] = onlineDevice("fresh-01", now.Add(-time.Minute))
	hub := &MockBroadcaster{}

	r := newTestReaper(repo, session.NewRegistry(), hub, now)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(hub.events) != 0 {
		t.Errorf("broadcasts = %+v, want none", hub.events)
	}
}

func TestSweep_SecondSweepQuiet(t *testing.T) {
	now := time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC)
	repo := NewMockRepository()
	repo.devices["kiln-temp-01"] = onlineDevice("kiln-temp-01", now.Add(-10*time.Minute))
	hub := &MockBroadcaster{}

	r := newTestReaper(repo, session.NewRegistry(), hub, now)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(hub.events) != 1 {
		t.Fatalf("first sweep broadcasts = %d, want 1", len(hub.events))
	}

	// Already offline now; a second sweep announces nothing.
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(hub.events) != 1 {
		t.Errorf("second sweep re-announced an offline device")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := NewMockRepository()
	r := NewReaper(repo, session.NewRegistry(), &MockBroadcaster{}, logging.Default(), 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancel")
	}
}
