package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newSession(deviceID, connID string) Session {
	return Session{DeviceID: deviceID, ConnID: connID, CreatedAt: time.Now()}
}

func TestPutAndFind(t *testing.T) {
	r := NewRegistry()

	_, superseded := r.Put(newSession("kiln-temp-01", "conn-a"))
	if superseded {
		t.Error("first Put() reported superseded")
	}

	s, ok := r.Find("kiln-temp-01")
	if !ok {
		t.Fatal("Find() did not find registered session")
	}
	if s.ConnID != "conn-a" {
		t.Errorf("ConnID = %q, want conn-a", s.ConnID)
	}

	if _, ok := r.Find("ghost-01"); ok {
		t.Error("Find() found unregistered device")
	}
}

func TestPut_Supersession(t *testing.T) {
	r := NewRegistry()

	r.Put(newSession("motor-01", "conn-a"))
	prev, superseded := r.Put(newSession("motor-01", "conn-b"))

	if !superseded {
		t.Fatal("second Put() for same device did not report supersession")
	}
	if prev.ConnID != "conn-a" {
		t.Errorf("superseded ConnID = %q, want conn-a", prev.ConnID)
	}

	s, _ := r.Find("motor-01")
	if s.ConnID != "conn-b" {
		t.Errorf("current ConnID = %q, want conn-b (last write wins)", s.ConnID)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRemove_CompareAndRemove(t *testing.T) {
	r := NewRegistry()

	r.Put(newSession("motor-01", "conn-a"))
	r.Put(newSession("motor-01", "conn-b"))

	// Stale disconnect from the superseded connection must not evict the
	// fresh binding.
	if r.Remove("motor-01", "conn-a") {
		t.Error("Remove() with stale conn ID reported removal")
	}
	if s, ok := r.Find("motor-01"); !ok || s.ConnID != "conn-b" {
		t.Fatalf("fresh binding lost: %+v, %v", s, ok)
	}

	// The holder itself can remove.
	if !r.Remove("motor-01", "conn-b") {
		t.Error("Remove() by current holder failed")
	}
	if _, ok := r.Find("motor-01"); ok {
		t.Error("session still present after Remove()")
	}

	// Removing an absent binding is a no-op.
	if r.Remove("motor-01", "conn-b") {
		t.Error("Remove() on absent binding reported removal")
	}
}

func TestFindByConn(t *testing.T) {
	r := NewRegistry()

	r.Put(newSession("kiln-temp-01", "conn-a"))

	s, ok := r.FindByConn("conn-a")
	if !ok || s.DeviceID != "kiln-temp-01" {
		t.Fatalf("FindByConn() = %+v, %v", s, ok)
	}

	if _, ok := r.FindByConn("conn-unknown"); ok {
		t.Error("FindByConn() found unknown connection")
	}

	// After supersession the old connection no longer resolves.
	r.Put(newSession("kiln-temp-01", "conn-b"))
	if _, ok := r.FindByConn("conn-a"); ok {
		t.Error("FindByConn() resolved superseded connection")
	}
	if s, ok := r.FindByConn("conn-b"); !ok || s.DeviceID != "kiln-temp-01" {
		t.Errorf("FindByConn(conn-b) = %+v, %v", s, ok)
	}
}

func TestSnapshotAndLen(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("device-%02d", i)
		r.Put(newSession(id, "conn-"+id))
	}

	if r.Len() != 10 {
		t.Errorf("Len() = %d, want 10", r.Len())
	}

	snap := r.Snapshot()
	if len(snap) != 10 {
		t.Errorf("Snapshot() returned %d sessions, want 10", len(snap))
	}

	seen := make(map[string]bool)
	for _, s := range snap {
		seen[s.DeviceID] = true
	}
	if len(seen) != 10 {
		t.Errorf("Snapshot() contains %d distinct devices, want 10", len(seen))
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	// Hammer the same set of devices from many goroutines; the race
	// detector does the real checking here.
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				deviceID := fmt.Sprintf("device-%d", i%10)
				connID := fmt.Sprintf("conn-%d-%d", g, i)
				r.Put(newSession(deviceID, connID))
				r.Find(deviceID)
				r.FindByConn(connID)
				r.Remove(deviceID, connID)
			}
		}(g)
	}

	wg.Wait()

	// Every Put was followed by a Remove attempt; bindings left behind are
	// those superseded before their Remove ran, which is at most one per
	// device.
	if r.Len() > 10 {
		t.Errorf("Len() = %d after churn, want <= 10", r.Len())
	}
}
