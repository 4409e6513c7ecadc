package session

import (
	"hash/fnv"
	"sync"
	"time"
)

// shardCount is the number of lock shards in the registry.
// Power of two so the shard index is a cheap mask.
const shardCount = 32

// Session binds a device identity to a live connection.
//
// Sessions are values, not handles: the registry stores the current binding
// per device, and callers keep their own copy to compare against on removal.
type Session struct {
	// DeviceID is the registered device identity.
	DeviceID string

	// ConnID uniquely identifies the underlying connection. A device that
	// reconnects gets a new ConnID, which is what makes supersession
	// detectable.
	ConnID string

	// CreatedAt is when this binding was established.
	CreatedAt time.Time
}

// Registry tracks which connection currently speaks for each device.
//
// Locking is sharded by device ID so concurrent registrations and removals
// for different devices never contend. The connection index is sharded by
// connection ID independently; the disconnect path re-validates through
// compare-and-remove, so the two indexes never need a common lock.
type Registry struct {
	shards [shardCount]shard

	// connIndex maps connection ID to device ID for reverse lookup on
	// disconnect and unauthenticated ingest.
	connIndex [shardCount]connShard
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

type connShard struct {
	mu      sync.RWMutex
	devices map[string]string
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]Session)
	}
	for i := range r.connIndex {
		r.connIndex[i].devices = make(map[string]string)
	}
	return r
}

// shardFor returns the shard holding the given key.
func shardFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // fnv Write never fails
	return h.Sum32() & (shardCount - 1)
}

// Put installs a session as the current binding for its device.
//
// Last write wins: if another session already holds the device, it is
// replaced and returned with superseded=true so the caller can close the
// old connection without marking the device offline.
func (r *Registry) Put(s Session) (prev Session, superseded bool) {
	sh := &r.shards[shardFor(s.DeviceID)]

	sh.mu.Lock()
	prev, superseded = sh.sessions[s.DeviceID]
	sh.sessions[s.DeviceID] = s
	sh.mu.Unlock()

	if superseded {
		r.dropConn(prev.ConnID)
	}
	r.putConn(s.ConnID, s.DeviceID)

	return prev, superseded
}

// Remove deletes the binding for deviceID only if connID still holds it.
//
// Returns true if the binding was removed. A stale disconnect, where the
// device has already re-registered on a new connection, compares unequal and
// leaves the fresh binding untouched.
func (r *Registry) Remove(deviceID, connID string) bool {
	sh := &r.shards[shardFor(deviceID)]

	sh.mu.Lock()
	current, ok := sh.sessions[deviceID]
	if !ok || current.ConnID != connID {
		sh.mu.Unlock()
		return false
	}
	delete(sh.sessions, deviceID)
	sh.mu.Unlock()

	r.dropConn(connID)
	return true
}

// Find returns the current session for a device.
func (r *Registry) Find(deviceID string) (Session, bool) {
	sh := &r.shards[shardFor(deviceID)]

	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[deviceID]
	return s, ok
}

// FindByConn returns the session bound to a connection, if any.
//
// The reverse index and the forward map are updated under separate locks, so
// the device ID found here is re-checked against the forward map before
// returning.
func (r *Registry) FindByConn(connID string) (Session, bool) {
	cs := &r.connIndex[shardFor(connID)]

	cs.mu.RLock()
	deviceID, ok := cs.devices[connID]
	cs.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	s, ok := r.Find(deviceID)
	if !ok || s.ConnID != connID {
		return Session{}, false
	}
	return s, true
}

// Snapshot returns a copy of all current sessions.
// The result is a point-in-time view; the registry may change immediately after.
func (r *Registry) Snapshot() []Session {
	var sessions []Session
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, s := range sh.sessions {
			sessions = append(sessions, s)
		}
		sh.mu.RUnlock()
	}
	return sessions
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// putConn records the connection-to-device mapping.
func (r *Registry) putConn(connID, deviceID string) {
	cs := &r.connIndex[shardFor(connID)]
	cs.mu.Lock()
	cs.devices[connID] = deviceID
	cs.mu.Unlock()
}

// dropConn removes a connection from the reverse index.
func (r *Registry) dropConn(connID string) {
	cs := &r.connIndex[shardFor(connID)]
	cs.mu.Lock()
	delete(cs.devices, connID)
	cs.mu.Unlock()
}
