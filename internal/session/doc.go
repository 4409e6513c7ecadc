// Package session tracks live device-to-connection bindings.
//
// The registry answers one question: which connection currently speaks for a
// device? Registration installs a binding (last write wins), disconnects
// remove it only if the departing connection still holds it, and the reaper
// uses the same compare-and-remove rule so a device that reconnects mid-sweep
// is never evicted.
package session
