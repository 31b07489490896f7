// Package store provides implementations of core.Store: a volatile in-memory
// map (the default for every component) and a SQLite-backed store for callers
// that want task snapshots and memories to survive a restart. Scheduling logic
// never depends on which one is used.
package store
