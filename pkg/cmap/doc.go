// Package cmap provides a concurrent map sharded by key hash.
//
// Each shard is guarded by its own RWMutex, so operations on keys that land
// in different shards never contend. The in-memory key-value backend keeps
// its records here and the dispatcher keeps one rate limiter per origin.
//
// Usage:
//
//	m := cmap.New[string, []byte]()
//	m.Set("cl::token", data)
//	val, ok := m.Get("cl::token")
//
// Range and the helpers built on it lock one shard at a time, so they see
// a consistent view of each shard but not of the whole map.
package cmap
