// Package storage provides the key-value stores that persist corslight
// records.
//
// The storage engine in internal/core/service depends only on the KV
// interface. Three backends are available:
//
//   - memory: a sharded in-process map (internal/storage/memory), lost on exit
//   - badger: an embedded LSM store (BadgerKV), with background value-log GC
//   - sqlite: a single-file database (internal/storage/sqlite)
//
// Open selects a backend from Config.
package storage
