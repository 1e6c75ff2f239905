package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: closed")

// KV is a flat string-keyed store of opaque values.
//
// Implementations must be safe for concurrent use. Each call is atomic on
// its own; no multi-key transactions are required.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; err is reserved for store failures.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases the store.
	Close() error
}

// Scanner is implemented by stores that can enumerate keys by prefix.
type Scanner interface {
	// Scan calls fn for every key starting with prefix until fn returns
	// false. fn must not call back into the store.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error
}

// Stats contains store statistics. Fields a backend cannot report are zero.
type Stats struct {
	// Keys is the number of keys, when cheaply known.
	Keys uint64

	// TotalSize is the on-disk size in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size (Badger).
	LSMSize uint64

	// ValueLogSize is the value log size (Badger).
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Config selects and configures a KV backend.
type Config struct {
	// Driver is one of DriverMemory, DriverBadger or DriverSQLite.
	// Default: "memory"
	Driver string

	// Dir is the data directory for persistent drivers.
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites enables fsync after each write.
	// Default: true
	SyncWrites bool
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Driver: DriverMemory,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
// Records are small and few, so the defaults are far below Badger's own.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        16 << 20, // 16MB
		ValueLogFileSize: 64 << 20, // 64MB
		SyncWrites:       true,
	}
}
