package config

import (
	"time"

	"github.com/yndnr/corslight-go/internal/protocol"
	"github.com/yndnr/corslight-go/internal/storage"
)

// Default configuration values.
const (
	DefaultNetwork   = "tcp"
	DefaultAddr      = "127.0.0.1:5380"
	DefaultAdminAddr = "127.0.0.1:5381"

	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 30 * time.Second
	DefaultShutdownTimeout  = 15 * time.Second

	DefaultDataDir       = "/var/lib/corslight/data"
	DefaultSweepInterval = 10 * time.Minute

	DefaultBurst = 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration. The hosted origin and
// the manifest have no defaults.
func Default() *ServerConfig {
	badger := storage.DefaultBadgerConfig()
	return &ServerConfig{
		Server: ServerSection{
			Network:          DefaultNetwork,
			Addr:             DefaultAddr,
			AdminAddr:        DefaultAdminAddr,
			HandshakeTimeout: DefaultHandshakeTimeout,
			WriteTimeout:     DefaultWriteTimeout,
			ShutdownTimeout:  DefaultShutdownTimeout,
		},
		Protocol: ProtocolSection{
			Namespace: protocol.DefaultNamespace,
		},
		Manifest: map[string]any{},
		Storage: StorageSection{
			Driver:        storage.DriverMemory,
			DataDir:       DefaultDataDir,
			SweepInterval: DefaultSweepInterval,
			Badger: BadgerSection{
				GCInterval:       badger.GCInterval,
				GCThreshold:      badger.GCThreshold,
				CacheSizeMB:      badger.CacheSize >> 20,
				ValueLogFileSize: badger.ValueLogFileSize,
				SyncWrites:       badger.SyncWrites,
			},
		},
		Limits: LimitsSection{
			Burst: DefaultBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// StorageConfig converts the storage section for storage.Open.
func (c *ServerConfig) StorageConfig() storage.Config {
	return storage.Config{
		Driver: c.Storage.Driver,
		Dir:    c.Storage.DataDir,
		Badger: storage.BadgerConfig{
			GCInterval:       c.Storage.Badger.GCInterval,
			GCThreshold:      c.Storage.Badger.GCThreshold,
			CacheSize:        c.Storage.Badger.CacheSizeMB << 20,
			ValueLogFileSize: c.Storage.Badger.ValueLogFileSize,
			SyncWrites:       c.Storage.Badger.SyncWrites,
		},
	}
}
