package config

import "time"

// ServerConfig is the root configuration for corslight-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Protocol ProtocolSection `koanf:"protocol"`
	// Manifest maps a key to one hostname or a list of hostnames.
	// domain.ParseManifest normalizes it.
	Manifest map[string]any  `koanf:"manifest"`
	Storage  StorageSection  `koanf:"storage"`
	Session  SessionSection  `koanf:"session"`
	Limits   LimitsSection   `koanf:"limits"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures the listeners.
type ServerSection struct {
	// Network is "tcp" or "unix".
	Network string `koanf:"network"`
	// Addr is the frame listener address or socket path.
	Addr string `koanf:"addr"`
	// Origin is the origin of the hosted storage document.
	Origin string `koanf:"origin"`
	// AdminAddr serves /healthz and /metrics. Empty disables it.
	AdminAddr string `koanf:"admin_addr"`
	// AdminAllow lists IPs or CIDRs allowed past /healthz. Empty allows all.
	AdminAllow []string `koanf:"admin_allow"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	MaxConnections   int           `koanf:"max_connections"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// ProtocolSection configures the wire protocol.
type ProtocolSection struct {
	Namespace string `koanf:"namespace"`
}

// StorageSection configures the key-value backend.
type StorageSection struct {
	// Driver is memory, badger or sqlite.
	Driver  string `koanf:"driver"`
	DataDir string `koanf:"data_dir"`
	// SweepInterval runs a background eviction pass. Zero disables it.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	Badger BadgerSection `koanf:"badger"`
}

// BadgerSection tunes the badger backend.
type BadgerSection struct {
	GCInterval       string  `koanf:"gc_interval"`
	GCThreshold      float64 `koanf:"gc_threshold"`
	CacheSizeMB      int64   `koanf:"cache_size_mb"`
	ValueLogFileSize int64   `koanf:"value_log_file_size"`
	SyncWrites       bool    `koanf:"sync_writes"`
}

// SessionSection configures the session token provider.
type SessionSection struct {
	// File persists the session flag. Empty mints one token per process.
	File string `koanf:"file"`
	// Token pins a fixed token, mainly for tests. It takes precedence over File.
	Token string `koanf:"token"`
}

// LimitsSection configures per-origin rate limiting.
type LimitsSection struct {
	// RatePerSecond is the sustained request rate per origin. Zero disables.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
