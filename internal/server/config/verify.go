package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/yndnr/corslight-go/internal/channel"
	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/protocol"
	"github.com/yndnr/corslight-go/internal/storage"
	"github.com/yndnr/corslight-go/internal/telemetry/logger"
)

// Verify validates the configuration. Storage directories are created as
// a side effect for the persistent drivers.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyProtocol(&cfg.Protocol); err != nil {
		return err
	}
	if err := VerifyManifest(cfg.Manifest); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLimits(&cfg.Limits); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	switch cfg.Network {
	case "tcp":
		if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
			return fmt.Errorf("server.addr: %w", err)
		}
	case "unix":
		if cfg.Addr == "" {
			return errors.New("server.addr is required")
		}
	default:
		return fmt.Errorf("server.network must be tcp or unix, got %q", cfg.Network)
	}

	if cfg.Origin == "" {
		return errors.New("server.origin is required")
	}
	origin, err := channel.OriginOf(cfg.Origin)
	if err != nil {
		return fmt.Errorf("server.origin: %w", err)
	}
	if origin != strings.TrimRight(cfg.Origin, "/") {
		return fmt.Errorf("server.origin must be a bare origin such as %s", origin)
	}

	if cfg.AdminAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.AdminAddr); err != nil {
			return fmt.Errorf("server.admin_addr: %w", err)
		}
		if cfg.Network == "tcp" && cfg.AdminAddr == cfg.Addr {
			return errors.New("server.admin_addr conflicts with server.addr")
		}
	}
	for _, entry := range cfg.AdminAllow {
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("server.admin_allow: invalid entry %q", entry)
		}
	}

	if cfg.MaxConnections < 0 {
		return errors.New("server.max_connections must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"handshake_timeout": cfg.HandshakeTimeout,
		"write_timeout":     cfg.WriteTimeout,
		"shutdown_timeout":  cfg.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("server.%s must not be negative", name)
		}
	}
	return nil
}

func verifyProtocol(cfg *ProtocolSection) error {
	if strings.Contains(cfg.Namespace, protocol.Separator) {
		return fmt.Errorf("protocol.namespace must not contain %q", protocol.Separator)
	}
	return nil
}

// VerifyManifest normalizes raw and checks that every key is non-empty and
// lists at least one hostname.
func VerifyManifest(raw map[string]any) error {
	if len(raw) == 0 {
		return errors.New("manifest must list at least one key")
	}
	m, err := domain.NormalizeManifest(raw)
	if err != nil {
		return err
	}
	for key, hosts := range m {
		if strings.TrimSpace(key) == "" {
			return errors.New("manifest contains an empty key")
		}
		if len(hosts) == 0 {
			return fmt.Errorf("manifest key %q lists no hostnames", key)
		}
		for _, h := range hosts {
			if strings.TrimSpace(h) == "" || strings.Contains(h, "/") {
				return fmt.Errorf("manifest key %q: %q is not a hostname", key, h)
			}
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.SweepInterval < 0 {
		return errors.New("storage.sweep_interval must not be negative")
	}

	switch cfg.Driver {
	case storage.DriverMemory:
		return nil
	case storage.DriverBadger, storage.DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be memory, badger or sqlite, got %q", cfg.Driver)
	}

	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}

	if cfg.Driver == storage.DriverBadger {
		if cfg.Badger.GCInterval != "" {
			if _, err := time.ParseDuration(cfg.Badger.GCInterval); err != nil {
				return fmt.Errorf("storage.badger.gc_interval: %w", err)
			}
		}
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be between 0 and 1")
		}
	}
	return nil
}

func verifyLimits(cfg *LimitsSection) error {
	if cfg.RatePerSecond < 0 {
		return errors.New("limits.rate_per_second must not be negative")
	}
	if cfg.RatePerSecond > 0 && cfg.Burst < 1 {
		return errors.New("limits.burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
}
