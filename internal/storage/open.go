package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yndnr/corslight-go/internal/storage/memory"
	"github.com/yndnr/corslight-go/internal/storage/sqlite"
)

// Open creates the backend selected by cfg.Driver.
func Open(cfg Config, logger *slog.Logger) (KV, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case "", DriverMemory:
		logger.Info("using in-memory storage")
		return memory.New(), nil

	case DriverBadger:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage: driver %q needs a data dir", cfg.Driver)
		}
		return OpenBadger(Config{
			Driver: cfg.Driver,
			Dir:    filepath.Join(cfg.Dir, "badger"),
			Badger: cfg.Badger,
		}, logger)

	case DriverSQLite:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage: driver %q needs a data dir", cfg.Driver)
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
		store, err := sqlite.OpenDir(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		logger.Info("sqlite store opened", "path", filepath.Join(cfg.Dir, sqlite.FileName))
		return store, nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
