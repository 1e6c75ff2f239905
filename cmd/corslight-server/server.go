package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/core/service"
	"github.com/yndnr/corslight-go/internal/infra/buildinfo"
	"github.com/yndnr/corslight-go/internal/infra/confloader"
	"github.com/yndnr/corslight-go/internal/infra/shutdown"
	"github.com/yndnr/corslight-go/internal/server/config"
	"github.com/yndnr/corslight-go/internal/server/dispatcher"
	"github.com/yndnr/corslight-go/internal/server/frameserver"
	"github.com/yndnr/corslight-go/internal/server/httpserver"
	"github.com/yndnr/corslight-go/internal/session"
	"github.com/yndnr/corslight-go/internal/storage"
	"github.com/yndnr/corslight-go/internal/telemetry/logger"
	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// server wires the storage, the engine and the listeners together.
type server struct {
	cfg    *config.ServerConfig
	loader *confloader.Loader
	logger *slog.Logger

	kv       storage.KV
	sessions session.Provider
	metrics  *metric.Registry
	limiter  *service.RateLimiterRegistry

	// engine is swapped on reload; open connections keep the engine they
	// started with.
	engine   atomic.Pointer[service.StorageEngine]
	manifest atomic.Pointer[domain.Manifest]
	reloadMu sync.Mutex

	frames *frameserver.Server
	admin  *httpserver.Server

	started   time.Time
	lastSweep atomic.Int64
	swept     atomic.Int64
}

// statusDoc is served on /admin/v1/status.
type statusDoc struct {
	Build        buildinfo.Info `json:"build"`
	Origin       string         `json:"origin"`
	Namespace    string         `json:"namespace"`
	Uptime       string         `json:"uptime"`
	Connections  int            `json:"connections"`
	ManifestKeys []string       `json:"manifest_keys"`
	Storage      storageStatus  `json:"storage"`
}

type storageStatus struct {
	Driver    string         `json:"driver"`
	LastSweep string         `json:"last_sweep,omitempty"`
	Swept     int64          `json:"swept"`
	Stats     *storage.Stats `json:"stats,omitempty"`
}

func newServer(cfg *config.ServerConfig, loader *confloader.Loader, log *slog.Logger) (*server, error) {
	s := &server{
		cfg:     cfg,
		loader:  loader,
		logger:  log,
		metrics: metric.NewRegistry(),
		started: time.Now(),
	}

	kv, err := storage.Open(cfg.StorageConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	s.kv = kv
	if bk, ok := kv.(*storage.BadgerKV); ok {
		if err := bk.RegisterMetrics(s.metrics.Registerer()); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("register storage metrics: %w", err)
		}
	}

	if s.sessions, err = openSessions(cfg); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("init session: %w", err)
	}

	if cfg.Limits.RatePerSecond > 0 {
		s.limiter = service.NewRateLimiterRegistry(cfg.Limits.RatePerSecond, cfg.Limits.Burst)
	}

	if err := s.swapEngine(cfg.Manifest); err != nil {
		_ = kv.Close()
		return nil, err
	}

	s.frames, err = frameserver.New(&frameserver.Config{
		Network:          cfg.Server.Network,
		Address:          cfg.Server.Addr,
		Origin:           cfg.Server.Origin,
		Namespace:        cfg.Protocol.Namespace,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		MaxConnections:   cfg.Server.MaxConnections,
	}, s.currentEngine,
		frameserver.WithLimiter(s.limiter),
		frameserver.WithLogger(log),
		frameserver.WithMetrics(s.metrics),
	)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	if cfg.Server.AdminAddr != "" {
		s.admin = httpserver.New(cfg.Server.AdminAddr, httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics:   s.metrics,
			Ready:     s.ready,
			Status:    func() any { return s.status() },
			AllowList: cfg.Server.AdminAllow,
			Logger:    log,
		}))
	}
	return s, nil
}

func openSessions(cfg *config.ServerConfig) (session.Provider, error) {
	switch {
	case cfg.Session.Token != "":
		return session.Static(cfg.Session.Token), nil
	case cfg.Session.File != "":
		return session.OpenFile(cfg.Session.File)
	default:
		return session.NewEphemeral()
	}
}

// swapEngine builds an engine for the raw manifest and makes it current.
func (s *server) swapEngine(raw map[string]any) error {
	manifest, err := domain.ParseManifest(raw)
	if err != nil {
		return fmt.Errorf("init manifest: %w", err)
	}
	engine, err := service.NewStorageEngine(
		s.kv,
		service.NewAccessControl(manifest),
		s.sessions,
		service.WithNamespace(s.cfg.Protocol.Namespace),
		service.WithEngineLogger(s.logger),
		service.WithEngineMetrics(s.metrics),
	)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	s.engine.Store(engine)
	s.manifest.Store(manifest)
	return nil
}

func (s *server) currentEngine() dispatcher.Engine {
	return s.engine.Load()
}

// start binds the listeners and registers their shutdown hooks. Hooks run
// in reverse, so storage closes last.
func (s *server) start(ctx context.Context, h *shutdown.Handler) error {
	h.OnShutdown("storage", func(context.Context) error {
		return s.kv.Close()
	})

	if err := s.frames.Listen(); err != nil {
		return err
	}
	h.OnShutdown("frame server", s.frames.Shutdown)
	go func() {
		if err := s.frames.Serve(ctx); err != nil {
			s.logger.Error("frame server failed", "error", err)
			h.Trigger()
		}
	}()

	if s.admin != nil {
		if err := s.admin.Listen(); err != nil {
			return fmt.Errorf("admin listener: %w", err)
		}
		h.OnShutdown("admin server", s.admin.Shutdown)
		go func() {
			s.logger.Info("admin server listening", "addr", s.admin.Addr().String())
			if err := s.admin.Serve(); err != nil {
				s.logger.Error("admin server failed", "error", err)
				h.Trigger()
			}
		}()
	}

	if interval := s.cfg.Storage.SweepInterval; interval > 0 {
		sweepCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.sweepLoop(sweepCtx, interval)
		}()
		h.OnShutdown("sweeper", func(ctx context.Context) error {
			stop()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	if path := s.loader.FilePath(); path != "" {
		w, err := confloader.NewWatcher(confloader.WithWatcherLogger(s.logger))
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		if err := w.Watch(path); err != nil {
			_ = w.Stop()
			return fmt.Errorf("config watcher: %w", err)
		}
		w.OnChange(func(string) {
			_ = s.reload()
		})
		w.StartAsync()
		h.OnShutdown("config watcher", func(context.Context) error {
			return w.Stop()
		})
	}
	return nil
}

// close releases what newServer opened when start never ran.
func (s *server) close() error {
	return s.kv.Close()
}

// reload re-reads the configuration and applies the manifest and log
// level. Other settings need a restart.
func (s *server) reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	next := config.Default()
	if err := s.loader.Reload(next); err != nil {
		s.logger.Error("config reload failed", "error", err)
		return err
	}
	if err := config.VerifyManifest(next.Manifest); err != nil {
		s.logger.Error("config reload rejected", "error", err)
		return err
	}
	if !logger.ValidLevel(next.Log.Level) {
		err := fmt.Errorf("invalid log.level %q", next.Log.Level)
		s.logger.Error("config reload rejected", "error", err)
		return err
	}

	if err := s.swapEngine(next.Manifest); err != nil {
		s.logger.Error("config reload failed", "error", err)
		return err
	}
	logger.SetLevel(next.Log.Level)

	if !reflect.DeepEqual(next.Server, s.cfg.Server) || !reflect.DeepEqual(next.Storage, s.cfg.Storage) ||
		next.Protocol != s.cfg.Protocol || next.Session != s.cfg.Session || next.Limits != s.cfg.Limits {
		s.logger.Warn("server, protocol, storage, session and limits changes need a restart")
	}
	s.logger.Info("configuration reloaded",
		"manifest_keys", len(next.Manifest),
		"log_level", next.Log.Level)
	return nil
}

func (s *server) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *server) sweep(ctx context.Context) {
	n, err := s.engine.Load().Sweep(ctx)
	s.lastSweep.Store(time.Now().UnixMilli())
	s.swept.Add(int64(n))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("sweep failed", "removed", n, "error", err)
	}
}

func (s *server) ready() error {
	if s.frames.Addr() == nil {
		return errors.New("frame listener not bound")
	}
	if s.engine.Load() == nil {
		return errors.New("no storage engine")
	}
	return nil
}

func (s *server) status() statusDoc {
	doc := statusDoc{
		Build:       buildinfo.Get(),
		Origin:      s.cfg.Server.Origin,
		Namespace:   s.engine.Load().Namespace(),
		Uptime:      time.Since(s.started).Truncate(time.Second).String(),
		Connections: s.frames.ConnCount(),
		Storage: storageStatus{
			Driver: s.cfg.Storage.Driver,
			Swept:  s.swept.Load(),
		},
	}
	if m := s.manifest.Load(); m != nil {
		doc.ManifestKeys = m.Keys()
	}
	if ms := s.lastSweep.Load(); ms > 0 {
		doc.Storage.LastSweep = time.UnixMilli(ms).UTC().Format(time.RFC3339)
	}
	if bk, ok := s.kv.(*storage.BadgerKV); ok {
		stats := bk.Stats()
		doc.Storage.Stats = &stats
	}
	return doc
}
