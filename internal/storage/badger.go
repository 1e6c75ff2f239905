package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerKV implements KV on Badger v3.
type BadgerKV struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	closed     atomic.Bool
	closeOnce  sync.Once
	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenBadger opens (or creates) a Badger store in cfg.Dir.
func OpenBadger(cfg Config, logger *slog.Logger) (*BadgerKV, error) {
	if cfg.Dir == "" {
		return nil, errors.New("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}

	bc := cfg.Badger
	if bc.CacheSize > 0 {
		opts.BlockCacheSize = bc.CacheSize
	}
	if bc.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = bc.ValueLogFileSize
	}
	opts.SyncWrites = bc.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	kv := &BadgerKV{
		db:     db,
		cfg:    bc,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go kv.gcLoop()

	logger.Info("badger store opened",
		"dir", cfg.Dir,
		"cache_size", bc.CacheSize,
		"gc_interval", bc.GCInterval)

	return kv, nil
}

// Get implements KV.
func (b *BadgerKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.closed.Load() {
		return nil, false, ErrClosed
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger: get: %w", err)
	}
	return value, true, nil
}

// Set implements KV.
func (b *BadgerKV) Set(ctx context.Context, key string, value []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger: set: %w", err)
	}
	return nil
}

// Remove implements KV.
func (b *BadgerKV) Remove(ctx context.Context, key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger: remove: %w", err)
	}
	return nil
}

// Scan implements Scanner.
func (b *BadgerKV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(string(item.Key()), value) {
				break
			}
		}
		return nil
	})
}

// GC runs value-log garbage collection until Badger finds nothing left to
// rewrite. It returns the number of rewrite passes.
func (b *BadgerKV) GC(ctx context.Context) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	start := time.Now()

	passes := 0
	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return passes, fmt.Errorf("badger: gc: %w", err)
		}
		passes++
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcRuns.Add(1)
	if b.metricsGCRuns != nil {
		b.metricsGCRuns.Inc()
	}

	b.logger.Debug("badger gc completed",
		"passes", passes,
		"elapsed", time.Since(start))

	return passes, nil
}

// Stats returns storage statistics.
func (b *BadgerKV) Stats() Stats {
	lsm, vlog := b.db.Size()
	return Stats{
		TotalSize:    uint64(lsm + vlog),
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   b.lastGCTime.Load(),
	}
}

// Close stops background work and closes the database.
func (b *BadgerKV) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		<-b.doneCh

		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
			return
		}
		b.logger.Info("badger store closed")
	})
	return err
}

// RegisterMetrics registers Badger size and GC metrics with reg and starts a
// loop refreshing them. Call it at most once.
func (b *BadgerKV) RegisterMetrics(reg prometheus.Registerer) error {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "corslight",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "corslight",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	b.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "corslight",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corslight",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Total number of Badger value-log GC runs",
	})

	for _, c := range []prometheus.Collector{
		b.metricsLSMSize,
		b.metricsValueLogSize,
		b.metricsLastGCTime,
		b.metricsGCRuns,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}

	b.updateMetrics()
	go b.metricsUpdateLoop()
	return nil
}

func (b *BadgerKV) updateMetrics() {
	stats := b.Stats()
	b.metricsLSMSize.Set(float64(stats.LSMSize))
	b.metricsValueLogSize.Set(float64(stats.ValueLogSize))
	if stats.LastGCTime > 0 {
		b.metricsLastGCTime.Set(float64(stats.LastGCTime) / 1000.0)
	}
}

func (b *BadgerKV) metricsUpdateLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if b.closed.Load() {
				return
			}
			b.updateMetrics()
		case <-b.stopCh:
			return
		}
	}
}

func (b *BadgerKV) gcLoop() {
	defer close(b.doneCh)

	interval, err := time.ParseDuration(b.cfg.GCInterval)
	if err != nil || interval <= 0 {
		b.logger.Warn("invalid gc_interval, using default 10m", "value", b.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface. Badger's
// informational chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
