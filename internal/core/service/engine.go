package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/protocol"
	"github.com/yndnr/corslight-go/internal/session"
	"github.com/yndnr/corslight-go/internal/storage"
	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// maxDeadline is the latest deadline a millisecond timestamp can hold.
var maxDeadline = time.UnixMilli(math.MaxInt64)

// deadline returns now+d, saturating at maxDeadline.
func deadline(now time.Time, d time.Duration) time.Time {
	at := now.Add(d)
	if at.Before(now) || at.After(maxDeadline) {
		return maxDeadline
	}
	return at
}

// evictCorrupt labels records removed because they could not be decoded.
const evictCorrupt = "corrupt"

// StorageEngine applies access control and expiry policy on top of a KV
// store. Records live under "<namespace>::<key>".
//
// A StorageEngine is cheap: a server builds one per dispatcher, sharing the
// KV store and session provider, so each dispatcher enforces its own
// manifest.
type StorageEngine struct {
	kv       storage.KV
	access   *AccessControl
	sessions session.Provider
	codec    *protocol.Codec

	now     func() time.Time
	logger  *slog.Logger
	metrics *metric.Registry
}

// EngineOption configures a StorageEngine.
type EngineOption func(*StorageEngine)

// WithClock replaces the wall clock, for simulated-time tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *StorageEngine) {
		e.now = now
	}
}

// WithNamespace sets the key namespace. Default: protocol.DefaultNamespace.
func WithNamespace(ns string) EngineOption {
	return func(e *StorageEngine) {
		e.codec = protocol.New(ns)
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *StorageEngine) {
		e.logger = l
	}
}

// WithEngineMetrics records evictions in reg.
func WithEngineMetrics(reg *metric.Registry) EngineOption {
	return func(e *StorageEngine) {
		e.metrics = reg
	}
}

// NewStorageEngine builds an engine. kv, access and sessions are required.
func NewStorageEngine(kv storage.KV, access *AccessControl, sessions session.Provider, opts ...EngineOption) (*StorageEngine, error) {
	switch {
	case kv == nil:
		return nil, domain.ErrConfiguration.WithDetails("storage engine: kv store is required")
	case access == nil:
		return nil, domain.ErrConfiguration.WithDetails("storage engine: access control is required")
	case sessions == nil:
		return nil, domain.ErrConfiguration.WithDetails("storage engine: session provider is required")
	}

	e := &StorageEngine{
		kv:       kv,
		access:   access,
		sessions: sessions,
		codec:    protocol.New(""),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Namespace returns the key namespace.
func (e *StorageEngine) Namespace() string {
	return e.codec.Namespace()
}

// Store persists value under key for hostname with the given expiry policy.
func (e *StorageEngine) Store(ctx context.Context, hostname, key string, value json.RawMessage, ttl domain.TTL) error {
	if err := e.access.Validate(hostname, key); err != nil {
		return err
	}

	rec := domain.Record{Value: value}
	switch ttl.Kind() {
	case domain.TTLNever:
		rec.Expiry = domain.NeverExpires()
	case domain.TTLSession:
		rec.Expiry = domain.SessionBound(e.sessions.Current())
	case domain.TTLRelative:
		if !ttl.Valid() {
			return domain.ErrInvalidTTL.WithDetails(ttl.String())
		}
		rec.Expiry = domain.ExpiresAt(deadline(e.now(), ttl.Duration()))
	default:
		return domain.ErrInvalidTTL.WithDetails(ttl.Raw())
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	if err := e.kv.Set(ctx, e.codec.StorageKey(key), data); err != nil {
		e.logger.Error("store failed", "key", key, "error", err)
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

// Fetch returns the live record stored under key, or nil when there is
// none. An expired record is deleted before nil is returned.
func (e *StorageEngine) Fetch(ctx context.Context, hostname, key string) (*domain.Record, error) {
	if err := e.access.Validate(hostname, key); err != nil {
		return nil, err
	}

	storageKey := e.codec.StorageKey(key)
	data, ok, err := e.kv.Get(ctx, storageKey)
	if err != nil {
		e.logger.Error("fetch failed", "key", key, "error", err)
		return nil, domain.ErrStorage.WithCause(err)
	}
	if !ok {
		return nil, nil
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		e.logger.Warn("discarding undecodable record", "key", key, "error", err)
		return nil, e.evict(ctx, storageKey, evictCorrupt)
	}

	if reason := rec.Expiry.Check(e.now(), e.sessions.Current()); reason != domain.EvictNone {
		e.logger.Debug("record expired", "key", key, "reason", string(reason))
		return nil, e.evict(ctx, storageKey, string(reason))
	}
	return &rec, nil
}

// Remove deletes key. Removing a missing key succeeds.
func (e *StorageEngine) Remove(ctx context.Context, hostname, key string) error {
	if err := e.access.Validate(hostname, key); err != nil {
		return err
	}
	if err := e.kv.Remove(ctx, e.codec.StorageKey(key)); err != nil {
		e.logger.Error("remove failed", "key", key, "error", err)
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

// Sweep deletes every expired record of the namespace without going through
// access control. Stores that cannot enumerate keys are left alone and
// Sweep reports zero.
func (e *StorageEngine) Sweep(ctx context.Context) (int, error) {
	scanner, ok := e.kv.(storage.Scanner)
	if !ok {
		return 0, nil
	}

	now := e.now()
	current := e.sessions.Current()
	expired := make(map[string]string)

	err := scanner.Scan(ctx, e.codec.StorageKey(""), func(k string, v []byte) bool {
		var rec domain.Record
		if err := json.Unmarshal(v, &rec); err != nil {
			expired[k] = evictCorrupt
			return true
		}
		if reason := rec.Expiry.Check(now, current); reason != domain.EvictNone {
			expired[k] = string(reason)
		}
		return true
	})
	if err != nil {
		return 0, domain.ErrStorage.WithCause(err)
	}

	removed := 0
	for k, reason := range expired {
		if err := e.evict(ctx, k, reason); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		e.logger.Info("swept expired records", "count", removed)
	}
	return removed, nil
}

func (e *StorageEngine) evict(ctx context.Context, storageKey, reason string) error {
	if err := e.kv.Remove(ctx, storageKey); err != nil {
		e.logger.Error("evict failed", "storage_key", storageKey, "error", err)
		return domain.ErrStorage.WithCause(err)
	}
	e.metrics.RecordEviction(reason)
	return nil
}
