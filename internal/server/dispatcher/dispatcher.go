package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/yndnr/corslight-go/internal/channel"
	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/core/service"
	"github.com/yndnr/corslight-go/internal/protocol"
	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// Engine executes the three verbs for a caller hostname.
// *service.StorageEngine implements it.
type Engine interface {
	Store(ctx context.Context, hostname, key string, value json.RawMessage, ttl domain.TTL) error
	Fetch(ctx context.Context, hostname, key string) (*domain.Record, error)
	Remove(ctx context.Context, hostname, key string) error
}

// Config configures a Dispatcher.
type Config struct {
	// Namespace prefixes every action. Default: protocol.DefaultNamespace.
	Namespace string

	// Engine executes verbs. Required.
	Engine Engine

	// Limiter throttles requests per origin hostname. Nil disables limiting.
	Limiter *service.RateLimiterRegistry

	// Context is passed to the engine. Default: context.Background().
	Context context.Context

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Dispatcher answers requests arriving from the embedding parent.
type Dispatcher struct {
	frame   *channel.Frame
	codec   *protocol.Codec
	engine  Engine
	limiter *service.RateLimiterRegistry
	ctx     context.Context
	logger  *slog.Logger
	metrics *metric.Registry

	cancel func()
	closed atomic.Bool
}

// New installs a dispatcher into frame and announces readiness to the
// parent. It fails with domain.ErrConfiguration when frame is a top-level
// document or already hosts a dispatcher.
func New(frame *channel.Frame, cfg Config) (*Dispatcher, error) {
	if frame == nil || frame.IsTop() {
		return nil, domain.ErrConfiguration.WithDetails("dispatcher must run inside an embedded document")
	}
	if cfg.Engine == nil {
		return nil, domain.ErrConfiguration.WithDetails("dispatcher: engine is required")
	}
	if !frame.Install() {
		return nil, domain.ErrConfiguration.WithDetails("a dispatcher is already installed in this document")
	}

	d := &Dispatcher{
		frame:   frame,
		codec:   protocol.New(cfg.Namespace),
		engine:  cfg.Engine,
		limiter: cfg.Limiter,
		ctx:     cfg.Context,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if d.ctx == nil {
		d.ctx = context.Background()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dispatcher", "namespace", d.codec.Namespace())

	d.cancel = frame.Parent().Listen(d.handle)

	ready, err := d.codec.EncodeReady()
	if err == nil {
		err = frame.Parent().Post(ready, channel.AnyOrigin)
	}
	if err != nil {
		d.cancel()
		return nil, domain.ErrChannelUnavailable.WithCause(err)
	}

	d.metrics.IncDispatchers()
	d.logger.Debug("dispatcher installed", "origin", frame.Origin())
	return d, nil
}

// Namespace returns the namespace the dispatcher answers for.
func (d *Dispatcher) Namespace() string {
	return d.codec.Namespace()
}

// Close stops handling messages. The frame keeps its installed mark, so no
// second dispatcher can take over the document.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.cancel()
	d.metrics.DecDispatchers()
	return nil
}

func (d *Dispatcher) handle(origin string, payload []byte) {
	if d.closed.Load() {
		return
	}
	start := time.Now()
	hostname := channel.Hostname(origin)

	req, err := d.codec.DecodeRequest(payload)
	switch {
	case errors.Is(err, domain.ErrBadAction) && req != nil:
		d.metrics.RecordRejected(protocol.ActionBadAction)
		d.logger.Warn("bad action", "origin", origin, "id", req.ID, "error", err)
		d.reply(origin, func() ([]byte, error) { return d.codec.EncodeBadAction(req.ID) })
		return

	case err != nil:
		d.metrics.RecordRejected(protocol.ActionBadRequest)
		d.logger.Warn("bad request", "origin", origin, "size", len(payload))
		d.reply(origin, d.codec.EncodeBadRequest)
		return
	}

	if !d.limiter.Allow(hostname) {
		d.metrics.RecordRejected("rate_limited")
		d.logger.Warn("rate limited", "origin", origin, "id", req.ID)
		d.reply(origin, func() ([]byte, error) {
			return d.codec.EncodeError(req.Verb, req.ID, domain.ErrRateLimited)
		})
		return
	}

	resp, err := d.execute(hostname, req)

	result := "ok"
	if err != nil {
		if result = domain.GetErrorCode(err); result == "" {
			result = "error"
		}
	}
	d.metrics.RecordRequest(req.Verb.String(), result)
	d.metrics.ObserveRequestDuration(req.Verb.String(), time.Since(start).Seconds())

	d.reply(origin, func() ([]byte, error) { return d.codec.EncodeResponse(req.Verb, resp) })
}

// execute runs one verb. It never panics: a panicking engine becomes a
// storage error on the response.
func (d *Dispatcher) execute(hostname string, req *domain.Request) (resp *domain.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("verb handler panicked", "verb", req.Verb.String(), "id", req.ID, "panic", r)
			err = domain.ErrStorage
			resp = domain.ErrorResponse(req.ID, err)
		}
	}()

	resp = domain.NewResponse(req.ID)

	switch req.Verb {
	case domain.VerbStore:
		err = d.engine.Store(d.ctx, hostname, req.Key, req.Value, req.TTL)

	case domain.VerbFetch:
		var rec *domain.Record
		rec, err = d.engine.Fetch(d.ctx, hostname, req.Key)
		if err == nil {
			resp.Result, err = encodeRecord(rec)
		}

	case domain.VerbRemove:
		err = d.engine.Remove(d.ctx, hostname, req.Key)
	}

	if err != nil {
		d.logger.Info("request rejected",
			"verb", req.Verb.String(),
			"id", req.ID,
			"key", req.Key,
			"origin", hostname,
			"error", err)
		return domain.ErrorResponse(req.ID, err), err
	}

	d.logger.Debug("request handled",
		"verb", req.Verb.String(),
		"id", req.ID,
		"key", req.Key,
		"origin", hostname)
	return resp, nil
}

func encodeRecord(rec *domain.Record) (json.RawMessage, error) {
	if rec == nil {
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return data, nil
}

func (d *Dispatcher) reply(origin string, encode func() ([]byte, error)) {
	data, err := encode()
	if err != nil {
		d.logger.Error("encode response failed", "error", err)
		return
	}
	if err := d.frame.Parent().Post(data, origin); err != nil {
		d.logger.Warn("post response failed", "origin", origin, "error", err)
	}
}
