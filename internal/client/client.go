package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/yndnr/corslight-go/internal/channel"
	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/eventloop"
	"github.com/yndnr/corslight-go/internal/protocol"
	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// State is the lifecycle state of the client channel. It only moves
// forward: Uninitialized, Connecting, Ready.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// pending is an entry of the open-request table.
type pending struct {
	req    *domain.Request
	done   completion
	issued time.Time
}

// Client issues store, fetch and remove requests to the dispatcher embedded
// at a target URL and correlates the responses.
type Client struct {
	target     string
	targetHost string
	opener     channel.Opener

	codec     *protocol.Codec
	namespace string
	sched     eventloop.Scheduler
	loop      *eventloop.Loop // owned loop, nil with WithScheduler
	sink      ErrorSink
	logger    *slog.Logger
	metrics   *metric.Registry
	maxOpen   int

	// sendMu serializes posting so the initial flush completes before any
	// request issued after readiness. Lock order: sendMu, then mu.
	sendMu sync.Mutex

	mu          sync.Mutex
	state       State
	nextID      uint64
	open        map[uint64]*pending
	queue       []uint64
	flushed     bool
	unavailable bool
	port        channel.Port
	cancel      func()
	closed      bool
}

// New creates a client for the document at targetURL. The channel is not
// opened until the first request. A nil opener is allowed: every request
// then completes with domain.ErrChannelUnavailable.
func New(targetURL string, opener channel.Opener, opts ...Option) (*Client, error) {
	if _, err := channel.OriginOf(targetURL); err != nil {
		return nil, domain.ErrConfiguration.WithDetails("invalid target url").WithCause(err)
	}

	c := &Client{
		target:     targetURL,
		targetHost: channel.Hostname(targetURL),
		opener:     opener,
		open:       make(map[uint64]*pending),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("target", c.targetHost)
	if c.namespace == "" {
		c.namespace = protocol.DefaultNamespace
	}
	c.codec = protocol.New(c.namespace)
	if c.maxOpen < 0 {
		return nil, domain.ErrConfiguration.WithDetails("max open requests must not be negative")
	}
	if c.sink == nil {
		c.sink = func(err error) {
			c.logger.Warn("inbound message rejected", "error", err)
		}
	}
	if c.sched == nil {
		c.loop = eventloop.New(c.logger)
		c.loop.Start(context.Background())
		c.sched = c.loop
	}
	return c, nil
}

// Store saves value under key. value may be a json.RawMessage or anything
// encoding/json can marshal.
func (c *Client) Store(key string, value any, ttl domain.TTL) *Future {
	f := newFuture()
	c.issueStore(key, value, ttl, f)
	return f
}

// Fetch reads the stored record of key. The result is the record object,
// or JSON null when nothing is stored.
func (c *Client) Fetch(key string) *Future {
	f := newFuture()
	c.issue(&domain.Request{Verb: domain.VerbFetch, Key: key}, f)
	return f
}

// Remove deletes key.
func (c *Client) Remove(key string) *Future {
	f := newFuture()
	c.issue(&domain.Request{Verb: domain.VerbRemove, Key: key}, f)
	return f
}

// StoreFunc is Store in callback style.
func (c *Client) StoreFunc(key string, value any, ttl domain.TTL, cb Callback) {
	c.issueStore(key, value, ttl, &callbackCompletion{cb: cb})
}

// FetchFunc is Fetch in callback style.
func (c *Client) FetchFunc(key string, cb Callback) {
	c.issue(&domain.Request{Verb: domain.VerbFetch, Key: key}, &callbackCompletion{cb: cb})
}

// RemoveFunc is Remove in callback style.
func (c *Client) RemoveFunc(key string, cb Callback) {
	c.issue(&domain.Request{Verb: domain.VerbRemove, Key: key}, &callbackCompletion{cb: cb})
}

// FetchRecord fetches key and decodes the record. It returns nil when
// nothing is stored.
func (c *Client) FetchRecord(ctx context.Context, key string) (*domain.Record, error) {
	raw, err := c.Fetch(key).Wait(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, domain.ErrMalformedPayload.WithCause(err)
	}
	return &rec, nil
}

// State returns the channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OpenRequests returns the number of requests awaiting a response.
func (c *Client) OpenRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// Close detaches from the channel and stops the owned event loop. Open
// requests are left uncompleted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, port := c.cancel, c.port
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if cl, ok := port.(io.Closer); ok {
		err = cl.Close()
	}
	if c.loop != nil {
		c.loop.Stop()
	}
	return err
}

func (c *Client) issueStore(key string, value any, ttl domain.TTL, done completion) {
	raw, err := encodeValue(value)
	if err != nil {
		c.completeLater(done, Outcome{Err: domain.ErrMalformedPayload.WithDetails("value is not serializable").WithCause(err)})
		return
	}
	c.issue(&domain.Request{Verb: domain.VerbStore, Key: key, Value: raw, TTL: ttl}, done)
}

func encodeValue(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid JSON value")
		}
		return raw, nil
	}
	return json.Marshal(v)
}

// issue registers req under the next id and either queues it or posts it.
func (c *Client) issue(req *domain.Request, done completion) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	req.ID = id
	c.open[id] = &pending{req: req, done: done, issued: time.Now()}
	open := len(c.open)

	var (
		sendNow     bool
		fail        bool
		openChannel bool
	)
	switch {
	case c.closed || c.unavailable || c.opener == nil:
		fail = true
	case c.maxOpen > 0 && open > c.maxOpen:
		fail = true
	case c.state == StateReady && c.flushed:
		sendNow = true
	default:
		c.queue = append(c.queue, id)
		if c.state == StateUninitialized {
			c.state = StateConnecting
			openChannel = true
		}
	}
	c.mu.Unlock()

	c.metrics.SetClientOpenRequests(open)

	switch {
	case fail:
		c.synthesize(id, domain.ErrChannelUnavailable)
	case sendNow:
		c.sendMu.Lock()
		c.send(req)
		c.sendMu.Unlock()
	case openChannel:
		c.connect()
	}
}

// connect opens the channel. The handler is attached before the embedded
// document can announce readiness.
func (c *Client) connect() {
	c.logger.Debug("opening channel")

	port, err := c.opener.Open(c.target, c.onMessage)
	if err != nil {
		c.logger.Warn("channel unavailable", "error", err)
		c.metrics.RecordClientError("channel_unavailable")

		c.mu.Lock()
		c.unavailable = true
		queued := c.queue
		c.queue = nil
		c.mu.Unlock()

		for _, id := range queued {
			c.synthesize(id, domain.ErrChannelUnavailable)
		}
		return
	}

	// A transport may deliver ready before Open returns. The flush that
	// markReady scheduled then found no port, so schedule another.
	c.mu.Lock()
	c.port = port
	pending := c.state == StateReady && !c.flushed
	c.mu.Unlock()

	if pending && !c.sched.Post(c.flush) {
		c.flush()
	}
}

// onMessage is the channel handler. Processing moves onto the client
// scheduler so completions never run on the transport's goroutine.
func (c *Client) onMessage(origin string, payload []byte) {
	msg := append([]byte(nil), payload...)
	if !c.sched.Post(func() { c.receive(origin, msg) }) {
		c.logger.Debug("message dropped after close", "origin", origin)
	}
}

func (c *Client) receive(origin string, payload []byte) {
	if channel.Hostname(origin) != c.targetHost {
		c.reject("origin_mismatch", domain.ErrOriginMismatch.WithDetails(origin))
		return
	}

	msg, err := c.codec.DecodeResponse(payload)
	if err != nil {
		c.reject("malformed_payload", domain.ErrMalformedPayload.WithCause(err))
		return
	}

	if c.codec.IsReady(msg) {
		c.markReady()
		return
	}
	c.handleResponse(&msg.Response)
}

func (c *Client) markReady() {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return
	}
	c.state = StateReady
	c.mu.Unlock()

	c.logger.Debug("channel ready")
	if !c.sched.Post(c.flush) {
		c.flush()
	}
}

// flush posts every queued request in issuance order. It leaves the queue
// alone until connect has stored the port.
func (c *Client) flush() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if c.port == nil {
		c.mu.Unlock()
		return
	}
	ids := c.queue
	c.queue = nil
	c.flushed = true
	reqs := make([]*domain.Request, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.open[id]; ok {
			reqs = append(reqs, p.req)
		}
	}
	c.mu.Unlock()

	for _, req := range reqs {
		c.send(req)
	}
}

// send posts req on the channel. Callers hold sendMu.
func (c *Client) send(req *domain.Request) {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()

	if port == nil {
		c.synthesize(req.ID, domain.ErrChannelUnavailable)
		return
	}

	data, err := c.codec.EncodeRequest(req)
	if err != nil {
		c.synthesize(req.ID, domain.ErrMalformedPayload)
		return
	}
	if err := port.Post(data, c.target); err != nil {
		c.logger.Warn("post failed", "id", req.ID, "error", err)
		c.metrics.RecordClientError("channel_unavailable")
		c.synthesize(req.ID, domain.ErrChannelUnavailable)
	}
}

// synthesize completes id with err through the ordinary response path.
func (c *Client) synthesize(id uint64, err error) {
	resp := domain.ErrorResponse(id, err)
	if !c.sched.Post(func() { c.handleResponse(resp) }) {
		c.handleResponse(resp)
	}
}

func (c *Client) handleResponse(resp *domain.Response) {
	if resp.ID == nil {
		detail := "missing id"
		if resp.Error != "" {
			detail = resp.Error
		}
		c.reject("unsolicited", domain.ErrUnsolicitedResponse.WithDetails(detail))
		return
	}

	id := *resp.ID
	c.mu.Lock()
	p, ok := c.open[id]
	if ok {
		delete(c.open, id)
	}
	open := len(c.open)
	c.mu.Unlock()

	if !ok {
		c.reject("unsolicited", domain.ErrUnsolicitedResponse.WithDetails("id "+strconv.FormatUint(id, 10)))
		return
	}
	c.metrics.SetClientOpenRequests(open)

	outcome := Outcome{Result: resp.Result}
	result := "ok"
	if resp.Failed() {
		outcome = Outcome{Err: domain.FromWireMessage(resp.Error)}
		result = domain.GetErrorCode(outcome.Err)
		if result == "" {
			result = "remote"
		}
	}
	c.metrics.ObserveClientRoundTrip(p.req.Verb.String(), result, time.Since(p.issued).Seconds())

	p.done.complete(outcome)
}

func (c *Client) reject(kind string, err error) {
	c.metrics.RecordClientError(kind)
	c.sink(err)
}

// completeLater completes done on the scheduler without registering a request.
func (c *Client) completeLater(done completion, o Outcome) {
	if !c.sched.Post(func() { done.complete(o) }) {
		done.complete(o)
	}
}
