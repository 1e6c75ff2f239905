package frameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/corslight-go/internal/channel"
	"github.com/yndnr/corslight-go/internal/channel/netport"
	"github.com/yndnr/corslight-go/internal/core/service"
	"github.com/yndnr/corslight-go/internal/server/dispatcher"
	"github.com/yndnr/corslight-go/internal/telemetry/logger"
	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// EngineSource returns the engine for a new connection.
type EngineSource func() dispatcher.Engine

// Config holds the frame server configuration.
type Config struct {
	// Network is "tcp" or "unix".
	Network string
	// Address is the listen address or socket path.
	Address string
	// Origin is the origin of the hosted document.
	Origin string
	// Namespace prefixes protocol actions.
	Namespace string

	// HandshakeTimeout bounds the origin exchange (default: 10s).
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each response write (default: 30s).
	WriteTimeout time.Duration
	// MaxFrameSize bounds a message line (default: netport.DefaultMaxFrameSize).
	MaxFrameSize int
	// MaxConnections limits concurrent connections. Zero means unlimited.
	MaxConnections int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Network:          "tcp",
		Address:          "127.0.0.1:5380",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     30 * time.Second,
		MaxFrameSize:     netport.DefaultMaxFrameSize,
	}
}

// Server accepts connections and serves one dispatcher per connection.
type Server struct {
	cfg     *Config
	engines EngineSource
	limiter *service.RateLimiterRegistry
	logger  *slog.Logger
	metrics *metric.Registry

	mu       sync.Mutex
	listener net.Listener
	conns    map[uint64]*netport.Conn
	nextID   uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter throttles requests per origin hostname across connections.
func WithLimiter(l *service.RateLimiterRegistry) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a frame server.
func New(cfg *Config, engines EngineSource, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engines == nil {
		return nil, errors.New("frameserver: engine source is required")
	}
	if _, err := channel.OriginOf(cfg.Origin); err != nil {
		return nil, fmt.Errorf("frameserver: origin: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		engines: engines,
		conns:   make(map[uint64]*netport.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Listen binds the configured address. A stale unix socket file is removed
// first.
func (s *Server) Listen() error {
	network := s.cfg.Network
	if network == "" {
		network = "tcp"
	}
	if network == "unix" {
		if err := os.Remove(s.cfg.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("frameserver: remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen(network, s.cfg.Address)
	if err != nil {
		return fmt.Errorf("frameserver: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx ends or Shutdown is called. Listen is
// called first if needed.
func (s *Server) Serve(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	s.running.Store(true)
	s.logger.Info("frame server listening",
		"network", ln.Addr().Network(),
		"address", ln.Addr().String(),
		"origin", s.cfg.Origin)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timeout", "error", err)
				continue
			}
			return err
		}

		if s.cfg.MaxConnections > 0 && s.ConnCount() >= s.cfg.MaxConnections {
			s.logger.Warn("max connections reached, rejecting connection",
				"remote", conn.RemoteAddr().String(),
				"limit", s.cfg.MaxConnections)
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	port, err := netport.Handshake(nc, s.cfg.Origin, netport.Options{
		MaxFrameSize:     s.cfg.MaxFrameSize,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		Logger:           s.logger,
	})
	if err != nil {
		s.logger.Debug("handshake failed", "remote", nc.RemoteAddr().String(), "error", err)
		return
	}

	id := s.track(port)
	defer s.untrack(id)
	defer port.Close()

	connCtx := logger.WithConnID(logger.WithLogger(ctx, logger.FromSlog(s.logger)), fmt.Sprintf("f%d", id))
	log := logger.L(connCtx).With("parent", port.RemoteOrigin()).Slog()

	frame := channel.NewFrame(s.cfg.Origin, port)
	d, err := dispatcher.New(frame, dispatcher.Config{
		Namespace: s.cfg.Namespace,
		Engine:    s.engines(),
		Limiter:   s.limiter,
		Context:   connCtx,
		Logger:    log,
		Metrics:   s.metrics,
	})
	if err != nil {
		log.Error("dispatcher setup failed", "error", err)
		return
	}
	defer d.Close()

	log.Debug("document embedded")
	select {
	case <-port.Done():
	case <-ctx.Done():
	}
	log.Debug("document detached")
}

func (s *Server) track(c *netport.Conn) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.conns[s.nextID] = c
	return s.nextID
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// Shutdown stops accepting, closes open connections and waits for their
// handlers to return or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.mu.Lock()
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
		if errors.Is(closeErr, net.ErrClosed) {
			closeErr = nil
		}
	}
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
