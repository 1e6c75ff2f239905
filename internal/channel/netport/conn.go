package netport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/corslight-go/internal/channel"
	"github.com/yndnr/corslight-go/internal/eventloop"
)

// DefaultMaxFrameSize bounds a single message line.
const DefaultMaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when posting a message longer than the frame
// limit.
var ErrFrameTooLarge = errors.New("netport: frame too large")

// ErrNewline is returned when posting a message that contains a newline.
var ErrNewline = errors.New("netport: payload contains a newline")

// Options configures a Conn.
type Options struct {
	// Scheduler runs inbound handlers. Nil runs them on the read goroutine,
	// one at a time.
	Scheduler eventloop.Scheduler

	// MaxFrameSize bounds a message line. Default: DefaultMaxFrameSize.
	MaxFrameSize int

	// HandshakeTimeout bounds the origin exchange. Zero means no deadline.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each Post. Zero means no deadline.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Conn is a channel.Port over a net.Conn.
type Conn struct {
	conn   net.Conn
	br     *bufio.Reader
	local  string
	remote string
	opts   Options
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[int]channel.Handler
	order    []int
	nextID   int

	startOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	err       error
}

var _ channel.Port = (*Conn)(nil)

// Handshake exchanges origins over conn and returns the port. conn is
// closed when the handshake fails.
func Handshake(conn net.Conn, localOrigin string, opts Options) (*Conn, error) {
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		conn:     conn,
		br:       bufio.NewReaderSize(conn, 4096),
		local:    localOrigin,
		opts:     opts,
		logger:   logger,
		handlers: make(map[int]channel.Handler),
		done:     make(chan struct{}),
	}

	if opts.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.HandshakeTimeout))
	}
	remote, err := c.exchange()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("netport: handshake: %w", err)
	}
	if opts.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	c.remote = remote
	c.logger = logger.With("local_origin", localOrigin, "remote_origin", remote)
	return c, nil
}

func (c *Conn) exchange() (string, error) {
	// Write concurrently: synchronous transports block a write until the
	// peer reads, and the peer writes first as well.
	written := make(chan error, 1)
	go func() {
		_, err := io.WriteString(c.conn, c.local+"\n")
		written <- err
	}()

	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	if err := <-written; err != nil {
		return "", err
	}
	origin, err := channel.OriginOf(string(line))
	if err != nil {
		return "", fmt.Errorf("peer origin %q: %w", line, err)
	}
	return origin, nil
}

// readLine reads one frame without the trailing newline.
func (c *Conn) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := c.br.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > c.opts.MaxFrameSize+1 {
			return nil, ErrFrameTooLarge
		}
		switch {
		case err == nil:
			return bytes.TrimRight(buf, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}

// RemoteOrigin returns the origin announced by the peer.
func (c *Conn) RemoteOrigin() string {
	return c.remote
}

// LocalOrigin returns the origin announced to the peer.
func (c *Conn) LocalOrigin() string {
	return c.local
}

// Post implements channel.Port.
func (c *Conn) Post(payload []byte, targetOrigin string) error {
	if c.closed.Load() {
		return channel.ErrClosed
	}
	if !channel.TargetMatches(targetOrigin, c.remote) {
		return nil
	}
	if bytes.IndexByte(payload, '\n') >= 0 {
		return ErrNewline
	}
	if len(payload) > c.opts.MaxFrameSize {
		return ErrFrameTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(append(buf, payload...), '\n')
	if _, err := c.conn.Write(buf); err != nil {
		if c.closed.Load() {
			return channel.ErrClosed
		}
		return fmt.Errorf("netport: write: %w", err)
	}
	return nil
}

// Listen implements channel.Port. The first call starts the read loop.
func (c *Conn) Listen(h channel.Handler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	c.order = append(c.order, id)
	c.mu.Unlock()

	c.startOnce.Do(func() {
		go c.readLoop()
	})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)

	for {
		line, err := c.readLine()
		if err != nil {
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				c.logger.Warn("read failed", "error", err)
				c.err = err
			}
			_ = c.Close()
			return
		}
		if len(line) == 0 {
			continue
		}

		msg := append([]byte(nil), line...)
		if c.opts.Scheduler != nil {
			if !c.opts.Scheduler.Post(func() { c.deliver(msg) }) {
				_ = c.Close()
				return
			}
			continue
		}
		c.deliver(msg)
	}
}

func (c *Conn) deliver(payload []byte) {
	c.mu.Lock()
	hs := make([]channel.Handler, 0, len(c.handlers))
	for _, id := range c.order {
		if h, ok := c.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(c.remote, payload)
	}
}

// Done is closed once the read loop has exited. It never closes if Listen
// was never called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the read error that ended the loop, if any.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
