package netport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/yndnr/corslight-go/internal/channel"
	"github.com/yndnr/corslight-go/internal/eventloop"
)

// Dialer is a channel.Opener that connects to a frame server.
type Dialer struct {
	// Network is "tcp" or "unix".
	Network string
	// Addr is the server address or socket path.
	Addr string
	// Origin is announced as the embedding document's origin.
	Origin string

	Timeout   time.Duration
	Scheduler eventloop.Scheduler
	Logger    *slog.Logger
}

var _ channel.Opener = (*Dialer)(nil)

// Open implements channel.Opener. It fails when the server announces an
// origin other than target's.
func (d *Dialer) Open(target string, h channel.Handler) (channel.Port, error) {
	return d.OpenContext(context.Background(), target, h)
}

// OpenContext is Open with a context bounding the dial.
func (d *Dialer) OpenContext(ctx context.Context, target string, h channel.Handler) (channel.Port, error) {
	want, err := channel.OriginOf(target)
	if err != nil {
		return nil, err
	}
	if _, err := channel.OriginOf(d.Origin); err != nil {
		return nil, fmt.Errorf("netport: local origin: %w", err)
	}

	network := d.Network
	if network == "" {
		network = "tcp"
	}
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, network, d.Addr)
	if err != nil {
		return nil, fmt.Errorf("netport: dial %s %s: %w", network, d.Addr, err)
	}

	c, err := Handshake(conn, d.Origin, Options{
		Scheduler:        d.Scheduler,
		HandshakeTimeout: d.Timeout,
		Logger:           d.Logger,
	})
	if err != nil {
		return nil, err
	}
	if c.RemoteOrigin() != want {
		_ = c.Close()
		return nil, fmt.Errorf("netport: server origin %s does not serve %s", c.RemoteOrigin(), want)
	}

	c.Listen(h)
	return c, nil
}
