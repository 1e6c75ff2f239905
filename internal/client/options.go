package client

import (
	"log/slog"

	"github.com/yndnr/corslight-go/internal/eventloop"
	"github.com/yndnr/corslight-go/internal/telemetry/metric"
)

// ErrorSink receives inbound messages the client rejected: origin
// mismatches, malformed payloads and unsolicited responses.
type ErrorSink func(err error)

// Option configures a Client.
type Option func(*Client)

// WithScheduler runs response handling and completions on s instead of a
// private event loop.
func WithScheduler(s eventloop.Scheduler) Option {
	return func(c *Client) {
		c.sched = s
	}
}

// WithErrorSink replaces the default sink, which logs a warning.
func WithErrorSink(sink ErrorSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records round trips and rejected messages in reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(c *Client) {
		c.metrics = reg
	}
}

// WithNamespace sets the protocol namespace. Default: "cl".
func WithNamespace(ns string) Option {
	return func(c *Client) {
		c.namespace = ns
	}
}

// WithMaxOpenRequests bounds the open-request table. Requests beyond the
// bound complete with domain.ErrChannelUnavailable. Zero means unbounded.
func WithMaxOpenRequests(n int) Option {
	return func(c *Client) {
		c.maxOpen = n
	}
}
