// Package client implements the caller side of the corslight protocol.
//
// A Client correlates requests with responses over a channel.Port that it
// opens lazily on first use. Requests issued before the embedded dispatcher
// has announced readiness are queued and flushed in issuance order once it
// has; later requests are posted immediately. Responses are matched by id
// only, never by arrival order.
//
// Every operation comes in two completion styles that share one internal
// path:
//
//	f := c.Fetch("theme")
//	result, err := f.Wait(ctx)
//
//	c.FetchFunc("theme", func(err error, result json.RawMessage) { ... })
//
// A request whose channel cannot be used completes with
// domain.ErrChannelUnavailable instead of being dropped. There is no
// timeout: a request the peer never answers stays open. Wait only stops
// waiting when its context ends.
package client
