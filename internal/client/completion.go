package client

import (
	"context"
	"encoding/json"
	"sync"
)

// Outcome is the result of one request: Err is set on failure, otherwise
// Result holds the response result (nil for store and remove).
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// Callback receives the outcome of a request in callback style.
type Callback func(err error, result json.RawMessage)

// completion receives an Outcome at most once.
type completion interface {
	complete(o Outcome)
}

// Future is the deferred-value completion style.
type Future struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(o Outcome) {
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
	})
}

// Done returns a channel closed once the request has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request completes or ctx ends. Giving up on ctx does
// not cancel the request.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
		return f.outcome.Result, f.outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the outcome without blocking. ok is false while the
// request is still open.
func (f *Future) Outcome() (o Outcome, ok bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return Outcome{}, false
	}
}

// callbackCompletion pushes an Outcome into a Callback.
type callbackCompletion struct {
	once sync.Once
	cb   Callback
}

func (c *callbackCompletion) complete(o Outcome) {
	c.once.Do(func() {
		if c.cb != nil {
			c.cb(o.Err, o.Result)
		}
	})
}
