package channel

import (
	"sync"

	"github.com/yndnr/corslight-go/internal/eventloop"
)

// pipeEnd is one side of an in-memory channel.
type pipeEnd struct {
	origin string
	sched  eventloop.Scheduler
	peer   *pipeEnd
	state  *pipeState

	mu       sync.Mutex
	handlers map[int]Handler
	order    []int
	nextID   int
}

type pipeState struct {
	mu     sync.Mutex
	closed bool
}

// PipePort is a Port of an in-memory channel created by Pipe.
type PipePort struct {
	end *pipeEnd
}

// Pipe connects two in-memory ports. Messages posted on a are delivered on
// bSched to the handlers of b with aOrigin as sender, and vice versa.
func Pipe(aOrigin string, aSched eventloop.Scheduler, bOrigin string, bSched eventloop.Scheduler) (*PipePort, *PipePort) {
	state := &pipeState{}
	a := &pipeEnd{origin: aOrigin, sched: aSched, state: state, handlers: make(map[int]Handler)}
	b := &pipeEnd{origin: bOrigin, sched: bSched, state: state, handlers: make(map[int]Handler)}
	a.peer, b.peer = b, a
	return &PipePort{end: a}, &PipePort{end: b}
}

// Post implements Port.
func (p *PipePort) Post(payload []byte, targetOrigin string) error {
	p.end.state.mu.Lock()
	closed := p.end.state.closed
	p.end.state.mu.Unlock()
	if closed {
		return ErrClosed
	}

	peer := p.end.peer
	if !TargetMatches(targetOrigin, peer.origin) {
		return nil
	}

	msg := append([]byte(nil), payload...)
	sender := p.end.origin
	if !peer.sched.Post(func() { peer.deliver(sender, msg) }) {
		return ErrClosed
	}
	return nil
}

// Listen implements Port.
func (p *PipePort) Listen(h Handler) func() {
	e := p.end
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = h
	e.order = append(e.order, id)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Close tears down both sides of the pipe. Messages already scheduled are
// still delivered.
func (p *PipePort) Close() error {
	p.end.state.mu.Lock()
	p.end.state.closed = true
	p.end.state.mu.Unlock()
	return nil
}

// Origin returns the origin of this side.
func (p *PipePort) Origin() string {
	return p.end.origin
}

func (e *pipeEnd) deliver(origin string, payload []byte) {
	e.mu.Lock()
	hs := make([]Handler, 0, len(e.handlers))
	for _, id := range e.order {
		if h, ok := e.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	e.mu.Unlock()

	for _, h := range hs {
		h(origin, payload)
	}
}
