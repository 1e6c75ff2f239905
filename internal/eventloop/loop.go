// Package eventloop provides single-threaded cooperative task scheduling.
//
// Every protocol endpoint runs its message handlers on one scheduler, so a
// handler never executes on the call stack of the code that sent the message
// and never runs in parallel with another handler of the same endpoint.
package eventloop

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler runs tasks asynchronously, one at a time, in posting order.
type Scheduler interface {
	// Post queues task for later execution. It returns false if the
	// scheduler no longer accepts tasks.
	Post(task func()) bool
}

// Loop is a Scheduler backed by a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	logger *slog.Logger
}

// New creates a stopped loop. Call Start to begin executing tasks; tasks
// posted before Start are kept.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

// Post implements Scheduler.
func (l *Loop) Post(task func()) bool {
	if task == nil {
		return false
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Start runs the loop in a new goroutine until ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stop stops accepting tasks, runs the ones already queued and waits for
// the loop goroutine to exit. Stop must only be called after Start.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.stopCh)
	})
	<-l.doneCh
}

// Done returns a channel closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	for {
		for l.runBatch() {
		}

		select {
		case <-l.wake:
		case <-l.stopCh:
			for l.runBatch() {
			}
			return
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.mu.Unlock()
			return
		}
	}
}

// runBatch executes the tasks queued so far. It reports whether any ran.
func (l *Loop) runBatch() bool {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, task := range batch {
		l.exec(task)
	}
	return len(batch) > 0
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}
