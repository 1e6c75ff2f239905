package eventloop

import "sync"

// Manual is a Scheduler that only runs tasks when told to. It makes
// asynchronous message flows deterministic in tests.
type Manual struct {
	mu    sync.Mutex
	queue []func()
}

// NewManual creates an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Post implements Scheduler.
func (m *Manual) Post(task func()) bool {
	if task == nil {
		return false
	}
	m.mu.Lock()
	m.queue = append(m.queue, task)
	m.mu.Unlock()
	return true
}

// Len returns the number of queued tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunPending runs the tasks queued at the time of the call. Tasks posted
// while they run stay queued. It returns the number of tasks executed.
func (m *Manual) RunPending() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, task := range batch {
		task()
	}
	return len(batch)
}

// Drain runs tasks until the queue stays empty, up to limit batches.
// It returns the total number of tasks executed.
func (m *Manual) Drain(limit int) int {
	total := 0
	for i := 0; i < limit; i++ {
		n := m.RunPending()
		if n == 0 {
			break
		}
		total += n
	}
	return total
}
