package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := New(nil)
	l.Start(context.Background())
	defer l.Stop()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestLoop_PostFromTaskIsDeferred(t *testing.T) {
	l := New(nil)
	l.Start(context.Background())
	defer l.Stop()

	var order []string
	done := make(chan struct{})

	l.Post(func() {
		l.Post(func() {
			order = append(order, "inner")
			close(done)
		})
		order = append(order, "outer")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("inner task did not run")
	}

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v, want [outer inner]", order)
	}
}

func TestLoop_StopDrainsAndRejects(t *testing.T) {
	l := New(nil)

	ran := 0
	for i := 0; i < 3; i++ {
		l.Post(func() { ran++ })
	}

	l.Start(context.Background())
	l.Stop()

	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}
	if l.Post(func() {}) {
		t.Error("Post after Stop should return false")
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	l := New(nil)
	l.Start(context.Background())
	defer l.Stop()

	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop died after a panicking task")
	}
}

func TestLoop_ContextCancel(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on cancel")
	}
	if l.Post(func() {}) {
		t.Error("Post after cancel should return false")
	}
}

func TestManual(t *testing.T) {
	m := NewManual()

	var order []int
	m.Post(func() {
		order = append(order, 1)
		m.Post(func() { order = append(order, 3) })
	})
	m.Post(func() { order = append(order, 2) })

	if n := m.RunPending(); n != 2 {
		t.Fatalf("RunPending = %d, want 2", n)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if n := m.Drain(10); n != 1 {
		t.Fatalf("Drain = %d, want 1", n)
	}
	if len(order) != 3 || order[2] != 3 {
		t.Errorf("order = %v", order)
	}
}
