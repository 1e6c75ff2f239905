package confloader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func startWatcher(t *testing.T, opts ...WatcherOption) (*Watcher, string, <-chan string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "corslight.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := NewWatcher(opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	changed := make(chan string, 16)
	w.OnChange(func(p string) { changed <- p })
	w.StartAsync()
	return w, path, changed
}

func TestWatcher_Watch_NonexistentDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := w.Watch("/nonexistent/path/corslight.yaml"); err == nil {
		t.Error("Watch should fail for a nonexistent directory")
	}
}

func TestWatcher_NotifiesOnWrite(t *testing.T) {
	_, path, changed := startWatcher(t, WithDebounce(20*time.Millisecond))

	// Give the watcher goroutine a moment to start reading events.
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case got := <-changed:
		want, _ := filepath.Abs(path)
		if got != want {
			t.Errorf("changed path = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	_, path, changed := startWatcher(t, WithDebounce(200*time.Millisecond))

	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("x: 1\n"), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
	select {
	case <-changed:
		t.Error("burst produced more than one notification")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	_, path, changed := startWatcher(t, WithDebounce(0))

	time.Sleep(20 * time.Millisecond)
	sibling := filepath.Join(filepath.Dir(path), "other.yaml")
	if err := os.WriteFile(sibling, []byte("x: 1\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case p := <-changed:
		t.Errorf("unexpected notification for %q", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Start()
	}()

	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	wg.Wait()
}
