package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{2, 2},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key2", 200)

	if val, ok := m.Get("key1"); !ok || val != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", val, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}

	if !m.Delete("key1") {
		t.Error("Delete(key1) should report presence")
	}
	if m.Delete("key1") {
		t.Error("second Delete(key1) should report absence")
	}
	if _, ok := m.Get("key2"); !ok {
		t.Error("Delete(key1) removed key2")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count after Clear = %d, want 0", m.Count())
	}
}

func TestNonStringKeys(t *testing.T) {
	m := New[uint64, string]()
	for i := uint64(0); i < 100; i++ {
		m.Set(i, fmt.Sprint(i))
	}
	for i := uint64(0); i < 100; i++ {
		if v, ok := m.Get(i); !ok || v != fmt.Sprint(i) {
			t.Fatalf("Get(%d) = (%q, %v)", i, v, ok)
		}
	}
}

func TestRange(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	var keys []string
	m.Range(func(k string, _ int) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	if len(keys) != 10 || keys[0] != "k0" || keys[9] != "k9" {
		t.Errorf("Range keys = %v", keys)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Range visited %d entries after stop, want 3", visited)
	}
}

func TestGetOrCompute(t *testing.T) {
	m := New[string, int]()

	calls := 0
	build := func() int { calls++; return 7 }
	if got := m.GetOrCompute("b", build); got != 7 {
		t.Errorf("GetOrCompute = %d", got)
	}
	if got := m.GetOrCompute("b", build); got != 7 || calls != 1 {
		t.Errorf("GetOrCompute second = %d, calls = %d", got, calls)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				k := g*1000 + i
				m.Set(k, i)
				m.Get(k)
				if i%2 == 0 {
					m.Delete(k)
				}
			}
		}(g)
	}
	wg.Wait()

	if m.Count() != 4000 {
		t.Errorf("Count = %d, want 4000", m.Count())
	}
}
