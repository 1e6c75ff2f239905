package memory

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/yndnr/corslight-go/pkg/cmap"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory: store closed")

// Store is a concurrent in-memory key-value store.
type Store struct {
	items  *cmap.Map[string, []byte]
	closed atomic.Bool
}

// Option configures the Store.
type Option func(*storeOptions)

type storeOptions struct {
	shards int
}

// WithShardCount sets the number of map shards (a power of two).
func WithShardCount(n int) Option {
	return func(o *storeOptions) {
		o.shards = n
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	o := storeOptions{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{items: cmap.NewWithShards[string, []byte](o.shards)}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.items.Set(key, clone(value))
	return nil
}

// Remove deletes key.
func (s *Store) Remove(_ context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.items.Delete(key)
	return nil
}

// Scan calls fn with every entry whose key starts with prefix.
func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.items.Range(func(k string, v []byte) bool {
		if ctx.Err() != nil {
			return false
		}
		if !strings.HasPrefix(k, prefix) {
			return true
		}
		return fn(k, clone(v))
	})
	return ctx.Err()
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	return s.items.Count()
}

// Close drops all data. Further operations fail with ErrClosed.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.items.Clear()
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
