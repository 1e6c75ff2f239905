package cmap

// Range iterates over all key-value pairs until fn returns false.
// fn must not call back into the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// GetOrCompute returns the value for key, building and storing it with fn
// when the key is absent. fn runs under the shard lock at most once per
// absent key.
func (m *Map[K, V]) GetOrCompute(key K, fn func() V) V {
	s := m.getShard(key)

	s.mu.RLock()
	existing, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return existing
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok {
		return existing
	}
	v := fn()
	s.items[key] = v
	return v
}
