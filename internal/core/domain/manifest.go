package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Manifest is the access-control table mapping a key to the hostnames
// allowed to use it. A Manifest is immutable once built.
type Manifest struct {
	entries map[string]map[string]struct{}
}

// NewManifest builds a Manifest from canonical key -> hostnames lists.
// Hostnames are compared case-insensitively.
func NewManifest(entries map[string][]string) *Manifest {
	m := &Manifest{entries: make(map[string]map[string]struct{}, len(entries))}
	for key, hosts := range entries {
		set := make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				set[h] = struct{}{}
			}
		}
		m.entries[key] = set
	}
	return m
}

// ParseManifest builds a Manifest from a decoded configuration value where
// each key maps either to a single hostname or to a list of hostnames.
func ParseManifest(raw map[string]any) (*Manifest, error) {
	entries, err := NormalizeManifest(raw)
	if err != nil {
		return nil, err
	}
	return NewManifest(entries), nil
}

// NormalizeManifest turns scalar-or-list allow-lists into canonical
// key -> hostnames lists.
func NormalizeManifest(raw map[string]any) (map[string][]string, error) {
	entries := make(map[string][]string, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case nil:
			entries[key] = nil
		case string:
			entries[key] = []string{val}
		case []string:
			entries[key] = val
		case []any:
			hosts := make([]string, 0, len(val))
			for i, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("manifest key %q: entry %d is %T, want string", key, i, item)
				}
				hosts = append(hosts, s)
			}
			entries[key] = hosts
		default:
			return nil, fmt.Errorf("manifest key %q: unsupported value type %T", key, v)
		}
	}
	return entries, nil
}

// Has reports whether key is listed.
func (m *Manifest) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.entries[key]
	return ok
}

// Allows reports whether hostname may use key.
func (m *Manifest) Allows(key, hostname string) bool {
	if m == nil {
		return false
	}
	set, ok := m.entries[key]
	if !ok {
		return false
	}
	_, ok = set[strings.ToLower(hostname)]
	return ok
}

// Keys returns the listed keys in sorted order.
func (m *Manifest) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Origins returns the sorted hostnames allowed for key.
func (m *Manifest) Origins(key string) []string {
	if m == nil {
		return nil
	}
	set := m.entries[key]
	hosts := make([]string, 0, len(set))
	for h := range set {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Len returns the number of keys.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
