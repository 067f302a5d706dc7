// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hotcache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 1000

// memoryBackend is a TTL-aware LRU over a map and an access-ordered list.
// It is the fallback when redis is not configured or not reachable.
type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	max     int
	stats   Stats
}

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

func newMemoryBackend(maxEntries int) *memoryBackend {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &memoryBackend{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		max:     maxEntries,
	}
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return nil, ErrMiss
	}
	entry := el.Value.(*memoryEntry)
	if time.Now().After(entry.expires) {
		m.remove(el)
		m.stats.Misses++
		return nil, ErrMiss
	}

	m.order.MoveToFront(el)
	m.stats.Hits++
	return entry.value, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expires := time.Now().Add(ttl)
	if el, ok := m.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expires = expires
		m.order.MoveToFront(el)
		return nil
	}

	el := m.order.PushFront(&memoryEntry{key: key, value: value, expires: expires})
	m.entries[key] = el

	for len(m.entries) > m.max {
		back := m.order.Back()
		if back == nil {
			break
		}
		m.remove(back)
		m.stats.Evictions++
	}
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		m.remove(el)
	}
	return nil
}

func (m *memoryBackend) Close() error { return nil }

// Stats returns a snapshot of the traffic counters.
func (m *memoryBackend) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// remove expects m.mu held.
func (m *memoryBackend) remove(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.order.Remove(el)
}
