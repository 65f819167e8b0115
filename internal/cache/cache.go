// Package cache holds the byte-oriented caches used for search results.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache хранилище сериализованных значений с TTL
type Cache interface {
	// Get reports a miss with ok=false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Incr atomically bumps the counter at key and returns its new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Counter returns the counter at key, zero if it was never bumped.
	Counter(ctx context.Context, key string) (int64, error)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory in-process cache bounded by size. Entries older than maxTTL are
// swept in the background; a shorter per-key ttl is checked on read.
type Memory struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time

	mu       sync.Mutex
	counters map[string]int64
}

func NewMemory(size int, maxTTL time.Duration) *Memory {
	return &Memory{
		lru:      expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now:      time.Now,
		counters: make(map[string]int64),
	}
}

var _ Cache = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := append([]byte(nil), value...)
	m.lru.Add(key, memoryEntry{value: cp, expiresAt: m.now().Add(ttl)})
	return nil
}

// Incr counters live outside the LRU so they are never evicted.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *Memory) Counter(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

// Len number of cached values, expired ones included until swept.
func (m *Memory) Len() int {
	return m.lru.Len()
}
