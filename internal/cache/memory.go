// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	entry   Entry
	created time.Time
}

// Memory is a process-local cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	maxAge  time.Duration
	now     func() time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory(maxAge time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memEntry),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || expired(e.created, m.maxAge, m.now()) {
		return Entry{}, false, nil
	}
	return loaded(e.entry), true, nil
}

func (m *Memory) Put(_ context.Context, key string, e Entry) error {
	e = stored(e)

	m.mu.Lock()
	m.entries[key] = memEntry{entry: e, created: m.now()}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
