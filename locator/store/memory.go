package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"encore.app/locator/model"
)

var _ Cache = (*Memory)(nil)

// Memory is an in-process Cache. Expired entries are dropped lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]model.CacheEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache. A nil clock uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]model.CacheEntry),
		now:     now,
	}
}

func memoryKey(domain model.Domain, key string) string {
	return string(domain) + "/" + key
}

// Get returns the live entry at key, or model.Absent.
func (m *Memory) Get(_ context.Context, domain model.Domain, key string) (model.Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(memoryKey(domain, key))
	if !ok {
		return model.Absent, nil
	}
	return entry.Lookup(), nil
}

// PutPlaceholder claims key for owner until expiresAt.
func (m *Memory) PutPlaceholder(_ context.Context, domain model.Domain, key, owner string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(domain, key)
	if _, ok := m.live(k); ok {
		return ErrAlreadyPending
	}
	m.entries[k] = model.CacheEntry{
		Owner:     owner,
		UpdatedAt: m.now(),
		ExpiresAt: expiresAt,
	}
	return nil
}

// PutResolved stores payload as the terminal answer for key.
func (m *Memory) PutResolved(_ context.Context, domain model.Domain, key string, payload json.RawMessage, ttl time.Duration) error {
	m.put(domain, key, model.CacheEntry{Resolved: true, Payload: payload}, ttl)
	return nil
}

// PutUnresolved marks key as definitively without an answer.
func (m *Memory) PutUnresolved(_ context.Context, domain model.Domain, key string, ttl time.Duration) error {
	m.put(domain, key, model.CacheEntry{Unresolved: true}, ttl)
	return nil
}

func (m *Memory) put(domain model.Domain, key string, entry model.CacheEntry, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry.UpdatedAt = now
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	m.entries[memoryKey(domain, key)] = entry
}

// live must be called with mu held.
func (m *Memory) live(k string) (model.CacheEntry, bool) {
	entry, ok := m.entries[k]
	if !ok {
		return model.CacheEntry{}, false
	}
	if entry.Expired(m.now()) {
		delete(m.entries, k)
		return model.CacheEntry{}, false
	}
	return entry, true
}
