package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"encore.dev/rlog"

	"encore.app/locator/model"
)

// MemoryConfig tunes the in-process queue.
type MemoryConfig struct {
	// Visibility hides a received item until it elapses. Default: 5s
	Visibility time.Duration
	// Retention drops items enqueued longer ago than this. Default: 15m
	Retention time.Duration
}

func (c *MemoryConfig) applyDefaults() {
	if c.Visibility <= 0 {
		c.Visibility = 5 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 15 * time.Minute
	}
}

type memoryItem struct {
	item      model.QueuedDeviceRequest
	dedupKey  string
	visibleAt time.Time
}

var _ Queue = (*Memory)(nil)

// Memory is an in-process Queue for single-instance deployments and tests.
type Memory struct {
	mu    sync.Mutex
	cfg   MemoryConfig
	items map[string]*memoryItem
	dedup map[string]string
	now   func() time.Time
}

// NewMemory creates an empty queue. A nil clock uses time.Now.
func NewMemory(cfg MemoryConfig, now func() time.Time) *Memory {
	cfg.applyDefaults()
	if now == nil {
		now = time.Now
	}
	return &Memory{
		cfg:   cfg,
		items: make(map[string]*memoryItem),
		dedup: make(map[string]string),
		now:   now,
	}
}

func (m *Memory) Enqueue(_ context.Context, item *model.QueuedDeviceRequest, dedupKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dedupKey != "" {
		if id, ok := m.dedup[dedupKey]; ok {
			rlog.Debug("duplicate enqueue suppressed", "dedup_key", dedupKey, "queued_id", id)
			return nil
		}
	}

	stored := *item
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := m.now()
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = now
	}
	m.items[stored.ID] = &memoryItem{item: stored, dedupKey: dedupKey, visibleAt: now}
	if dedupKey != "" {
		m.dedup[dedupKey] = stored.ID
	}
	item.ID = stored.ID
	item.EnqueuedAt = stored.EnqueuedAt
	return nil
}

func (m *Memory) Receive(_ context.Context, batchSize int) ([]*model.QueuedDeviceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	visible := make([]*memoryItem, 0, len(m.items))
	for id, it := range m.items {
		if now.Sub(it.item.EnqueuedAt) > m.cfg.Retention {
			rlog.Warn("dropping undeliverable device request", "id", id, "device_id", it.item.DeviceID, "attempt", it.item.Attempt)
			m.remove(id)
			continue
		}
		if !it.visibleAt.After(now) {
			visible = append(visible, it)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		return visible[i].item.EnqueuedAt.Before(visible[j].item.EnqueuedAt)
	})
	if batchSize > 0 && len(visible) > batchSize {
		visible = visible[:batchSize]
	}

	out := make([]*model.QueuedDeviceRequest, 0, len(visible))
	for _, it := range visible {
		it.item.Attempt++
		it.visibleAt = now.Add(m.cfg.Visibility)
		delivered := it.item
		out = append(out, &delivered)
	}
	return out, nil
}

func (m *Memory) Acknowledge(_ context.Context, item *model.QueuedDeviceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(item.ID)
	return nil
}

// Len reports how many items are queued, visible or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// remove must be called with mu held.
func (m *Memory) remove(id string) {
	it, ok := m.items[id]
	if !ok {
		return
	}
	if it.dedupKey != "" {
		delete(m.dedup, it.dedupKey)
	}
	delete(m.items, id)
}
