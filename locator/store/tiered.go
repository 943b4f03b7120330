package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"

	"encore.dev/rlog"

	"encore.app/locator/model"
)

var _ Cache = (*Tiered)(nil)

// Tiered fronts a shared Cache with an in-process bigcache holding terminal entries only.
// Terminal entries never change until they expire, so the L1 copy cannot go stale;
// placeholders always go to the shared cache.
type Tiered struct {
	l1  *bigcache.BigCache
	l2  Cache
	now func() time.Time
}

// NewTiered builds the L1 with lifeWindow as the upper bound on how long it keeps a copy.
func NewTiered(ctx context.Context, l2 Cache, lifeWindow time.Duration, maxSizeMB int) (*Tiered, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.HardMaxCacheSize = maxSizeMB
	cfg.Verbose = false

	l1, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Tiered{l1: l1, l2: l2, now: time.Now}, nil
}

func tieredKey(domain model.Domain, key string) string {
	return string(domain) + "/" + key
}

func (t *Tiered) Get(ctx context.Context, domain model.Domain, key string) (model.Lookup, error) {
	if entry, ok := t.fromL1(domain, key); ok {
		return entry.Lookup(), nil
	}

	lookup, err := t.l2.Get(ctx, domain, key)
	if err != nil {
		return lookup, err
	}
	if lookup.State.Terminal() && !lookup.ExpiresAt.IsZero() {
		t.toL1(domain, key, model.CacheEntry{
			Resolved:   lookup.State == model.StateResolved,
			Unresolved: lookup.State == model.StateUnresolved,
			Payload:    lookup.Payload,
			UpdatedAt:  lookup.UpdatedAt,
			ExpiresAt:  lookup.ExpiresAt,
		})
	}
	return lookup, nil
}

func (t *Tiered) PutPlaceholder(ctx context.Context, domain model.Domain, key, owner string, expiresAt time.Time) error {
	return t.l2.PutPlaceholder(ctx, domain, key, owner, expiresAt)
}

func (t *Tiered) PutResolved(ctx context.Context, domain model.Domain, key string, payload json.RawMessage, ttl time.Duration) error {
	if err := t.l2.PutResolved(ctx, domain, key, payload, ttl); err != nil {
		return err
	}
	now := t.now()
	t.toL1(domain, key, model.CacheEntry{Resolved: true, Payload: payload, UpdatedAt: now, ExpiresAt: now.Add(ttl)})
	return nil
}

func (t *Tiered) PutUnresolved(ctx context.Context, domain model.Domain, key string, ttl time.Duration) error {
	if err := t.l2.PutUnresolved(ctx, domain, key, ttl); err != nil {
		return err
	}
	now := t.now()
	t.toL1(domain, key, model.CacheEntry{Unresolved: true, UpdatedAt: now, ExpiresAt: now.Add(ttl)})
	return nil
}

// Close releases the L1 shards.
func (t *Tiered) Close() error {
	return t.l1.Close()
}

func (t *Tiered) fromL1(domain model.Domain, key string) (model.CacheEntry, bool) {
	data, err := t.l1.Get(tieredKey(domain, key))
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			rlog.Warn("l1 resolution cache get failed", "domain", domain, "key", key, "error", err)
		}
		return model.CacheEntry{}, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = t.l1.Delete(tieredKey(domain, key))
		return model.CacheEntry{}, false
	}
	if entry.Expired(t.now()) {
		_ = t.l1.Delete(tieredKey(domain, key))
		return model.CacheEntry{}, false
	}
	return entry, true
}

func (t *Tiered) toL1(domain model.Domain, key string, entry model.CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := t.l1.Set(tieredKey(domain, key), data); err != nil {
		rlog.Warn("l1 resolution cache set failed", "domain", domain, "key", key, "error", err)
	}
}
