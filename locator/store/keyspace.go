package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"encore.dev/rlog"
	"encore.dev/storage/cache"

	"encore.app/locator/model"
)

// ResolutionCluster is the redis cluster backing the resolution keyspace. Every entry
// carries a ttl, so only volatile keys are ever evicted.
var ResolutionCluster = cache.NewCluster("resolution-cluster", cache.ClusterConfig{
	EvictionPolicy: cache.VolatileTTL,
})

// ResolutionKey addresses one cache entry.
type ResolutionKey struct {
	Domain string
	Key    string
}

// ResolutionEntries is the keyspace of resolution cache entries.
var ResolutionEntries = cache.NewStructKeyspace[ResolutionKey, model.CacheEntry](
	ResolutionCluster,
	cache.KeyspaceConfig{
		KeyPattern:    "resolution/:Domain/:Key",
		DefaultExpiry: cache.ExpireIn(24 * time.Hour),
	},
)

// EntryKeyspace is what KeyspaceStore needs from a keyspace. Writes carry their own expiry.
type EntryKeyspace interface {
	Get(ctx context.Context, key ResolutionKey) (model.CacheEntry, error)
	Set(ctx context.Context, key ResolutionKey, val model.CacheEntry, expiry cache.WriteOption) error
	SetIfNotExists(ctx context.Context, key ResolutionKey, val model.CacheEntry, expiry cache.WriteOption) error
}

// StructEntries adapts an Encore struct keyspace to EntryKeyspace.
type StructEntries struct {
	Keyspace *cache.StructKeyspace[ResolutionKey, model.CacheEntry]
}

func (e StructEntries) Get(ctx context.Context, key ResolutionKey) (model.CacheEntry, error) {
	return e.Keyspace.Get(ctx, key)
}

func (e StructEntries) Set(ctx context.Context, key ResolutionKey, val model.CacheEntry, expiry cache.WriteOption) error {
	return e.Keyspace.With(expiry).Set(ctx, key, val)
}

func (e StructEntries) SetIfNotExists(ctx context.Context, key ResolutionKey, val model.CacheEntry, expiry cache.WriteOption) error {
	return e.Keyspace.With(expiry).SetIfNotExists(ctx, key, val)
}

var _ Cache = (*KeyspaceStore)(nil)

// KeyspaceStore is a Cache on an Encore redis keyspace. Expiry is native redis ttl.
type KeyspaceStore struct {
	entries EntryKeyspace
	now     func() time.Time
}

// NewKeyspaceStore wraps entries. Production passes StructEntries{ResolutionEntries}.
func NewKeyspaceStore(entries EntryKeyspace) *KeyspaceStore {
	return &KeyspaceStore{entries: entries, now: time.Now}
}

func (s *KeyspaceStore) Get(ctx context.Context, domain model.Domain, key string) (model.Lookup, error) {
	entry, err := s.entries.Get(ctx, ResolutionKey{Domain: string(domain), Key: key})
	if err != nil {
		if errors.Is(err, cache.Miss) {
			return model.Absent, nil
		}
		rlog.Error("resolution cache get failed", "domain", domain, "key", key, "error", err)
		return model.Lookup{}, unavailable("get", err)
	}
	// redis may hand out a key in the same millisecond it expires
	if entry.Expired(s.now()) {
		return model.Absent, nil
	}
	return entry.Lookup(), nil
}

func (s *KeyspaceStore) PutPlaceholder(ctx context.Context, domain model.Domain, key, owner string, expiresAt time.Time) error {
	now := s.now()
	entry := model.CacheEntry{Owner: owner, UpdatedAt: now, ExpiresAt: expiresAt}

	err := s.entries.SetIfNotExists(ctx, ResolutionKey{Domain: string(domain), Key: key}, entry, expireAt(expiresAt))
	if err != nil {
		if errors.Is(err, cache.KeyExists) {
			return ErrAlreadyPending
		}
		rlog.Error("resolution cache placeholder failed", "domain", domain, "key", key, "error", err)
		return unavailable("put placeholder", err)
	}
	return nil
}

// expireAt pins the redis ttl to an absolute instant.
func expireAt(t time.Time) cache.ExpiryFunc {
	return func(time.Time) time.Time { return t }
}

func (s *KeyspaceStore) PutResolved(ctx context.Context, domain model.Domain, key string, payload json.RawMessage, ttl time.Duration) error {
	return s.putTerminal(ctx, domain, key, model.CacheEntry{Resolved: true, Payload: payload}, ttl)
}

func (s *KeyspaceStore) PutUnresolved(ctx context.Context, domain model.Domain, key string, ttl time.Duration) error {
	return s.putTerminal(ctx, domain, key, model.CacheEntry{Unresolved: true}, ttl)
}

func (s *KeyspaceStore) putTerminal(ctx context.Context, domain model.Domain, key string, entry model.CacheEntry, ttl time.Duration) error {
	now := s.now()
	entry.UpdatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	if err := s.entries.Set(ctx, ResolutionKey{Domain: string(domain), Key: key}, entry, cache.ExpireIn(ttl)); err != nil {
		rlog.Error("resolution cache write failed", "domain", domain, "key", key, "error", err)
		return unavailable("put terminal", err)
	}
	return nil
}
