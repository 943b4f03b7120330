package dedup

import (
	"context"
	"time"

	"encore.dev/storage/cache"

	"encore.app/locator/model"
)

// Window is how long a completed submission is remembered.
const Window = 10 * time.Minute

// DedupCluster holds nothing but short-lived submission markers.
var DedupCluster = cache.NewCluster("dedup-cluster", cache.ClusterConfig{
	EvictionPolicy: cache.AllKeysLRU,
})

// DedupEntries is the keyspace of device submissions seen within Window.
var DedupEntries = cache.NewStructKeyspace[model.DedupKey, model.DedupEntry](
	DedupCluster,
	cache.KeyspaceConfig{
		KeyPattern:    "dedup/:Route/:RequestID",
		DefaultExpiry: cache.ExpireIn(Window),
	},
)

// entryStore is the part of the keyspace the middleware uses.
type entryStore interface {
	Get(ctx context.Context, key model.DedupKey) (model.DedupEntry, error)
	Set(ctx context.Context, key model.DedupKey, val model.DedupEntry) error
	SetIfNotExists(ctx context.Context, key model.DedupKey, val model.DedupEntry) error
	Delete(ctx context.Context, keys ...model.DedupKey) (int, error)
}

var entries entryStore = DedupEntries
