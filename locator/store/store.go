// Package store holds the RequestCache: the single source of truth for resolution state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"encore.app/locator/model"
)

//go:generate mockgen -source=store.go -destination=../mocks/store/cache/cache.go -package=cache

var (
	// ErrAlreadyPending is returned by PutPlaceholder when a live entry already exists.
	ErrAlreadyPending = errors.New("store: resolution already pending")

	// ErrCacheUnavailable wraps every backend failure. It is retryable.
	ErrCacheUnavailable = errors.New("store: cache unavailable")
)

// Cache is the RequestCache contract.
//
// Get never fails for a missing or expired key; it returns model.Absent.
// PutPlaceholder is a conditional write: it succeeds only when no live entry exists.
// PutResolved and PutUnresolved overwrite unconditionally.
type Cache interface {
	Get(ctx context.Context, domain model.Domain, key string) (model.Lookup, error)
	PutPlaceholder(ctx context.Context, domain model.Domain, key, owner string, expiresAt time.Time) error
	PutResolved(ctx context.Context, domain model.Domain, key string, payload json.RawMessage, ttl time.Duration) error
	PutUnresolved(ctx context.Context, domain model.Domain, key string, ttl time.Duration) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err)
}

// Claim writes the placeholder for owner. It reports false when another owner holds the
// key. A placeholder already held by owner counts as claimed, so a retried claim whose
// first write landed does not lock its own execution out.
func Claim(ctx context.Context, c Cache, domain model.Domain, key, owner string, expiresAt time.Time) (bool, error) {
	err := c.PutPlaceholder(ctx, domain, key, owner, expiresAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrAlreadyPending) {
		return false, err
	}
	lookup, err := c.Get(ctx, domain, key)
	if err != nil {
		return false, err
	}
	return lookup.State == model.StatePending && lookup.Owner == owner, nil
}
