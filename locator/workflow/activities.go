package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"encore.app/locator/model"
	"encore.app/locator/resolution"
	"encore.app/locator/resolver"
	"encore.app/locator/store"
)

// ActivityDependencies holds what the resolution activities need.
type ActivityDependencies struct {
	Cache   store.Cache
	Engines *resolver.Registry
	Config  resolution.Config
}

var activityDeps *ActivityDependencies

// SetActivityDependencies installs the dependencies shared by every activity. A nil cache
// clears them.
func SetActivityDependencies(cache store.Cache, engines *resolver.Registry, cfg resolution.Config) {
	if cache == nil {
		activityDeps = nil
		return
	}
	activityDeps = &ActivityDependencies{
		Cache:   cache,
		Engines: engines,
		Config:  cfg.WithDefaults(),
	}
}

const (
	errTypeDependency     = "DependencyError"
	errTypeInvalidRequest = "INVALID_REQUEST"
	errTypeUnknownDomain  = "UNKNOWN_DOMAIN"
	errTypeDeadline       = "DEADLINE_PASSED"
)

func deps() (*ActivityDependencies, error) {
	if activityDeps == nil || activityDeps.Cache == nil || activityDeps.Engines == nil {
		return nil, temporal.NewApplicationError("activity dependencies not initialized", errTypeDependency)
	}
	return activityDeps, nil
}

// FetchCacheActivity reads the cache entry at the execution's key.
func FetchCacheActivity(ctx context.Context, domain model.Domain, key string) (model.Lookup, error) {
	d, err := deps()
	if err != nil {
		return model.Lookup{}, err
	}
	return d.Cache.Get(ctx, domain, key)
}

// ClaimActivity writes the placeholder for owner. It reports false when another execution
// holds the key.
func ClaimActivity(ctx context.Context, input model.ResolutionInput, owner string, expiresAt time.Time) (bool, error) {
	logger := activity.GetLogger(ctx)
	d, err := deps()
	if err != nil {
		return false, err
	}

	claimed, err := store.Claim(ctx, d.Cache, input.Domain, input.Key, owner, expiresAt)
	if err != nil {
		logger.Error("Failed to write placeholder", "key", input.Key, "error", err)
		return false, err
	}
	if !claimed {
		logger.Info("Placeholder held by another execution", "key", input.Key)
	}
	return claimed, nil
}

// ResolveActivity calls the third party. Infrastructure failures are retried by the
// activity retry policy; a request that cannot be decoded never will be.
func ResolveActivity(ctx context.Context, input model.ResolutionInput) (resolver.Outcome, error) {
	logger := activity.GetLogger(ctx)
	d, err := deps()
	if err != nil {
		return resolver.Outcome{}, err
	}

	engine, ok := d.Engines.Engine(input.Domain)
	if !ok {
		return resolver.Outcome{}, temporal.NewNonRetryableApplicationError("no engine for domain", errTypeUnknownDomain, resolution.ErrUnknownDomain, input.Domain)
	}

	outcome, err := engine.Resolve(ctx, input.Request)
	if err != nil {
		if errors.Is(err, resolver.ErrInvalidRequest) {
			logger.Error("Request cannot be resolved", "key", input.Key, "error", err)
			return resolver.Outcome{}, temporal.NewNonRetryableApplicationError("invalid request", errTypeInvalidRequest, err)
		}
		var infra *resolver.InfrastructureError
		if errors.As(err, &infra) {
			logger.Warn("Resolver infrastructure failure", "key", input.Key, "kind", infra.Kind, "error", err)
			return resolver.Outcome{}, temporal.NewApplicationErrorWithCause("resolver unavailable", string(infra.Kind), err)
		}
		return resolver.Outcome{}, err
	}

	logger.Info("Resolver answered", "key", input.Key, "resolved", outcome.Resolved)
	return outcome, nil
}

// PersistResolvedActivity writes the terminal answer. An answer arriving after deadline is
// dropped so the key stays retryable once the placeholder lapses.
func PersistResolvedActivity(ctx context.Context, domain model.Domain, key string, payload json.RawMessage, deadline time.Time) error {
	d, err := deps()
	if err != nil {
		return err
	}
	if err := checkDeadline(ctx, key, deadline); err != nil {
		return err
	}
	if err := d.Cache.PutResolved(ctx, domain, key, payload, d.Config.ResolvedTTL); err != nil {
		return err
	}
	resolution.CountOutcome(domain, string(model.OutcomeResolved))
	return nil
}

// PersistUnresolvedActivity writes the terminal "no data" marker.
func PersistUnresolvedActivity(ctx context.Context, domain model.Domain, key string, deadline time.Time) error {
	d, err := deps()
	if err != nil {
		return err
	}
	if err := checkDeadline(ctx, key, deadline); err != nil {
		return err
	}
	if err := d.Cache.PutUnresolved(ctx, domain, key, d.Config.UnresolvedTTL); err != nil {
		return err
	}
	resolution.CountOutcome(domain, string(model.OutcomeUnresolved))
	return nil
}

func checkDeadline(ctx context.Context, key string, deadline time.Time) error {
	if deadline.IsZero() || time.Now().Before(deadline) {
		return nil
	}
	activity.GetLogger(ctx).Warn("Dropping answer past deadline", "key", key, "deadline", deadline)
	return temporal.NewNonRetryableApplicationError("resolution deadline passed", errTypeDeadline, nil)
}
