// Package workflow drives the resolution state machine as a Temporal workflow, one
// execution per cache key.
package workflow

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"encore.app/locator/model"
	"encore.app/locator/resolution"
	"encore.app/locator/resolver"
)

// TaskQueue is where resolution workflows and activities run.
const TaskQueue = "locator-resolution"

// Resolution resolves one cache key. It is started with the key's execution ID as
// workflow ID, so at most one runs per key at a time.
func Resolution(ctx workflow.Context, input model.ResolutionInput) (model.ResolutionResult, error) {
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)

	// retries of the same execution share the first run ID and so recognize their placeholder
	owner := info.FirstRunID
	if owner == "" {
		owner = info.WorkflowExecution.RunID
	}
	deadline := input.Deadline
	if deadline.IsZero() && info.WorkflowExecutionTimeout > 0 {
		deadline = info.WorkflowStartTime.Add(info.WorkflowExecutionTimeout)
	}

	logger.Info("Starting resolution workflow", "domain", input.Domain, "key", input.Key, "owner", owner)

	run, err := resolution.Drive[workflow.Context](ctx, owner, &temporalSteps{input: input, owner: owner, deadline: deadline})
	if err != nil {
		logger.Error("Resolution failed", "domain", input.Domain, "key", input.Key, "state", run.State.String(), "error", err)
		return model.ResolutionResult{}, err
	}

	logger.Info("Resolution workflow completed", "domain", input.Domain, "key", input.Key, "outcome", run.Outcome)
	return model.ResolutionResult{
		Domain:      input.Domain,
		Key:         input.Key,
		Outcome:     run.Outcome,
		CompletedAt: workflow.Now(ctx),
	}, nil
}

type temporalSteps struct {
	input    model.ResolutionInput
	owner    string
	deadline time.Time
}

func cacheOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    4,
		},
	})
}

func resolverOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeInvalidRequest, errTypeUnknownDomain, string(resolver.KindAuth)},
		},
	})
}

func (s *temporalSteps) FetchCache(ctx workflow.Context) (model.Lookup, error) {
	var lookup model.Lookup
	err := workflow.ExecuteActivity(cacheOptions(ctx), FetchCacheActivity, s.input.Domain, s.input.Key).Get(ctx, &lookup)
	return lookup, err
}

func (s *temporalSteps) Claim(ctx workflow.Context) (bool, error) {
	var claimed bool
	err := workflow.ExecuteActivity(cacheOptions(ctx), ClaimActivity, s.input, s.owner, s.deadline).Get(ctx, &claimed)
	return claimed, err
}

func (s *temporalSteps) Resolve(ctx workflow.Context) (resolver.Outcome, error) {
	var outcome resolver.Outcome
	err := workflow.ExecuteActivity(resolverOptions(ctx), ResolveActivity, s.input).Get(ctx, &outcome)
	return outcome, err
}

func (s *temporalSteps) PersistResolved(ctx workflow.Context, payload json.RawMessage) error {
	return workflow.ExecuteActivity(cacheOptions(ctx), PersistResolvedActivity, s.input.Domain, s.input.Key, payload, s.deadline).Get(ctx, nil)
}

func (s *temporalSteps) PersistUnresolved(ctx workflow.Context) error {
	return workflow.ExecuteActivity(cacheOptions(ctx), PersistUnresolvedActivity, s.input.Domain, s.input.Key, s.deadline).Get(ctx, nil)
}
