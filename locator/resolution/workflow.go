package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"encore.dev/rlog"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
	"encore.app/locator/store"
)

// Workflow runs resolution executions in process.
type Workflow struct {
	cache   store.Cache
	engines *resolver.Registry
	cfg     Config
	now     func() time.Time
}

// NewWorkflow builds the in-process driver of the state machine.
func NewWorkflow(cache store.Cache, engines *resolver.Registry, cfg Config) *Workflow {
	cfg.applyDefaults()
	return &Workflow{cache: cache, engines: engines, cfg: cfg, now: time.Now}
}

// Run drives one execution for input until a terminal state, the deadline, or a step error.
// The caller supplies owner, the token written into the placeholder.
func (w *Workflow) Run(ctx context.Context, input model.ResolutionInput, owner string) (model.ResolutionResult, error) {
	engine, ok := w.engines.Engine(input.Domain)
	if !ok {
		return model.ResolutionResult{}, fmt.Errorf("%w: %s", ErrUnknownDomain, input.Domain)
	}

	deadline := input.Deadline
	if deadline.IsZero() {
		deadline = w.now().Add(w.cfg.WorkflowTimeout)
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	steps := &localSteps{
		cache:    w.cache,
		engine:   engine,
		input:    input,
		owner:    owner,
		deadline: deadline,
		cfg:      w.cfg,
	}

	run, err := Drive[context.Context](ctx, owner, steps)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			CountOutcome(input.Domain, "timeout")
			rlog.Warn("resolution abandoned at deadline",
				"domain", input.Domain, "key", input.Key, "state", run.State.String())
			return model.ResolutionResult{}, fmt.Errorf("%w: %s: %w", ErrWorkflowTimeout, input.ExecutionID(), err)
		}
		CountOutcome(input.Domain, "error")
		rlog.Error("resolution failed",
			"domain", input.Domain, "key", input.Key, "state", run.State.String(), "error", err)
		return model.ResolutionResult{}, err
	}

	CountOutcome(input.Domain, string(run.Outcome))
	rlog.Info("resolution finished", "domain", input.Domain, "key", input.Key, "outcome", run.Outcome)
	return model.ResolutionResult{
		Domain:      input.Domain,
		Key:         input.Key,
		Outcome:     run.Outcome,
		CompletedAt: w.now(),
	}, nil
}

type localSteps struct {
	cache    store.Cache
	engine   resolver.Engine
	input    model.ResolutionInput
	owner    string
	deadline time.Time
	cfg      Config
}

func (s *localSteps) FetchCache(ctx context.Context) (model.Lookup, error) {
	return s.cache.Get(ctx, s.input.Domain, s.input.Key)
}

func (s *localSteps) Claim(ctx context.Context) (bool, error) {
	return store.Claim(ctx, s.cache, s.input.Domain, s.input.Key, s.owner, s.deadline)
}

func (s *localSteps) Resolve(ctx context.Context) (resolver.Outcome, error) {
	return s.engine.Resolve(ctx, s.input.Request)
}

// A resolver that ignores cancellation may answer after the deadline; that answer is dropped.
func (s *localSteps) PersistResolved(ctx context.Context, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.cache.PutResolved(ctx, s.input.Domain, s.input.Key, payload, s.cfg.ResolvedTTL)
}

func (s *localSteps) PersistUnresolved(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.cache.PutUnresolved(ctx, s.input.Domain, s.input.Key, s.cfg.UnresolvedTTL)
}
