package resolution

import (
	"encoding/json"
	"fmt"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

// Steps performs the side effects behind each state. C is the driver's context type:
// context.Context for the in-process workflow, workflow.Context under Temporal.
type Steps[C any] interface {
	FetchCache(ctx C) (model.Lookup, error)
	// Claim writes the placeholder; false means another execution won the race.
	Claim(ctx C) (bool, error)
	Resolve(ctx C) (resolver.Outcome, error)
	PersistResolved(ctx C, payload json.RawMessage) error
	PersistUnresolved(ctx C) error
}

// Run is the trace of one execution.
type Run struct {
	State   State
	Outcome model.Outcome
	Path    []State
}

// Drive runs the state machine from StateFetchCache to a terminal state.
//
// Any step error aborts the run before a terminal write, so the key stays retryable.
// owner identifies this execution's placeholder across re-entries.
func Drive[C any](ctx C, owner string, steps Steps[C]) (Run, error) {
	run := Run{State: StateFetchCache, Path: []State{StateFetchCache}}

	var (
		payload json.RawMessage
		cached  bool
	)
	for !run.State.Terminal() {
		var on Event
		switch run.State {
		case StateFetchCache:
			lookup, err := steps.FetchCache(ctx)
			if err != nil {
				return run, fmt.Errorf("fetch cache: %w", err)
			}
			cached = lookup.State.Terminal()
			on = observe(lookup, owner)

		case StateClaim:
			claimed, err := steps.Claim(ctx)
			if err != nil {
				return run, fmt.Errorf("claim: %w", err)
			}
			on = EventClaimLost
			if claimed {
				on = EventClaimed
			}

		case StateResolving:
			outcome, err := steps.Resolve(ctx)
			if err != nil {
				return run, fmt.Errorf("resolve: %w", err)
			}
			on = EventNoData
			if outcome.Resolved {
				payload = outcome.Payload
				on = EventResolved
			}

		case StatePersistResolved:
			if err := steps.PersistResolved(ctx, payload); err != nil {
				return run, fmt.Errorf("persist resolved: %w", err)
			}
			on = EventPersisted

		case StatePersistUnresolved:
			if err := steps.PersistUnresolved(ctx); err != nil {
				return run, fmt.Errorf("persist unresolved: %w", err)
			}
			on = EventPersisted
		}

		next, err := Transition(run.State, on)
		if err != nil {
			return run, err
		}
		run.State = next
		run.Path = append(run.Path, next)
	}

	run.Outcome = outcomeOf(run.State, cached)
	return run, nil
}

func outcomeOf(final State, cached bool) model.Outcome {
	switch {
	case final == StateSuperseded:
		return model.OutcomeSuperseded
	case cached:
		return model.OutcomeCached
	case final == StateDone:
		return model.OutcomeResolved
	default:
		return model.OutcomeUnresolved
	}
}
