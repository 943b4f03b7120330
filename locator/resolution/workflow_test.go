package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
	"encore.app/locator/store"
)

func TestWorkflow_Run(t *testing.T) {
	upstreamDown := &resolver.InfrastructureError{Op: "cell", Kind: resolver.KindUpstream, Err: fmt.Errorf("status 502")}

	testCases := []struct {
		name            string
		resolve         func(context.Context, model.CellRequest) (resolver.Result[model.Location], error)
		expectedOutcome model.Outcome
		expectedState   model.EntryState
		expectedErr     error
	}{
		{
			name:            "resolved_is_persisted",
			resolve:         found,
			expectedOutcome: model.OutcomeResolved,
			expectedState:   model.StateResolved,
		},
		{
			name:            "no_data_is_persisted_as_unresolved",
			resolve:         noData,
			expectedOutcome: model.OutcomeUnresolved,
			expectedState:   model.StateUnresolved,
		},
		{
			name: "infrastructure_error_is_not_persisted",
			resolve: func(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
				return resolver.Result[model.Location]{}, upstreamDown
			},
			expectedState: model.StatePending,
			expectedErr:   resolver.ErrInfrastructure,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache := store.NewMemory(nil)
			engine := &cellEngine{fn: tc.resolve}
			wf := NewWorkflow(cache, engine.registry(), Config{})

			result, err := wf.Run(context.Background(), cellInput(time.Now().Add(time.Minute)), "owner-1")

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedOutcome, result.Outcome)
				assert.Equal(t, cellKey14, result.Key)
			}
			assert.EqualValues(t, 1, engine.calls.Load())

			lookup, err := cache.Get(context.Background(), model.DomainCell, cellKey14)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedState, lookup.State)
		})
	}
}

func TestWorkflow_PersistedPayloadRoundTrips(t *testing.T) {
	cache := store.NewMemory(nil)
	engine := &cellEngine{fn: found}
	wf := NewWorkflow(cache, engine.registry(), Config{})

	_, err := wf.Run(context.Background(), cellInput(time.Time{}), "owner-1")
	require.NoError(t, err)

	lookup, err := cache.Get(context.Background(), model.DomainCell, cellKey14)
	require.NoError(t, err)
	var loc model.Location
	require.NoError(t, json.Unmarshal(lookup.Payload, &loc))
	assert.Equal(t, model.Location{Lat: 63.42, Lng: 10.43, Accuracy: 440, Source: "SCELL"}, loc)
}

func TestWorkflow_ReentryDoesNotCallResolver(t *testing.T) {
	testCases := []struct {
		name            string
		seed            func(store.Cache) error
		expectedOutcome model.Outcome
	}{
		{
			name: "already_resolved",
			seed: func(c store.Cache) error {
				return c.PutResolved(context.Background(), model.DomainCell, cellKey14, json.RawMessage(`{}`), time.Hour)
			},
			expectedOutcome: model.OutcomeCached,
		},
		{
			name: "already_unresolved",
			seed: func(c store.Cache) error {
				return c.PutUnresolved(context.Background(), model.DomainCell, cellKey14, time.Hour)
			},
			expectedOutcome: model.OutcomeCached,
		},
		{
			name: "foreign_placeholder",
			seed: func(c store.Cache) error {
				return c.PutPlaceholder(context.Background(), model.DomainCell, cellKey14, "someone-else", time.Now().Add(time.Minute))
			},
			expectedOutcome: model.OutcomeSuperseded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache := store.NewMemory(nil)
			require.NoError(t, tc.seed(cache))
			engine := &cellEngine{fn: found}
			wf := NewWorkflow(cache, engine.registry(), Config{})

			result, err := wf.Run(context.Background(), cellInput(time.Now().Add(time.Minute)), "owner-1")

			require.NoError(t, err)
			assert.Equal(t, tc.expectedOutcome, result.Outcome)
			assert.Zero(t, engine.calls.Load())
		})
	}
}

func TestWorkflow_OwnPlaceholderResumes(t *testing.T) {
	cache := store.NewMemory(nil)
	deadline := time.Now().Add(time.Minute)
	require.NoError(t, cache.PutPlaceholder(context.Background(), model.DomainCell, cellKey14, "owner-1", deadline))
	engine := &cellEngine{fn: found}
	wf := NewWorkflow(cache, engine.registry(), Config{})

	result, err := wf.Run(context.Background(), cellInput(deadline), "owner-1")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeResolved, result.Outcome)
	assert.EqualValues(t, 1, engine.calls.Load())
}

func TestLocalSteps_Claim(t *testing.T) {
	testCases := []struct {
		name      string
		holder   string
		expected bool
	}{
		{name: "free_key_is_claimed", expected: true},
		{name: "retry_by_same_owner_reclaims", holder: "owner-1", expected: true},
		{name: "other_owner_keeps_key", holder: "owner-2", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache := store.NewMemory(nil)
			deadline := time.Now().Add(time.Minute)
			if tc.holder != "" {
				require.NoError(t, cache.PutPlaceholder(context.Background(), model.DomainCell, cellKey14, tc.holder, deadline))
			}
			steps := &localSteps{cache: cache, input: cellInput(deadline), owner: "owner-1", deadline: deadline}

			claimed, err := steps.Claim(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tc.expected, claimed)
		})
	}
}

func TestWorkflow_UnknownDomain(t *testing.T) {
	wf := NewWorkflow(store.NewMemory(nil), resolver.NewRegistry(), Config{})

	_, err := wf.Run(context.Background(), cellInput(time.Time{}), "owner-1")

	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestWorkflow_TimeoutLeavesKeyRetryable(t *testing.T) {
	cache := store.NewMemory(nil)
	slow := &cellEngine{fn: func(ctx context.Context, _ model.CellRequest) (resolver.Result[model.Location], error) {
		<-ctx.Done()
		return resolver.Result[model.Location]{}, &resolver.InfrastructureError{Op: "cell", Kind: resolver.KindNetwork, Err: ctx.Err()}
	}}
	wf := NewWorkflow(cache, slow.registry(), Config{})

	_, err := wf.Run(context.Background(), cellInput(time.Now().Add(30*time.Millisecond)), "owner-1")
	require.ErrorIs(t, err, ErrWorkflowTimeout)

	lookup, err := cache.Get(context.Background(), model.DomainCell, cellKey14)
	require.NoError(t, err)
	assert.Equal(t, model.StateAbsent, lookup.State, "an abandoned execution leaves no lock behind")

	fast := &cellEngine{fn: found}
	retry := NewWorkflow(cache, fast.registry(), Config{})
	result, err := retry.Run(context.Background(), cellInput(time.Now().Add(time.Minute)), "owner-2")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeResolved, result.Outcome)
}

func TestWorkflow_LateAnswerIsDropped(t *testing.T) {
	cache := store.NewMemory(nil)
	stubborn := &cellEngine{fn: func(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
		time.Sleep(60 * time.Millisecond)
		return found(context.Background(), model.CellRequest{})
	}}
	wf := NewWorkflow(cache, stubborn.registry(), Config{})

	_, err := wf.Run(context.Background(), cellInput(time.Now().Add(20*time.Millisecond)), "owner-1")
	require.ErrorIs(t, err, ErrWorkflowTimeout)

	lookup, err := cache.Get(context.Background(), model.DomainCell, cellKey14)
	require.NoError(t, err)
	assert.False(t, lookup.State.Terminal())
}

func TestWorkflow_AtMostOneExecutionPersists(t *testing.T) {
	const n = 16
	cache := store.NewMemory(nil)
	engine := &cellEngine{fn: func(ctx context.Context, req model.CellRequest) (resolver.Result[model.Location], error) {
		time.Sleep(10 * time.Millisecond)
		return found(ctx, req)
	}}
	registry := engine.registry()
	deadline := time.Now().Add(time.Minute)

	var wg sync.WaitGroup
	outcomes := make([]model.Outcome, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wf := NewWorkflow(cache, registry, Config{})
			result, err := wf.Run(context.Background(), cellInput(deadline), fmt.Sprintf("owner-%d", i))
			assert.NoError(t, err)
			outcomes[i] = result.Outcome
		}()
	}
	wg.Wait()

	persisted := 0
	for _, o := range outcomes {
		switch o {
		case model.OutcomeResolved:
			persisted++
		case model.OutcomeSuperseded, model.OutcomeCached:
		default:
			t.Errorf("unexpected outcome %q", o)
		}
	}
	assert.Equal(t, 1, persisted)
	assert.EqualValues(t, 1, engine.calls.Load())
}
