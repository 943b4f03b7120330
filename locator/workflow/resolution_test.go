package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"encore.app/locator/model"
	"encore.app/locator/resolution"
	"encore.app/locator/resolver"
	"encore.app/locator/store"
)

const testKey = "242-1-21626624-30401-2023-05-17T14"

func testInput() model.ResolutionInput {
	return model.ResolutionInput{
		Domain:   model.DomainCell,
		Key:      testKey,
		Request:  json.RawMessage(`{"mcc":242,"mnc":1,"cell":21626624,"area":30401}`),
		Deadline: time.Now().Add(time.Minute),
	}
}

// setupDeps installs a memory cache and a cell engine backed by fn.
func setupDeps(t *testing.T, fn func(context.Context, model.CellRequest) (resolver.Result[model.Location], error)) (*store.Memory, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	cache := store.NewMemory(nil)
	engine := resolver.NewAdapter[model.CellRequest, model.Location](model.DomainCell,
		resolver.Func[model.CellRequest, model.Location](func(ctx context.Context, req model.CellRequest) (resolver.Result[model.Location], error) {
			calls.Add(1)
			return fn(ctx, req)
		}))
	SetActivityDependencies(cache, resolver.NewRegistry(engine), resolution.Config{})
	t.Cleanup(func() { SetActivityDependencies(nil, nil, resolution.Config{}) })
	return cache, &calls
}

func newEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(FetchCacheActivity)
	env.RegisterActivity(ClaimActivity)
	env.RegisterActivity(ResolveActivity)
	env.RegisterActivity(PersistResolvedActivity)
	env.RegisterActivity(PersistUnresolvedActivity)
	return env
}

func located(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
	return resolver.Found(model.Location{Lat: 63.42, Lng: 10.43, Accuracy: 440}), nil
}

func TestResolutionWorkflow(t *testing.T) {
	testCases := []struct {
		name            string
		resolve         func(context.Context, model.CellRequest) (resolver.Result[model.Location], error)
		seed            func(store.Cache)
		expectedOutcome model.Outcome
		expectedState   model.EntryState
		expectedCalls   int32
	}{
		{
			name:            "resolved_is_persisted",
			resolve:         located,
			expectedOutcome: model.OutcomeResolved,
			expectedState:   model.StateResolved,
			expectedCalls:   1,
		},
		{
			name: "no_data_is_persisted_as_unresolved",
			resolve: func(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
				return resolver.NoData[model.Location](), nil
			},
			expectedOutcome: model.OutcomeUnresolved,
			expectedState:   model.StateUnresolved,
			expectedCalls:   1,
		},
		{
			name:    "already_resolved_skips_resolver",
			resolve: located,
			seed: func(c store.Cache) {
				_ = c.PutResolved(context.Background(), model.DomainCell, testKey, json.RawMessage(`{"lat":1}`), time.Hour)
			},
			expectedOutcome: model.OutcomeCached,
			expectedState:   model.StateResolved,
		},
		{
			name:    "foreign_placeholder_is_superseded",
			resolve: located,
			seed: func(c store.Cache) {
				_ = c.PutPlaceholder(context.Background(), model.DomainCell, testKey, "another-run", time.Now().Add(time.Minute))
			},
			expectedOutcome: model.OutcomeSuperseded,
			expectedState:   model.StatePending,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache, calls := setupDeps(t, tc.resolve)
			if tc.seed != nil {
				tc.seed(cache)
			}
			env := newEnv()

			env.ExecuteWorkflow(Resolution, testInput())
			require.True(t, env.IsWorkflowCompleted())
			require.NoError(t, env.GetWorkflowError())

			var result model.ResolutionResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, tc.expectedOutcome, result.Outcome)
			assert.Equal(t, testKey, result.Key)
			assert.Equal(t, tc.expectedCalls, calls.Load())

			lookup, err := cache.Get(context.Background(), model.DomainCell, testKey)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedState, lookup.State)
		})
	}
}

func TestResolutionWorkflow_InfrastructureFailureIsRetriedThenFails(t *testing.T) {
	cache, calls := setupDeps(t, func(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
		return resolver.Result[model.Location]{}, &resolver.InfrastructureError{Op: "cell", Kind: resolver.KindRateLimit, Err: errors.New("status 429")}
	})
	env := newEnv()

	env.ExecuteWorkflow(Resolution, testInput())
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	assert.EqualValues(t, 3, calls.Load())
	lookup, err := cache.Get(context.Background(), model.DomainCell, testKey)
	require.NoError(t, err)
	assert.False(t, lookup.State.Terminal(), "a failed execution writes no terminal state")
}

func TestResolutionWorkflow_InvalidRequestIsNotRetried(t *testing.T) {
	_, calls := setupDeps(t, located)
	env := newEnv()

	input := testInput()
	input.Request = json.RawMessage(`{"mcc":7}`)
	env.ExecuteWorkflow(Resolution, input)
	require.True(t, env.IsWorkflowCompleted())

	err := env.GetWorkflowError()
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errTypeInvalidRequest, appErr.Type())
	assert.True(t, appErr.NonRetryable())
	assert.Zero(t, calls.Load())
}

func TestActivities_WithoutDependencies(t *testing.T) {
	SetActivityDependencies(nil, nil, resolution.Config{})

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(FetchCacheActivity)

	_, err := env.ExecuteActivity(FetchCacheActivity, model.DomainCell, testKey)
	assert.ErrorContains(t, err, "activity dependencies not initialized")
}

func TestClaimActivity(t *testing.T) {
	testCases := []struct {
		name          string
		owners        []string
		expected      []bool
		expectedOwner string
	}{
		{
			name:          "first_claim_wins",
			owners:        []string{"run-1"},
			expected:      []bool{true},
			expectedOwner: "run-1",
		},
		{
			name:          "other_owner_is_refused",
			owners:        []string{"run-1", "run-2"},
			expected:      []bool{true, false},
			expectedOwner: "run-1",
		},
		{
			name:          "retry_by_same_owner_reclaims",
			owners:        []string{"run-1", "run-1"},
			expected:      []bool{true, true},
			expectedOwner: "run-1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache, _ := setupDeps(t, located)
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			env.RegisterActivity(ClaimActivity)
			expiresAt := time.Now().Add(time.Minute)

			for i, owner := range tc.owners {
				val, err := env.ExecuteActivity(ClaimActivity, testInput(), owner, expiresAt)
				require.NoError(t, err)
				var claimed bool
				require.NoError(t, val.Get(&claimed))
				assert.Equal(t, tc.expected[i], claimed, "claim %d by %s", i, owner)
			}

			lookup, err := cache.Get(context.Background(), model.DomainCell, testKey)
			require.NoError(t, err)
			assert.Equal(t, model.StatePending, lookup.State)
			assert.Equal(t, tc.expectedOwner, lookup.Owner)
		})
	}
}

func TestPersistActivities_Deadline(t *testing.T) {
	testCases := []struct {
		name          string
		deadline      time.Time
		resolved      bool
		expectedErr   bool
		expectedState model.EntryState
	}{
		{
			name:          "resolved_before_deadline_is_written",
			deadline:      time.Now().Add(time.Minute),
			resolved:      true,
			expectedState: model.StateResolved,
		},
		{
			name:          "resolved_after_deadline_is_dropped",
			deadline:      time.Now().Add(-time.Second),
			resolved:      true,
			expectedErr:   true,
			expectedState: model.StatePending,
		},
		{
			name:          "unresolved_after_deadline_is_dropped",
			deadline:      time.Now().Add(-time.Second),
			expectedErr:   true,
			expectedState: model.StatePending,
		},
		{
			name:          "no_deadline_is_written",
			expectedState: model.StateUnresolved,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache, _ := setupDeps(t, located)
			ctx := context.Background()
			require.NoError(t, cache.PutPlaceholder(ctx, model.DomainCell, testKey, "run-1", time.Now().Add(time.Minute)))

			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			env.RegisterActivity(PersistResolvedActivity)
			env.RegisterActivity(PersistUnresolvedActivity)

			var err error
			if tc.resolved {
				_, err = env.ExecuteActivity(PersistResolvedActivity, model.DomainCell, testKey, json.RawMessage(`{"lat":63.42}`), tc.deadline)
			} else {
				_, err = env.ExecuteActivity(PersistUnresolvedActivity, model.DomainCell, testKey, tc.deadline)
			}
			if tc.expectedErr {
				var appErr *temporal.ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, errTypeDeadline, appErr.Type())
				assert.True(t, appErr.NonRetryable())
			} else {
				require.NoError(t, err)
			}

			lookup, err := cache.Get(ctx, model.DomainCell, testKey)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedState, lookup.State)
		})
	}
}
