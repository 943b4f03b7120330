package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

func TestTransition(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		on       Event
		expected State
	}{
		{name: "cache_resolved_is_done", from: StateFetchCache, on: EventCacheResolved, expected: StateDone},
		{name: "cache_unresolved_is_failed", from: StateFetchCache, on: EventCacheUnresolved, expected: StateFailed},
		{name: "cache_absent_claims", from: StateFetchCache, on: EventCacheAbsent, expected: StateClaim},
		{name: "own_placeholder_resumes", from: StateFetchCache, on: EventCacheOwned, expected: StateResolving},
		{name: "foreign_placeholder_supersedes", from: StateFetchCache, on: EventCacheForeign, expected: StateSuperseded},
		{name: "claimed_resolves", from: StateClaim, on: EventClaimed, expected: StateResolving},
		{name: "claim_lost_supersedes", from: StateClaim, on: EventClaimLost, expected: StateSuperseded},
		{name: "resolved_persists_resolved", from: StateResolving, on: EventResolved, expected: StatePersistResolved},
		{name: "no_data_persists_unresolved", from: StateResolving, on: EventNoData, expected: StatePersistUnresolved},
		{name: "persisted_resolved_is_done", from: StatePersistResolved, on: EventPersisted, expected: StateDone},
		{name: "persisted_unresolved_is_failed", from: StatePersistUnresolved, on: EventPersisted, expected: StateFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.on)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestTransition_Rejected(t *testing.T) {
	testCases := []struct {
		name string
		from State
		on   Event
	}{
		{name: "resolve_without_claim", from: StateFetchCache, on: EventResolved},
		{name: "persist_before_resolve", from: StateClaim, on: EventPersisted},
		{name: "leave_done", from: StateDone, on: EventCacheAbsent},
		{name: "leave_failed", from: StateFailed, on: EventResolved},
		{name: "leave_superseded", from: StateSuperseded, on: EventClaimed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.on)
			assert.Error(t, err)
			assert.Equal(t, tc.from, got)
		})
	}
}

func TestState_Terminal(t *testing.T) {
	for s := StateFetchCache; s <= StateSuperseded; s++ {
		expected := s == StateDone || s == StateFailed || s == StateSuperseded
		assert.Equal(t, expected, s.Terminal(), s.String())
	}
	assert.Equal(t, "state(42)", State(42).String())
}

// scriptedSteps answers each step from fixed values and records what ran.
type scriptedSteps struct {
	lookup     model.Lookup
	fetchErr   error
	claimed    bool
	claimErr   error
	outcome    resolver.Outcome
	resolveErr error
	persistErr error

	calls     []string
	persisted json.RawMessage
}

func (s *scriptedSteps) FetchCache(context.Context) (model.Lookup, error) {
	s.calls = append(s.calls, "fetch")
	return s.lookup, s.fetchErr
}

func (s *scriptedSteps) Claim(context.Context) (bool, error) {
	s.calls = append(s.calls, "claim")
	return s.claimed, s.claimErr
}

func (s *scriptedSteps) Resolve(context.Context) (resolver.Outcome, error) {
	s.calls = append(s.calls, "resolve")
	return s.outcome, s.resolveErr
}

func (s *scriptedSteps) PersistResolved(_ context.Context, payload json.RawMessage) error {
	s.calls = append(s.calls, "persist_resolved")
	s.persisted = payload
	return s.persistErr
}

func (s *scriptedSteps) PersistUnresolved(context.Context) error {
	s.calls = append(s.calls, "persist_unresolved")
	return s.persistErr
}

func TestDrive(t *testing.T) {
	boom := errors.New("boom")

	testCases := []struct {
		name            string
		steps           *scriptedSteps
		expectedState   State
		expectedOutcome model.Outcome
		expectedCalls   []string
		expectedErr     error
	}{
		{
			name:            "absent_resolves_and_persists",
			steps:           &scriptedSteps{lookup: model.Absent, claimed: true, outcome: resolver.Outcome{Resolved: true, Payload: json.RawMessage(`{"lat":1}`)}},
			expectedState:   StateDone,
			expectedOutcome: model.OutcomeResolved,
			expectedCalls:   []string{"fetch", "claim", "resolve", "persist_resolved"},
		},
		{
			name:            "absent_no_data_persists_unresolved",
			steps:           &scriptedSteps{lookup: model.Absent, claimed: true},
			expectedState:   StateFailed,
			expectedOutcome: model.OutcomeUnresolved,
			expectedCalls:   []string{"fetch", "claim", "resolve", "persist_unresolved"},
		},
		{
			name:            "already_resolved_skips_resolver",
			steps:           &scriptedSteps{lookup: model.Lookup{State: model.StateResolved}},
			expectedState:   StateDone,
			expectedOutcome: model.OutcomeCached,
			expectedCalls:   []string{"fetch"},
		},
		{
			name:            "already_unresolved_skips_resolver",
			steps:           &scriptedSteps{lookup: model.Lookup{State: model.StateUnresolved}},
			expectedState:   StateFailed,
			expectedOutcome: model.OutcomeCached,
			expectedCalls:   []string{"fetch"},
		},
		{
			name:            "own_placeholder_resumes_without_claim",
			steps:           &scriptedSteps{lookup: model.Lookup{State: model.StatePending, Owner: "me"}},
			expectedState:   StateFailed,
			expectedOutcome: model.OutcomeUnresolved,
			expectedCalls:   []string{"fetch", "resolve", "persist_unresolved"},
		},
		{
			name:            "foreign_placeholder_is_superseded",
			steps:           &scriptedSteps{lookup: model.Lookup{State: model.StatePending, Owner: "other"}},
			expectedState:   StateSuperseded,
			expectedOutcome: model.OutcomeSuperseded,
			expectedCalls:   []string{"fetch"},
		},
		{
			name:            "lost_claim_is_superseded",
			steps:           &scriptedSteps{lookup: model.Absent, claimed: false},
			expectedState:   StateSuperseded,
			expectedOutcome: model.OutcomeSuperseded,
			expectedCalls:   []string{"fetch", "claim"},
		},
		{
			name:          "resolver_failure_writes_nothing",
			steps:         &scriptedSteps{lookup: model.Absent, claimed: true, resolveErr: boom},
			expectedState: StateResolving,
			expectedCalls: []string{"fetch", "claim", "resolve"},
			expectedErr:   boom,
		},
		{
			name:          "cache_failure_stops_at_fetch",
			steps:         &scriptedSteps{fetchErr: boom},
			expectedState: StateFetchCache,
			expectedCalls: []string{"fetch"},
			expectedErr:   boom,
		},
		{
			name:          "claim_failure_stops_at_claim",
			steps:         &scriptedSteps{lookup: model.Absent, claimErr: boom},
			expectedState: StateClaim,
			expectedCalls: []string{"fetch", "claim"},
			expectedErr:   boom,
		},
		{
			name:          "persist_failure_is_reported",
			steps:         &scriptedSteps{lookup: model.Absent, claimed: true, persistErr: boom},
			expectedState: StatePersistUnresolved,
			expectedCalls: []string{"fetch", "claim", "resolve", "persist_unresolved"},
			expectedErr:   boom,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run, err := Drive[context.Context](context.Background(), "me", tc.steps)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedOutcome, run.Outcome)
			}
			assert.Equal(t, tc.expectedState, run.State)
			assert.Equal(t, tc.expectedCalls, tc.steps.calls)
		})
	}
}

func TestDrive_PersistsResolverPayload(t *testing.T) {
	steps := &scriptedSteps{
		lookup:  model.Absent,
		claimed: true,
		outcome: resolver.Outcome{Resolved: true, Payload: json.RawMessage(`{"lat":63.4}`)},
	}

	run, err := Drive[context.Context](context.Background(), "me", steps)

	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":63.4}`, string(steps.persisted))
	assert.Equal(t, []State{StateFetchCache, StateClaim, StateResolving, StatePersistResolved, StateDone}, run.Path)
}
