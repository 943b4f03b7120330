// Package resolution is the engine that turns queued device requests into at most one
// third-party call per cache key.
package resolution

import (
	"fmt"

	"encore.app/locator/model"
)

// State is a step of a resolution execution.
type State int

const (
	StateFetchCache State = iota
	StateClaim
	StateResolving
	StatePersistResolved
	StatePersistUnresolved
	StateDone
	StateFailed
	StateSuperseded
)

var stateNames = map[State]string{
	StateFetchCache:        "fetch_cache",
	StateClaim:             "claim",
	StateResolving:         "resolving",
	StatePersistResolved:   "persist_resolved",
	StatePersistUnresolved: "persist_unresolved",
	StateDone:              "done",
	StateFailed:            "failed",
	StateSuperseded:        "superseded",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible from s.
// StateFailed is the expected end of a request the third party cannot answer; it is
// not a system error.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateSuperseded
}

// Event is what a step observed.
type Event int

const (
	EventCacheAbsent Event = iota
	EventCacheResolved
	EventCacheUnresolved
	// EventCacheOwned: the placeholder belongs to this execution (re-entry after a retry).
	EventCacheOwned
	// EventCacheForeign: another execution holds the placeholder.
	EventCacheForeign
	EventClaimed
	EventClaimLost
	EventResolved
	EventNoData
	EventPersisted
)

var eventNames = map[Event]string{
	EventCacheAbsent:     "cache_absent",
	EventCacheResolved:   "cache_resolved",
	EventCacheUnresolved: "cache_unresolved",
	EventCacheOwned:      "cache_owned",
	EventCacheForeign:    "cache_foreign",
	EventClaimed:         "claimed",
	EventClaimLost:       "claim_lost",
	EventResolved:        "resolved",
	EventNoData:          "no_data",
	EventPersisted:       "persisted",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

type edge struct {
	from State
	on   Event
}

var transitions = map[edge]State{
	{StateFetchCache, EventCacheResolved}:   StateDone,
	{StateFetchCache, EventCacheUnresolved}: StateFailed,
	{StateFetchCache, EventCacheAbsent}:     StateClaim,
	{StateFetchCache, EventCacheOwned}:      StateResolving,
	{StateFetchCache, EventCacheForeign}:    StateSuperseded,

	{StateClaim, EventClaimed}:   StateResolving,
	{StateClaim, EventClaimLost}: StateSuperseded,

	{StateResolving, EventResolved}: StatePersistResolved,
	{StateResolving, EventNoData}:   StatePersistUnresolved,

	{StatePersistResolved, EventPersisted}:   StateDone,
	{StatePersistUnresolved, EventPersisted}: StateFailed,
}

// Transition is the pure transition function of the resolution state machine.
func Transition(from State, on Event) (State, error) {
	to, ok := transitions[edge{from, on}]
	if !ok {
		return from, fmt.Errorf("resolution: no transition from %s on %s", from, on)
	}
	return to, nil
}

// observe maps a cache lookup to the event it raises for the execution owned by owner.
func observe(lookup model.Lookup, owner string) Event {
	switch lookup.State {
	case model.StateResolved:
		return EventCacheResolved
	case model.StateUnresolved:
		return EventCacheUnresolved
	case model.StatePending:
		if owner != "" && lookup.Owner == owner {
			return EventCacheOwned
		}
		return EventCacheForeign
	default:
		return EventCacheAbsent
	}
}
