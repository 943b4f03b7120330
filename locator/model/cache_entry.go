package model

import (
	"encoding/json"
	"time"
)

// CacheEntry is what a RequestCache stores at a cache key.
// Resolved and Unresolved are mutually exclusive; an entry with neither set is a
// resolution placeholder owned by the execution named in Owner.
type CacheEntry struct {
	Resolved   bool            `json:"resolved"`
	Unresolved bool            `json:"unresolved"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Owner      string          `json:"owner,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Expired reports whether the entry is past its ttl at now. A zero ExpiresAt never expires.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Lookup converts the stored entry into the state seen by readers.
func (e CacheEntry) Lookup() Lookup {
	switch {
	case e.Resolved:
		return Lookup{State: StateResolved, Payload: e.Payload, UpdatedAt: e.UpdatedAt, ExpiresAt: e.ExpiresAt}
	case e.Unresolved:
		return Lookup{State: StateUnresolved, UpdatedAt: e.UpdatedAt, ExpiresAt: e.ExpiresAt}
	default:
		return Lookup{State: StatePending, Owner: e.Owner, UpdatedAt: e.UpdatedAt, ExpiresAt: e.ExpiresAt}
	}
}

// EntryState is the tri-state (plus absent) view of a cache key.
type EntryState string

const (
	StateAbsent     EntryState = "absent"
	StatePending    EntryState = "pending"
	StateResolved   EntryState = "resolved"
	StateUnresolved EntryState = "unresolved"
)

// Terminal reports whether the state is Resolved or Unresolved.
func (s EntryState) Terminal() bool {
	return s == StateResolved || s == StateUnresolved
}

// Lookup is the result of reading a cache key.
type Lookup struct {
	State     EntryState      `json:"state"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Owner     string          `json:"owner,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// Absent is the lookup of a key with no live entry.
var Absent = Lookup{State: StateAbsent}
