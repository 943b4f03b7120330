package model

import (
	"encoding/json"
	"time"
)

// ResolutionInput is what a workflow starter hands to a resolution execution.
type ResolutionInput struct {
	Domain  Domain          `json:"domain"`
	Key     string          `json:"key"`
	Request json.RawMessage `json:"request"`
	// Deadline bounds the execution. The placeholder expires with it, so an abandoned
	// execution never locks the key beyond its own lifetime.
	Deadline time.Time `json:"deadline"`
}

// ExecutionID is the idempotency token of the resolution for a cache key.
func (in ResolutionInput) ExecutionID() string {
	return "resolve-" + string(in.Domain) + "-" + in.Key
}

// StartResult reports whether startIfAbsent launched a new execution.
type StartResult string

const (
	Started       StartResult = "started"
	AlreadyExists StartResult = "already_exists"
)

// Outcome is how a resolution execution ended.
type Outcome string

const (
	// OutcomeResolved: the resolver answered and the payload was persisted.
	OutcomeResolved Outcome = "resolved"
	// OutcomeUnresolved: the resolver had no data and the failure marker was persisted.
	OutcomeUnresolved Outcome = "unresolved"
	// OutcomeCached: a terminal entry already existed; nothing was called.
	OutcomeCached Outcome = "cached"
	// OutcomeSuperseded: another execution holds the placeholder.
	OutcomeSuperseded Outcome = "superseded"
)

// ResolutionResult is returned by every resolution execution.
type ResolutionResult struct {
	Domain      Domain    `json:"domain"`
	Key         string    `json:"key"`
	Outcome     Outcome   `json:"outcome"`
	CompletedAt time.Time `json:"completed_at"`
}
