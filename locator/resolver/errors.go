package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrInfrastructure marks a transient failure talking to the third party.
	// It is never persisted to the cache.
	ErrInfrastructure = errors.New("resolver: infrastructure failure")

	// ErrInvalidRequest marks a request that cannot be decoded or fails validation.
	ErrInvalidRequest = errors.New("resolver: invalid request")
)

// Kind classifies an infrastructure failure.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindUpstream  Kind = "upstream"
)

// InfrastructureError is the only error a Resolver may return.
type InfrastructureError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("resolver %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *InfrastructureError) Unwrap() []error {
	return []error{ErrInfrastructure, e.Err}
}
