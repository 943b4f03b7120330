// Package resolver defines the ThirdPartyResolver capability and the generic adapter
// that lets the resolution engine treat every domain alike.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"encore.app/locator/model"
)

//go:generate mockgen -source=resolver.go -destination=../mocks/resolver/engine/engine.go -package=engine

// Result is what a resolver reports for one request. Resolved false means the
// third party has no answer; it is not an error.
type Result[P any] struct {
	Resolved bool
	Payload  P
}

// NoData is the unresolved result.
func NoData[P any]() Result[P] {
	return Result[P]{}
}

// Found is the resolved result carrying payload.
func Found[P any](payload P) Result[P] {
	return Result[P]{Resolved: true, Payload: payload}
}

// Resolver calls a third-party API for one domain. It returns an error only for
// infrastructure failures, and those must be *InfrastructureError.
type Resolver[R model.Request, P any] interface {
	Resolve(ctx context.Context, req R) (Result[P], error)
}

// Func adapts a function to Resolver.
type Func[R model.Request, P any] func(ctx context.Context, req R) (Result[P], error)

func (f Func[R, P]) Resolve(ctx context.Context, req R) (Result[P], error) {
	return f(ctx, req)
}

// Outcome is the JSON view of a Result.
type Outcome struct {
	Resolved bool
	Payload  json.RawMessage
}

// Engine is the type-erased view of one domain, used where requests travel as JSON.
type Engine interface {
	Domain() model.Domain
	Decode(raw json.RawMessage) (model.Request, error)
	Resolve(ctx context.Context, raw json.RawMessage) (Outcome, error)
}

var validate = validator.New()

var _ Engine = (*Adapter[model.CellRequest, model.Location])(nil)

// Adapter binds a typed Resolver to the Engine interface.
type Adapter[R model.Request, P any] struct {
	domain   model.Domain
	resolver Resolver[R, P]
}

// NewAdapter wraps r as the engine of domain.
func NewAdapter[R model.Request, P any](domain model.Domain, r Resolver[R, P]) *Adapter[R, P] {
	return &Adapter[R, P]{domain: domain, resolver: r}
}

func (a *Adapter[R, P]) Domain() model.Domain {
	return a.domain
}

// Decode parses and validates raw as the domain's request type.
func (a *Adapter[R, P]) Decode(raw json.RawMessage) (model.Request, error) {
	return a.decode(raw)
}

func (a *Adapter[R, P]) decode(raw json.RawMessage) (R, error) {
	var req R
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, a.domain, err)
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, a.domain, err)
	}
	return req, nil
}

// Resolve decodes raw, calls the resolver and encodes a resolved payload.
func (a *Adapter[R, P]) Resolve(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	req, err := a.decode(raw)
	if err != nil {
		return Outcome{}, err
	}

	result, err := a.resolver.Resolve(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrInfrastructure) {
			err = &InfrastructureError{Op: string(a.domain), Kind: KindUpstream, Err: err}
		}
		return Outcome{}, err
	}
	if !result.Resolved {
		return Outcome{}, nil
	}

	payload, err := json.Marshal(result.Payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode %s payload: %w", a.domain, err)
	}
	return Outcome{Resolved: true, Payload: payload}, nil
}

// Registry maps domains to their engines.
type Registry struct {
	engines map[model.Domain]Engine
}

// NewRegistry registers engines; a later engine for the same domain wins.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[model.Domain]Engine, len(engines))}
	for _, e := range engines {
		r.engines[e.Domain()] = e
	}
	return r
}

// Engine returns the engine of domain.
func (r *Registry) Engine(domain model.Domain) (Engine, bool) {
	e, ok := r.engines[domain]
	return e, ok
}
