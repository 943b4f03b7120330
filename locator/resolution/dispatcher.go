package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"encore.dev/rlog"

	"encore.app/locator/binning"
	"encore.app/locator/model"
	"encore.app/locator/resolver"
	"encore.app/locator/store"
)

//go:generate mockgen -source=dispatcher.go -destination=../mocks/resolution/notifier/notifier.go -package=notifier

// Notifier delivers a response to a device. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, deviceID, topic string, resp model.DeviceResponse) error
}

// Decision is what the dispatcher did with one queued request.
type Decision string

const (
	DecisionRespond      Decision = "respond"
	DecisionNotLocatable Decision = "not_locatable"
	DecisionTimeout      Decision = "timeout"
	DecisionRejected     Decision = "rejected"
	// DecisionStarted: an execution was launched; the item goes back to the queue.
	DecisionStarted Decision = "started"
	// DecisionPending: an execution is in flight; the item goes back to the queue.
	DecisionPending Decision = "pending"
)

// Acknowledge reports whether the queued item is finished and must be removed.
func (d Decision) Acknowledge() bool {
	switch d {
	case DecisionRespond, DecisionNotLocatable, DecisionTimeout, DecisionRejected:
		return true
	default:
		return false
	}
}

// Dispatcher applies the cache to one queued device request at a time. It holds no
// per-request state, so any number of dispatchers can share a queue and a cache.
type Dispatcher struct {
	cache    store.Cache
	engines  *resolver.Registry
	starter  Starter
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(cache store.Cache, engines *resolver.Registry, starter Starter, notifier Notifier, cfg Config) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		cache:    cache,
		engines:  engines,
		starter:  starter,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Dispatch decides the fate of item. An error means an infrastructure failure; the item
// must be left for redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, item *model.QueuedDeviceRequest) (Decision, error) {
	now := d.now()
	enqueuedAt := item.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = now
	}

	engine, ok := d.engines.Engine(item.Domain)
	if !ok {
		rlog.Warn("rejecting request", "device_id", item.DeviceID, "domain", item.Domain, "error", ErrUnknownDomain)
		return d.finish(item, "", DecisionRejected, nil), nil
	}
	req, err := engine.Decode(item.Request)
	if err != nil {
		rlog.Warn("rejecting request", "device_id", item.DeviceID, "domain", item.Domain, "error", err)
		return d.finish(item, "", DecisionRejected, nil), nil
	}
	key, err := binning.Bin(req, enqueuedAt, d.cfg.BinWidth)
	if err != nil {
		rlog.Warn("rejecting request", "device_id", item.DeviceID, "domain", item.Domain, "error", err)
		return d.finish(item, "", DecisionRejected, nil), nil
	}

	lookup, err := d.cache.Get(ctx, item.Domain, key)
	if err != nil {
		return "", fmt.Errorf("dispatch %s: %w", item.ID, err)
	}

	switch lookup.State {
	case model.StateResolved:
		return d.finish(item, key, DecisionRespond, lookup.Payload), nil
	case model.StateUnresolved:
		return d.finish(item, key, DecisionNotLocatable, nil), nil
	}

	if waited := now.Sub(enqueuedAt); waited > d.cfg.MaxWait {
		rlog.Warn("device wait budget exceeded",
			"device_id", item.DeviceID, "domain", item.Domain, "key", key, "waited", waited, "error", ErrDeviceTimeout)
		return d.finish(item, key, DecisionTimeout, nil), nil
	}

	if lookup.State == model.StatePending {
		return d.requeue(item, key, DecisionPending), nil
	}

	result, err := d.starter.StartIfAbsent(ctx, model.ResolutionInput{
		Domain:   item.Domain,
		Key:      key,
		Request:  item.Request,
		Deadline: now.Add(d.cfg.WorkflowTimeout),
	})
	if err != nil {
		return "", fmt.Errorf("dispatch %s: start resolution: %w", item.ID, err)
	}
	if result == model.AlreadyExists {
		return d.requeue(item, key, DecisionPending), nil
	}
	return d.requeue(item, key, DecisionStarted), nil
}

func (d *Dispatcher) requeue(item *model.QueuedDeviceRequest, key string, decision Decision) Decision {
	countDecision(item.Domain, decision)
	rlog.Debug("requeueing request",
		"device_id", item.DeviceID, "domain", item.Domain, "key", key, "decision", decision, "attempt", item.Attempt)
	return decision
}

// finish counts the terminal decision and notifies the device without waiting for delivery.
func (d *Dispatcher) finish(item *model.QueuedDeviceRequest, key string, decision Decision, payload json.RawMessage) Decision {
	countDecision(item.Domain, decision)
	rlog.Info("request finished",
		"device_id", item.DeviceID, "domain", item.Domain, "key", key, "decision", decision)

	resp := model.DeviceResponse{
		DeviceID:  item.DeviceID,
		Topic:     responseTopic(item.Domain),
		RequestID: item.ID,
		Status:    responseStatus(decision),
		Payload:   payload,
	}
	runAsync("notify_device", func(ctx context.Context) error {
		return d.notifier.Publish(ctx, resp.DeviceID, resp.Topic, resp)
	})
	return decision
}

func responseStatus(d Decision) model.ResponseStatus {
	switch d {
	case DecisionRespond:
		return model.ResponseResolved
	case DecisionTimeout:
		return model.ResponseTimeout
	default:
		return model.ResponseNotLocatable
	}
}

// responseTopic is the device-side topic a domain's answers are delivered on.
func responseTopic(domain model.Domain) string {
	switch domain {
	case model.DomainCell, model.DomainSurvey:
		return "location"
	default:
		return string(domain)
	}
}
