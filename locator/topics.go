package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"encore.dev/pubsub"
	"encore.dev/rlog"

	"encore.app/locator/model"
	"encore.app/locator/resolution"
)

// DeviceRequests carries accepted device requests to the dispatcher.
var DeviceRequests = pubsub.NewTopic[*model.QueuedDeviceRequest]("device-requests", pubsub.TopicConfig{
	DeliveryGuarantee: pubsub.AtLeastOnce,
})

// DeviceResponses carries final answers to the device delivery bridge.
var DeviceResponses = pubsub.NewTopic[*model.DeviceResponse]("device-responses", pubsub.TopicConfig{
	DeliveryGuarantee: pubsub.AtLeastOnce,
})

// The retry policy is the requeue delay: a request waiting on a resolution is nacked and
// comes back after the backoff. MaxRetries outlasts the device wait budget.
var _ = pubsub.NewSubscription(DeviceRequests, "dispatch-device-request", pubsub.SubscriptionConfig[*model.QueuedDeviceRequest]{
	Handler: pubsub.MethodHandler((*Service).DispatchDeviceRequest),
	RetryPolicy: &pubsub.RetryPolicy{
		MinBackoff: 5 * time.Second,
		MaxBackoff: 30 * time.Second,
		MaxRetries: 200,
	},
})

// errRequeue nacks a message whose resolution is still in flight.
var errRequeue = errors.New("resolution in flight")

// DispatchDeviceRequest handles one delivery of a queued device request.
func (s *Service) DispatchDeviceRequest(ctx context.Context, item *model.QueuedDeviceRequest) error {
	decision, err := s.dispatcher.Dispatch(ctx, item)
	if err != nil {
		rlog.Error("dispatch failed", "id", item.ID, "device_id", item.DeviceID, "domain", item.Domain, "error", err)
		return err
	}
	if !decision.Acknowledge() {
		return fmt.Errorf("%w: %s", errRequeue, decision)
	}
	return nil
}

type responsePublisher interface {
	Publish(ctx context.Context, msg *model.DeviceResponse) (string, error)
}

var _ resolution.Notifier = topicNotifier{}

// topicNotifier hands device responses to the delivery bridge over pubsub.
type topicNotifier struct {
	topic responsePublisher
}

func (n topicNotifier) Publish(ctx context.Context, deviceID, topic string, resp model.DeviceResponse) error {
	resp.DeviceID = deviceID
	resp.Topic = topic
	if _, err := n.topic.Publish(ctx, &resp); err != nil {
		return fmt.Errorf("publish response for %s: %w", deviceID, err)
	}
	return nil
}
