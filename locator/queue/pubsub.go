package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"encore.dev/rlog"

	"encore.app/locator/model"
)

// Publisher is satisfied by *pubsub.Topic[*model.QueuedDeviceRequest].
type Publisher interface {
	Publish(ctx context.Context, msg *model.QueuedDeviceRequest) (string, error)
}

var _ Enqueuer = (*Topic)(nil)

// Topic enqueues onto an Encore pubsub topic. Redelivery and the visibility delay are
// the subscription's retry policy; dedup keys are enforced upstream by the ingress
// middleware, so they are only logged here.
type Topic struct {
	publisher Publisher
}

func NewTopic(publisher Publisher) *Topic {
	return &Topic{publisher: publisher}
}

func (t *Topic) Enqueue(ctx context.Context, item *model.QueuedDeviceRequest, dedupKey string) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	msgID, err := t.publisher.Publish(ctx, item)
	if err != nil {
		return unavailable("publish", err)
	}
	rlog.Debug("device request published", "id", item.ID, "message_id", msgID, "dedup_key", dedupKey)
	return nil
}
