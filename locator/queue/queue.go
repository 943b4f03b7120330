// Package queue is the RequestQueue: ordered, delayed, at-least-once delivery of
// queued device requests.
package queue

import (
	"context"
	"errors"
	"fmt"

	"encore.app/locator/model"
)

//go:generate mockgen -source=queue.go -destination=../mocks/queue/queue.go -package=queue

// ErrQueueUnavailable wraps every backend failure. It is retryable.
var ErrQueueUnavailable = errors.New("queue: unavailable")

// Enqueuer accepts new device requests. dedupKey may be empty; a non-empty key
// suppresses a second enqueue of the same key while the first is still queued.
type Enqueuer interface {
	Enqueue(ctx context.Context, item *model.QueuedDeviceRequest, dedupKey string) error
}

// Queue is the pull side of the RequestQueue.
//
// Receive hands out up to batchSize visible items, increments their Attempt and hides
// them for the visibility window. An item that is not acknowledged becomes visible again
// once the window elapses.
type Queue interface {
	Enqueuer
	Receive(ctx context.Context, batchSize int) ([]*model.QueuedDeviceRequest, error)
	Acknowledge(ctx context.Context, item *model.QueuedDeviceRequest) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQueueUnavailable, op, err)
}
