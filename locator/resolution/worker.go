package resolution

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"encore.dev/rlog"

	"encore.app/locator/model"
	"encore.app/locator/queue"
)

// Worker pulls batches from a queue and dispatches each item independently.
type Worker struct {
	queue      queue.Queue
	dispatcher *Dispatcher
	batchSize  int
	idle       time.Duration
}

// NewWorker builds a pull loop over q. batchSize defaults to 10 and idle, the pause after
// an empty batch, to one second.
func NewWorker(q queue.Queue, dispatcher *Dispatcher, batchSize int, idle time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if idle <= 0 {
		idle = time.Second
	}
	return &Worker{queue: q, dispatcher: dispatcher, batchSize: batchSize, idle: idle}
}

// ProcessBatch receives one batch and dispatches it concurrently. Items whose decision is
// not terminal, or whose dispatch failed, are left to the queue's visibility window.
// It returns how many items were received.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	items, err := w.queue.Receive(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	for _, item := range items {
		g.Go(func() error {
			w.handle(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return len(items), nil
}

func (w *Worker) handle(ctx context.Context, item *model.QueuedDeviceRequest) {
	decision, err := w.dispatcher.Dispatch(ctx, item)
	if err != nil {
		rlog.Error("dispatch failed, leaving item for redelivery",
			"item_id", item.ID, "device_id", item.DeviceID, "domain", item.Domain, "error", err)
		return
	}
	if !decision.Acknowledge() {
		return
	}
	if err := w.queue.Acknowledge(ctx, item); err != nil {
		// the item comes back and the cache answers it again
		rlog.Error("failed to acknowledge item", "item_id", item.ID, "error", err)
	}
}

// Run processes batches until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.ProcessBatch(ctx)
		if err != nil {
			rlog.Error("receive failed", "error", err)
		}
		if n > 0 && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.idle):
		}
	}
}
