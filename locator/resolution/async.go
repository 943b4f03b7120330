package resolution

import (
	"context"
	"fmt"
	"time"

	"encore.dev/rlog"
)

// notifyTimeout bounds one best-effort delivery.
const notifyTimeout = 5 * time.Second

// runAsync is swapped for a synchronous runner in tests.
var runAsync = safeAsync

// safeAsync runs fn detached from the caller's context. A failure or a panic is logged;
// neither reaches the dispatcher, whose decision is already made.
func safeAsync(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				rlog.Error("background task panicked", "op", op, "error", fmt.Sprint(r))
			}
		}()

		if err := fn(ctx); err != nil {
			rlog.Warn("background task failed", "op", op, "error", err)
			return
		}
		rlog.Debug("background task done", "op", op)
	}()
}
