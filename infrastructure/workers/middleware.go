package workers

import (
	"context"
	"log/slog"
	"time"
)

// buildMiddlewareChain creates the middleware chain
func (wp *WorkerPool[T]) buildMiddlewareChain() {
	wp.workFunc = wp.work

	// Apply middlewares in reverse order (so first added = outermost)
	for i := len(wp.middlewares) - 1; i >= 0; i-- {
		wp.workFunc = wp.middlewares[i](wp.workFunc)
	}
}

// SlowWorkLogger warns when a unit of work, checkout wait excluded, takes
// longer than threshold.
func SlowWorkLogger(log *slog.Logger, threshold time.Duration) Middleware {
	return func(next WorkFunc) WorkFunc {
		return func(ctx context.Context, workerID string) error {
			var started time.Time
			ctx = withCheckoutHook(ctx, func() { started = time.Now() })

			err := next(ctx, workerID)
			if started.IsZero() {
				return err
			}
			if elapsed := time.Since(started); elapsed > threshold {
				log.WarnContext(ctx, "slow work",
					"worker_id", workerID,
					"elapsed", elapsed,
					"threshold", threshold,
					"error", err)
			}
			return err
		}
	}
}

type checkoutHookKey struct{}

func withCheckoutHook(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, checkoutHookKey{}, fn)
}

func notifyCheckout(ctx context.Context) {
	if fn, ok := ctx.Value(checkoutHookKey{}).(func()); ok {
		fn()
	}
}
