package ctxutil

import (
	"context"
	"time"
)

// WithDelayedTimeout returns a context detached from parent which is cancelled
// delay after parent is done. Used to give in-flight requests a grace period
// on shutdown.
func WithDelayedTimeout(parent context.Context, delay time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(parent, func() {
		timer := time.AfterFunc(delay, cancel)
		context.AfterFunc(ctx, func() { timer.Stop() })
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// Cause returns the cancellation cause of ctx when one was set, or ctx.Err().
func Cause(ctx context.Context) error {
	if cause := context.Cause(ctx); nil != cause {
		return cause
	}
	return ctx.Err()
}
