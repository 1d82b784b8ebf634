package ctxutil_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/ytmp3d/ctxutil"
)

func TestWithDelayedTimeout(t *testing.T) {
	t.Parallel()

	t.Run("initially_active", func(t *testing.T) {
		t.Parallel()

		parentCtx, parentCancel := context.WithCancel(t.Context())
		defer parentCancel()

		ctx, cancel := ctxutil.WithDelayedTimeout(parentCtx, time.Second)
		defer cancel()

		select {
		case <-ctx.Done():
			assert.Fail(t, "expected returned context to be active initially")
		default:
		}
	})

	t.Run("cancels_after_delay", func(t *testing.T) {
		t.Parallel()

		parentCtx, parentCancel := context.WithCancel(t.Context())
		defer parentCancel()

		const waitDur = 500 * time.Millisecond

		ctx, cancel := ctxutil.WithDelayedTimeout(parentCtx, waitDur)
		defer cancel()

		start := time.Now()
		parentCancel()

		select {
		case <-ctx.Done():
			assert.Fail(t, "expected returned context to remain active immediately after parent cancellation")
		default:
		}

		select {
		case <-ctx.Done():
			assert.GreaterOrEqual(t, time.Since(start), waitDur)
		case <-time.After(waitDur + 2*time.Second):
			assert.Fail(t, "expected returned context to be canceled after the delay")
		}
	})

	t.Run("cancel_func", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := ctxutil.WithDelayedTimeout(t.Context(), time.Hour)
		cancel()
		<-ctx.Done()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}

func TestCause(t *testing.T) {
	t.Parallel()

	errDeadline := errors.New("deadline")
	ctx, cancel := context.WithTimeoutCause(t.Context(), time.Millisecond, errDeadline)
	defer cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctxutil.Cause(ctx), errDeadline)

	ctx, cancel = context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, ctxutil.Cause(ctx), context.Canceled)
}
