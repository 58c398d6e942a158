package middleware

import (
	"context"
	"errors"

	"github.com/huffmsa/nuts/job"
)

// Handler runs job logic and returns its result value.
type Handler func(ctx context.Context) (any, error)

// Middleware wraps a Handler with cross-cutting logic. It receives the
// instance being executed and the next handler in the chain.
type Middleware func(ctx context.Context, inst *job.Instance, next Handler) (any, error)

// Chain composes middleware into one. Chain(a, b) executes as
// a → b → handler.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inst *job.Instance, next Handler) (any, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (any, error) {
				return mw(ctx, inst, prev)
			}
		}
		return h(ctx)
	}
}

// outcome classifies a handler error for logs and metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
