package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/huffmsa/nuts/job"
)

// Recover returns middleware that converts a handler panic into an error
// so the instance is recorded as failed instead of crashing the worker.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inst *job.Instance, next Handler) (res any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.String("job", inst.Identity()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				res, retErr = nil, fmt.Errorf("panic in job %s: %v", inst.Name, r)
			}
		}()
		return next(ctx)
	}
}
