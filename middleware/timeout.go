package middleware

import (
	"context"
	"log/slog"

	"github.com/huffmsa/nuts/job"
)

// Timeout returns middleware that applies the registered definition's
// Timeout to the handler context. Instances of unknown or untimed jobs run
// without a deadline.
func Timeout(jobs *job.Registry, logger *slog.Logger) Middleware {
	return func(ctx context.Context, inst *job.Instance, next Handler) (any, error) {
		def, err := jobs.Resolve(inst.Name)
		if err != nil || def.Timeout <= 0 {
			return next(ctx)
		}
		logger.Debug("job timeout set",
			slog.String("job", inst.Identity()),
			slog.Duration("timeout", def.Timeout),
		)
		ctx, cancel := context.WithTimeout(ctx, def.Timeout)
		defer cancel()
		return next(ctx)
	}
}
