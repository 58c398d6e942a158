package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/huffmsa/nuts/job"
)

// Logging returns middleware that logs instance start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inst *job.Instance, next Handler) (any, error) {
		identity := inst.Identity()
		logger.Info("job started",
			slog.String("job", identity),
			slog.Int("params", len(inst.Params)),
		)

		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job", identity),
				slog.String("outcome", outcome(err)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job", identity),
				slog.Duration("elapsed", elapsed),
			)
		}
		return res, err
	}
}
