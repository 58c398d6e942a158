package job

import "context"

type cancelCheckKey struct{}

// CancelCheck reports whether cancellation of the running job was
// requested.
type CancelCheck func() bool

// WithCancelCheck attaches a cancellation check to ctx.
func WithCancelCheck(ctx context.Context, check CancelCheck) context.Context {
	return context.WithValue(ctx, cancelCheckKey{}, check)
}

// Cancelled reports whether the job running under ctx should stop: either
// its context is done or a cancellation request is recorded for it.
func Cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	check, ok := ctx.Value(cancelCheckKey{}).(CancelCheck)
	return ok && check()
}
