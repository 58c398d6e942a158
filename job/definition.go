package job

import (
	"context"
	"fmt"
	"time"
)

// HandlerFunc executes one job instance and returns its result.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Definition is a registered job type.
type Definition struct {
	// Name is the unique identifier for this job type.
	Name string

	// Schedule is an optional cron expression. When set, the leader keeps
	// the job in the scheduled queue at its next fire time.
	Schedule string

	// Timeout bounds a single execution. Zero means no limit.
	Timeout time.Duration

	// Handler runs the job.
	Handler HandlerFunc
}

// Option configures a Definition.
type Option func(*Definition)

// WithSchedule makes the job recurring on the given cron expression.
func WithSchedule(expr string) Option {
	return func(d *Definition) { d.Schedule = expr }
}

// WithTimeout sets the maximum execution duration for the job.
func WithTimeout(t time.Duration) Option {
	return func(d *Definition) { d.Timeout = t }
}

// NewDefinition creates a job definition.
func NewDefinition(name string, handler HandlerFunc, opts ...Option) *Definition {
	def := &Definition{Name: name, Handler: handler}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// NewTypedDefinition creates a definition whose handler receives the
// instance params bound into T (see Params.Bind).
func NewTypedDefinition[T any](name string, handler func(ctx context.Context, in T) (any, error), opts ...Option) *Definition {
	return NewDefinition(name, func(ctx context.Context, p Params) (any, error) {
		var in T
		if err := p.Bind(&in); err != nil {
			return nil, fmt.Errorf("bind params for job %q: %w", name, err)
		}
		return handler(ctx, in)
	}, opts...)
}
