// Package middleware provides composable middleware around job handlers.
//
// A [Middleware] wraps a handler call. Middleware are composed with
// [Chain] and applied by the executor to every claimed instance. The first
// middleware in the list is the outermost wrapper.
//
//	// logging → recover → timeout → handler
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	    middleware.Timeout(jobs, logger),
//	)
//
// # Built-in Middleware
//
//   - [Logging] logs the instance identity, duration, and outcome
//   - [Recover] converts handler panics into errors
//   - [Timeout] applies the definition's deadline to the handler context
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records duration and outcome counters
//
// Middleware must call next unless intentionally short-circuiting.
package middleware
