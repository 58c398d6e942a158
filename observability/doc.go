// Package observability provides an OpenTelemetry metrics extension that
// counts lifecycle events across the cluster: job outcomes, recoveries,
// workflow runs, leadership changes, and schedule fires.
//
// For per-execution spans and histograms, see middleware.Tracing and
// middleware.Metrics.
package observability
