// Package nuts is a distributed job and workflow scheduling core built on
// a shared key-value store.
//
// Any number of worker processes point at the same store. One of them
// holds a lease-based leadership and promotes due scheduled jobs and
// workflows into the pending queue; every process claims pending jobs
// and executes them. Workflows are dependency graphs of jobs whose state
// advances as the jobs' completion records appear.
//
// # Quick Start
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	jobs := job.NewRegistry()
//	_ = jobs.Register(job.NewDefinition("AddOne", addOne))
//
//	e, err := engine.New(redisstore.New(client), jobs, workflow.NewRegistry(jobs))
//	if err != nil { ... }
//	_ = e.Run(ctx)
//
// # Architecture
//
// The store package defines the small set of single-key atomic primitives
// the core relies on. Queue state lives under stable key names prefixed
// with Config.KeyPrefix; no operation assumes multi-key transactions.
//
// Worker and workflow run IDs use TypeID: type-prefixed, K-sortable,
// UUIDv7-based identifiers.
package nuts
