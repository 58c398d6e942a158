// Package engine wires the nuts subsystems into one worker process and
// provides the control API used by the HTTP layer and the CLI.
//
// Every process runs execution slots that claim pending jobs. One process
// at a time holds the leader lease; while it does, its leader loop
// promotes due scheduled jobs, starts due workflows, advances running
// workflows and recovers jobs orphaned by crashed workers. Coordination
// happens only through the shared store.
//
// # Building an Engine
//
//	jobs := job.NewRegistry()
//	jobs.MustRegister(AddOne, ExtractData, TransformData, LoadData)
//
//	workflows := workflow.NewRegistry(jobs)
//	workflows.MustRegister(ETL)
//
//	eng, err := engine.New(redisStore, jobs, workflows,
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	)
//
// Jobs and workflows must be registered before New: recurring schedules
// are read once at construction.
//
// # Running
//
// Run blocks until its context is cancelled, then stops claiming, waits up
// to ShutdownTimeout for in-flight jobs and gives up the lease.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := eng.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package engine
