// Package workflow defines workflows as dependency graphs of registered
// jobs and drives their runs through the queues.
//
// A workflow is a set of jobs where each job names the jobs it requires.
// The graph is validated once at registration: every required job must be
// declared, every job must exist in the job registry and the graph must be
// acyclic.
//
//	wf := workflow.NewDefinition("etl",
//	    workflow.WithSchedule("0 2 * * *"),
//	    workflow.WithJob("ExtractData"),
//	    workflow.WithJob("TransformData", "ExtractData"),
//	    workflow.WithJob("LoadData", "TransformData"),
//	)
//
// # Runs
//
// The [Orchestrator] is driven by the cluster leader. [Orchestrator.Start]
// creates a fresh [State] and enqueues the jobs with no requirements.
// Each leader cycle, [Orchestrator.Advance] reads the completion records
// of running jobs, enqueues jobs whose requirements have all completed
// and settles the run. A single failed job fails the whole run and nothing
// further is enqueued. Dependants receive the results of the jobs they
// require as a single map parameter keyed by job name.
//
// Cancellation is asynchronous: [Orchestrator.Cancel] records the request
// and the next Advance applies it.
package workflow
