// Package queue owns the job queues and workflow collections in the shared
// store and the transitions between them.
//
// Key layout, with the default "nuts" prefix:
//
//	nuts|jobs|scheduled        sorted set  job name -> epoch seconds
//	nuts|jobs|pending          set         encoded [identity, params]
//	nuts|jobs|running          hash        {workerID}|{identity} -> job.Running
//	nuts|jobs|completed        hash        identity -> job.Result
//	nuts|jobs|cancel           set         identity, running key or workflow-{name}
//	nuts|workflows|scheduled   sorted set  workflow name -> epoch seconds
//	nuts|workflows|running     hash        workflow name -> workflow state
//	nuts|leader                string      leader worker ID, with TTL
//	nuts|workers|{workerID}    string      liveness marker, with TTL
//
// Every transition is a sequence of single-key operations ordered so a
// crash part-way leaves work duplicated rather than lost, with one
// exception: Claim pops the pending member before writing the running
// entry, so a crash between the two drops that instance.
package queue
