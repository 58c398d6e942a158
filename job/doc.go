// Package job defines job definitions, the registry that maps names to
// them, and the instance and result records that travel through the
// queues.
//
// # Definitions
//
// A [Definition] pairs a unique name with a [HandlerFunc] and an optional
// cron schedule. Handlers receive the instance's positional [Params] and
// return an opaque result value, or an error to record a failure:
//
//	def := job.NewDefinition("AddOne", func(ctx context.Context, p job.Params) (any, error) {
//	    var in struct{ Base int `json:"base"` }
//	    if err := p.Bind(&in); err != nil {
//	        return nil, err
//	    }
//	    return in.Base + 1, nil
//	})
//
// Long-running handlers should poll [Cancelled] or watch ctx.Done() so a
// cancellation request can stop them early. Jobs may run more than once
// after a worker crash, so handlers must tolerate re-execution.
//
// # Identity
//
// A standalone job is identified by its name. A job that belongs to a
// workflow is identified as "workflow-{workflow}|{job}". The running queue
// keys entries as "{workerID}|{identity}".
package job
