// Package ext defines lifecycle hooks for nuts.
//
// Extensions are notified when jobs finish, workflows change status,
// leadership moves between workers, and the schedule fires. Each hook is
// a separate interface so an extension opts in only to the events it
// cares about.
//
//	type Alerts struct{}
//
//	func (Alerts) Name() string { return "alerts" }
//
//	func (Alerts) OnWorkflowFailed(ctx context.Context, name, runID, failedJob, msg string) error {
//	    return page(name, failedJob, msg)
//	}
//
// Hook errors are logged and never propagated: an extension cannot stall
// or fail the scheduling core.
package ext
