package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.JobEnqueued        = (*MetricsExtension)(nil)
	_ ext.JobCompleted       = (*MetricsExtension)(nil)
	_ ext.JobFailed          = (*MetricsExtension)(nil)
	_ ext.JobCancelled       = (*MetricsExtension)(nil)
	_ ext.JobRecovered       = (*MetricsExtension)(nil)
	_ ext.WorkflowStarted    = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted  = (*MetricsExtension)(nil)
	_ ext.WorkflowFailed     = (*MetricsExtension)(nil)
	_ ext.WorkflowCancelled  = (*MetricsExtension)(nil)
	_ ext.LeadershipAcquired = (*MetricsExtension)(nil)
	_ ext.LeadershipLost     = (*MetricsExtension)(nil)
	_ ext.ScheduleFired      = (*MetricsExtension)(nil)
)

const meterName = "github.com/huffmsa/nuts/observability"

// MetricsExtension records lifecycle counters through an OTel meter.
type MetricsExtension struct {
	JobEnqueued       metric.Int64Counter
	JobCompleted      metric.Int64Counter
	JobFailed         metric.Int64Counter
	JobCancelled      metric.Int64Counter
	JobRecovered      metric.Int64Counter
	WorkflowStarted   metric.Int64Counter
	WorkflowCompleted metric.Int64Counter
	WorkflowFailed    metric.Int64Counter
	WorkflowCancelled metric.Int64Counter
	LeadershipChanges metric.Int64Counter
	ScheduleFired     metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension using meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// The OTel API returns a noop instrument alongside any error.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		JobEnqueued:       counter("nuts.job.enqueued", "Instances added to the pending queue"),
		JobCompleted:      counter("nuts.job.completed", "Instances that finished successfully"),
		JobFailed:         counter("nuts.job.failed", "Instances that finished with an error"),
		JobCancelled:      counter("nuts.job.cancelled", "Instances that finished as cancelled"),
		JobRecovered:      counter("nuts.job.recovered", "Orphaned instances returned to pending"),
		WorkflowStarted:   counter("nuts.workflow.started", "Workflow runs started"),
		WorkflowCompleted: counter("nuts.workflow.completed", "Workflow runs completed"),
		WorkflowFailed:    counter("nuts.workflow.failed", "Workflow runs failed"),
		WorkflowCancelled: counter("nuts.workflow.cancelled", "Workflow runs cancelled"),
		LeadershipChanges: counter("nuts.cluster.leadership", "Leadership transitions"),
		ScheduleFired:     counter("nuts.schedule.fired", "Scheduled jobs and workflows fired"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

func jobAttrs(inst job.Instance) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("job_name", inst.Name),
		attribute.String("workflow", inst.Workflow),
	)
}

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, inst job.Instance) error {
	m.JobEnqueued.Add(ctx, 1, jobAttrs(inst))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, inst job.Instance, _ job.Result, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, jobAttrs(inst))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, inst job.Instance, _ job.Result) error {
	m.JobFailed.Add(ctx, 1, jobAttrs(inst))
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, inst job.Instance) error {
	m.JobCancelled.Add(ctx, 1, jobAttrs(inst))
	return nil
}

// OnJobRecovered implements ext.JobRecovered.
func (m *MetricsExtension) OnJobRecovered(ctx context.Context, _, _ string) error {
	m.JobRecovered.Add(ctx, 1)
	return nil
}

// ── Workflow lifecycle hooks ────────────────────────

func workflowAttrs(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("workflow", name))
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (m *MetricsExtension) OnWorkflowStarted(ctx context.Context, name, _ string) error {
	m.WorkflowStarted.Add(ctx, 1, workflowAttrs(name))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(ctx context.Context, name, _ string, _ time.Duration) error {
	m.WorkflowCompleted.Add(ctx, 1, workflowAttrs(name))
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(ctx context.Context, name, _, _, _ string) error {
	m.WorkflowFailed.Add(ctx, 1, workflowAttrs(name))
	return nil
}

// OnWorkflowCancelled implements ext.WorkflowCancelled.
func (m *MetricsExtension) OnWorkflowCancelled(ctx context.Context, name, _ string) error {
	m.WorkflowCancelled.Add(ctx, 1, workflowAttrs(name))
	return nil
}

// ── Cluster and schedule hooks ──────────────────────

// OnLeadershipAcquired implements ext.LeadershipAcquired.
func (m *MetricsExtension) OnLeadershipAcquired(ctx context.Context, _ string) error {
	m.LeadershipChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", "acquired")))
	return nil
}

// OnLeadershipLost implements ext.LeadershipLost.
func (m *MetricsExtension) OnLeadershipLost(ctx context.Context, _ string) error {
	m.LeadershipChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", "lost")))
	return nil
}

// OnScheduleFired implements ext.ScheduleFired.
func (m *MetricsExtension) OnScheduleFired(ctx context.Context, name string, workflow bool) error {
	kind := "job"
	if workflow {
		kind = "workflow"
	}
	m.ScheduleFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("kind", kind),
	))
	return nil
}
