package observability_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/huffmsa/nuts/ext"
	"github.com/huffmsa/nuts/job"
	"github.com/huffmsa/nuts/observability"
)

func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestMetricsExtension_ThroughRegistry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	r := ext.NewRegistry(slog.Default())
	r.Register(observability.NewMetricsExtensionWithMeter(mp.Meter("test")))

	ctx := context.Background()
	inst := job.Instance{Name: "AddOne"}
	r.EmitJobEnqueued(ctx, inst)
	r.EmitJobCompleted(ctx, inst, job.Result{Success: true}, time.Millisecond)
	r.EmitJobCompleted(ctx, inst, job.Result{Success: true}, time.Millisecond)
	r.EmitJobFailed(ctx, inst, job.Result{Error: "x"})
	r.EmitJobCancelled(ctx, inst)
	r.EmitJobRecovered(ctx, "AddOne", "wkr_1")
	r.EmitWorkflowStarted(ctx, "etl", "wfrun_1")
	r.EmitWorkflowFailed(ctx, "etl", "wfrun_1", "transform_data", "boom")
	r.EmitLeadershipAcquired(ctx, "wkr_1")
	r.EmitLeadershipLost(ctx, "wkr_1")
	r.EmitScheduleFired(ctx, "etl", true)

	want := map[string]int64{
		"nuts.job.enqueued":       1,
		"nuts.job.completed":      2,
		"nuts.job.failed":         1,
		"nuts.job.cancelled":      1,
		"nuts.job.recovered":      1,
		"nuts.workflow.started":   1,
		"nuts.workflow.completed": 0,
		"nuts.workflow.failed":    1,
		"nuts.cluster.leadership": 2,
		"nuts.schedule.fired":     1,
	}
	got := counterTotals(t, reader)
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s = %d, want %d", name, got[name], w)
		}
	}
}

func TestMetricsExtension_DefaultNoopSafe(t *testing.T) {
	m := observability.NewMetricsExtension()
	if m.Name() == "" {
		t.Fatal("empty name")
	}
	if err := m.OnWorkflowCompleted(context.Background(), "etl", "wfrun_1", time.Second); err != nil {
		t.Fatal(err)
	}
}
