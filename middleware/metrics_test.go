package middleware_test

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/huffmsa/nuts/middleware"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func statusOf(dp metricdata.DataPoint[int64]) string {
	v, _ := dp.Attributes.Value("status")
	return v.AsString()
}

func TestMetrics_RecordsDurationAndExecutions(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_, _ = m(context.Background(), newTestInstance(), okHandler)
	_, _ = m(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})

	rm := collectMetrics(t, reader)

	dur := findMetric(rm, "nuts.job.duration")
	if dur == nil {
		t.Fatal("nuts.job.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64]")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}

	exec := findMetric(rm, "nuts.job.executions")
	if exec == nil {
		t.Fatal("nuts.job.executions not found")
	}
	sum, ok := exec.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64]")
	}
	byStatus := map[string]int64{}
	for _, dp := range sum.DataPoints {
		byStatus[statusOf(dp)] += dp.Value
		if v, _ := dp.Attributes.Value("workflow"); v.AsString() != "etl" {
			t.Errorf("workflow attribute = %q", v.AsString())
		}
	}
	if byStatus["ok"] != 1 || byStatus["error"] != 1 {
		t.Errorf("executions by status = %v", byStatus)
	}
}

func TestMetrics_CancelledStatus(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_, _ = m(context.Background(), newTestInstance(), func(context.Context) (any, error) {
		return nil, context.Canceled
	})

	sum := findMetric(collectMetrics(t, reader), "nuts.job.executions").Data.(metricdata.Sum[int64])
	if statusOf(sum.DataPoints[0]) != "cancelled" {
		t.Fatalf("status = %q", statusOf(sum.DataPoints[0]))
	}
}

func TestMetrics_DefaultNoopSafe(t *testing.T) {
	res, err := mw.Metrics()(context.Background(), newTestInstance(), okHandler)
	if err != nil || res != 42 {
		t.Fatalf("res=%v err=%v", res, err)
	}
}
