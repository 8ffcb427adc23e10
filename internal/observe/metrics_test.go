package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
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

// sumFor returns the counter value of the data point carrying attr.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q: data is %T, want Sum[int64]", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

func TestRecordPrediction(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPrediction(ctx, "next", 50*time.Microsecond, 3)
	m.RecordPrediction(ctx, "next", 80*time.Microsecond, 0)
	m.RecordPrediction(ctx, "completion", 20*time.Microsecond, 1)

	rm := collect(t, reader)

	if got := sumFor(t, rm, "nextword.predict.requests", attribute.String("result", "empty")); got != 1 {
		t.Errorf("empty predictions = %d, want 1", got)
	}
	if got := sumFor(t, rm, "nextword.predict.requests", attribute.String("mode", "next")); got != 2 {
		t.Errorf("next predictions = %d, want 2", got)
	}

	met := findMetric(rm, "nextword.predict.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data is %T", met.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("histogram count = %d, want 3", count)
	}
}

func TestRecordCacheAndBackoff(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)
	m.RecordBackoff(ctx, 2)
	m.RecordBackoff(ctx, -1)
	m.RecordReload(ctx, nil)
	m.RecordReload(ctx, errors.New("broken"))

	rm := collect(t, reader)

	testCases := []struct {
		metric string
		attr   attribute.KeyValue
		want   int64
	}{
		{"nextword.cache.lookups", attribute.String("result", "hit"), 1},
		{"nextword.cache.lookups", attribute.String("result", "miss"), 2},
		{"nextword.backoff.order", attribute.String("order", "2"), 1},
		{"nextword.backoff.order", attribute.String("order", "none"), 1},
		{"nextword.model.reloads", attribute.String("result", "ok"), 1},
		{"nextword.model.reloads", attribute.String("result", "error"), 1},
	}
	for _, tc := range testCases {
		if got := sumFor(t, rm, tc.metric, tc.attr); got != tc.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tc.metric, tc.attr.Key, tc.attr.Value.Emit(), got, tc.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPrediction(ctx, "next", time.Millisecond, 1)
	m.RecordCacheLookup(ctx, true)
	m.RecordBackoff(ctx, 1)
	m.RecordReload(ctx, nil)
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
