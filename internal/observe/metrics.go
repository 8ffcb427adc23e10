// Package observe provides the OpenTelemetry metric instruments recorded by the
// prediction engine and the server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to a Prometheus exporter so they can be scraped from /metrics.
// Tests should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/bastiangx/nextword"

// Metrics holds the metric instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// PredictDuration tracks prediction latency. Use with attribute:
	//   attribute.String("mode", ...)
	PredictDuration metric.Float64Histogram

	// PredictRequests counts predictions. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("result", "hit"|"empty")
	PredictRequests metric.Int64Counter

	// CacheLookups counts prediction cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// BackoffOrder counts which context length answered a next-word query. Use with
	// attribute:
	//   attribute.String("order", ...)
	BackoffOrder metric.Int64Counter

	// ModelReloads counts model reloads. Use with attribute:
	//   attribute.String("result", "ok"|"error")
	ModelReloads metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds, tuned for in-memory queries.
var latencyBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PredictDuration, err = m.Float64Histogram("nextword.predict.duration",
		metric.WithDescription("Latency of a prediction request by mode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PredictRequests, err = m.Int64Counter("nextword.predict.requests",
		metric.WithDescription("Total prediction requests by mode and result."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("nextword.cache.lookups",
		metric.WithDescription("Prediction cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.BackoffOrder, err = m.Int64Counter("nextword.backoff.order",
		metric.WithDescription("Next-word queries by the context length that answered them."),
	); err != nil {
		return nil, err
	}
	if met.ModelReloads, err = m.Int64Counter("nextword.model.reloads",
		metric.WithDescription("Model reloads by status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on the global provider.
// Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPrediction records one prediction's latency and whether it produced results.
func (m *Metrics) RecordPrediction(ctx context.Context, mode string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	result := "hit"
	if results == 0 {
		result = "empty"
	}
	m.PredictDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("mode", mode)),
	)
	m.PredictRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("result", result),
		),
	)
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordBackoff records the context length used by a next-word query, -1 when no
// order had data.
func (m *Metrics) RecordBackoff(ctx context.Context, order int) {
	if m == nil {
		return
	}
	label := "none"
	if order >= 0 {
		label = strconv.Itoa(order)
	}
	m.BackoffOrder.Add(ctx, 1, metric.WithAttributes(attribute.String("order", label)))
}

// RecordReload records a model reload outcome.
func (m *Metrics) RecordReload(ctx context.Context, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ModelReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
