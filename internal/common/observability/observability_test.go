package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestObservability_TracingEnabled(t *testing.T) {
	o := New(Options{ServiceName: "oracle-test", TracingEnabled: true})
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "route")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
	assert.NotNil(t, ctx)

	o.RecordQuestion(ctx, "answered", 0.002, 120*time.Millisecond)
}

func TestObservability_TracingDisabled(t *testing.T) {
	o := &Observability{}
	_, span := o.StartSpan(context.Background(), "route")
	span.End()
	assert.NotNil(t, o.Tracer("x"))

	var nilObs *Observability
	assert.NotNil(t, nilObs.Tracer("x"))
	nilObs.RecordQuestion(context.Background(), "answered", 0, 0)
}

func TestRecordQuestion(t *testing.T) {
	reader := metric.NewManualReader()
	o := &Observability{}
	o.useMeterProvider(metric.NewMeterProvider(metric.WithReader(reader)), "oracle-test")

	ctx := context.Background()
	o.RecordQuestion(ctx, "answered", 0.0018, 900*time.Millisecond)
	o.RecordQuestion(ctx, "answered", 0.0020, time.Second)
	o.RecordQuestion(ctx, "out_of_scope", 0.0004, 200*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Metrics)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	sum, ok := byName["oracle.questions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		counts[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"answered": 2, "out_of_scope": 1}, counts)

	cost, ok := byName["oracle.question.cost"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total float64
	for _, dp := range cost.DataPoints {
		total += dp.Sum
	}
	assert.InDelta(t, 0.0042, total, 1e-9)
	assert.Contains(t, byName, "oracle.question.duration")
}
