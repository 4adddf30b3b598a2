package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

func (o *Observability) initMeters(serviceName string) {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return
	}
	o.useMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)), serviceName)
}

func (o *Observability) useMeterProvider(provider *metric.MeterProvider, serviceName string) {
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	questions, _ := meter.Int64Counter(
		"oracle.questions",
		otelmetric.WithDescription("Questions processed by outcome"),
	)

	questionCost, _ := meter.Float64Histogram(
		"oracle.question.cost",
		otelmetric.WithDescription("Total routing, specialist, search and audit cost per question"),
		otelmetric.WithUnit("USD"),
	)

	questionDuration, _ := meter.Float64Histogram(
		"oracle.question.duration",
		otelmetric.WithDescription("End-to-end question processing time"),
		otelmetric.WithUnit("ms"),
	)

	o.meterProvider = provider
	o.questions = questions
	o.questionCost = questionCost
	o.questionDuration = questionDuration
}

// RecordQuestion records one orchestrated question. outcome is "answered"
// or "out_of_scope".
func (o *Observability) RecordQuestion(ctx context.Context, outcome string, cost float64, d time.Duration) {
	if o == nil || o.questions == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	o.questions.Add(ctx, 1, attrs)
	o.questionCost.Record(ctx, cost, attrs)
	o.questionDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
