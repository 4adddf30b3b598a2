// Package observability wires OpenTelemetry metrics (Prometheus exporter)
// and tracing (optional Jaeger exporter) for the service.
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Options configure New.
type Options struct {
	ServiceName    string
	TracingEnabled bool
	JaegerEndpoint string
}

type Observability struct {
	serviceName      string
	meterProvider    *metric.MeterProvider
	tracerProvider   *sdktrace.TracerProvider
	questions        otelmetric.Int64Counter
	questionCost     otelmetric.Float64Histogram
	questionDuration otelmetric.Float64Histogram
}

// New sets up metrics and, when enabled, tracing. Exporter failures are
// logged and leave the corresponding signal as a no-op.
func New(opts Options) *Observability {
	o := &Observability{serviceName: opts.ServiceName}
	o.initMeters(opts.ServiceName)

	if opts.TracingEnabled {
		o.initTracing(opts)
	}
	return o
}

func (o *Observability) initTracing(opts Options) {
	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if opts.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		}
	}

	o.tracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(o.tracerProvider)
}

// Tracer returns a named tracer from the configured provider, or the
// global one when tracing is disabled.
func (o *Observability) Tracer(name string) trace.Tracer {
	if o != nil && o.tracerProvider != nil {
		return o.tracerProvider.Tracer(name)
	}
	return otel.Tracer(name)
}

// StartSpan opens a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	serviceName := ""
	if o != nil {
		serviceName = o.serviceName
	}
	return o.Tracer(serviceName).Start(ctx, name)
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
}
