package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// target is one OTLP destination. The grpc endpoint wins when both are
// set.
type target struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (t target) protocol() string {
	if t.GrpcEndpoint != "" {
		return "grpc"
	}
	return "http"
}

func (t target) endpoint() string {
	if t.GrpcEndpoint != "" {
		return t.GrpcEndpoint
	}
	return t.HttpEndpoint
}

type otlpConfig struct {
	Traces  target `json:"traces"`
	Metrics target `json:"metrics"`
}

type config struct {
	Otlp otlpConfig `json:"otlp"`
}

// dialTimeout bounds exporter construction so a dead collector cannot
// hang startup.
const dialTimeout = time.Second * 3

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, c config) (*trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	t := c.Otlp.Traces
	var exporter trace.SpanExporter
	var err error
	if t.protocol() == "grpc" {
		exporter, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(t.GrpcEndpoint),
			otlptracegrpc.WithHeaders(t.Headers),
		)
	} else {
		exporter, err = otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(t.HttpEndpoint),
			otlptracehttp.WithHeaders(t.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	slog.Info(
		"trace exporter ready",
		"protocol", t.protocol(),
		"endpoint", t.endpoint(),
		"headers", len(t.Headers) > 0,
	)

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, c config) (*metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	m := c.Otlp.Metrics
	var exporter metric.Exporter
	var err error
	if m.protocol() == "grpc" {
		exporter, err = otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(m.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(m.Headers),
		)
	} else {
		exporter, err = otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(m.HttpEndpoint),
			otlpmetrichttp.WithHeaders(m.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	slog.Info(
		"metric exporter ready",
		"protocol", m.protocol(),
		"endpoint", m.endpoint(),
		"headers", len(m.Headers) > 0,
	)

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(time.Second*5))),
		metric.WithResource(r),
	), nil
}
