package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hrpull/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Endpoint is where one signal is exported to. Grpc wins when both are set, an
// endpoint with neither is disabled.
type Endpoint struct {
	Grpc    string            `json:"grpc_endpoint"`
	Http    string            `json:"http_endpoint"`
	Headers map[string]string `json:"headers"`
}

func (e Endpoint) enabled() bool {
	return e.Grpc != "" || e.Http != ""
}

type Config struct {
	Otlp struct {
		Traces  Endpoint `json:"traces"`
		Metrics Endpoint `json:"metrics"`
	} `json:"otlp"`
}

// Telemetry holds the providers installed by Setup, the zero value is a no-op.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	errlist := []error{}
	if t.TracerProvider != nil {
		err := t.TracerProvider.Shutdown(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	if t.MeterProvider != nil {
		err := t.MeterProvider.Shutdown(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}

// Tracer returns a named tracer from the global provider, spans are dropped
// unless SetupFromEnv found a configuration.
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// SetupFromEnv looks for telemetry.json5 in the working directory and its parents
// and sets up telemetry from it. Without the file telemetry stays disabled.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("telemetry.json5 not found, telemetry disabled")
		return Telemetry{}, nil
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}

// Setup installs global providers for the signals that have an endpoint.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return Telemetry{}, err
	}

	var out Telemetry
	if config.Otlp.Traces.enabled() {
		exporter, err := spanExporter(ctx, config.Otlp.Traces)
		if err != nil {
			return Telemetry{}, fmt.Errorf("trace exporter: %w", err)
		}
		out.TracerProvider = trace.NewTracerProvider(trace.WithBatcher(exporter), trace.WithResource(r))
		otel.SetTracerProvider(out.TracerProvider)
	}
	if config.Otlp.Metrics.enabled() {
		exporter, err := metricExporter(ctx, config.Otlp.Metrics)
		if err != nil {
			shutdownErr := out.Shutdown(ctx)
			return Telemetry{}, errors.Join(fmt.Errorf("metric exporter: %w", err), shutdownErr)
		}
		out.MeterProvider = metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(5*time.Second))),
			metric.WithResource(r),
		)
		otel.SetMeterProvider(out.MeterProvider)
	}
	slog.Debug("telemetry enabled", "traces", out.TracerProvider != nil, "metrics", out.MeterProvider != nil)
	return out, nil
}

func spanExporter(ctx context.Context, e Endpoint) (trace.SpanExporter, error) {
	if e.Grpc != "" {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(e.Grpc), otlptracegrpc.WithHeaders(e.Headers))
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(e.Http), otlptracehttp.WithHeaders(e.Headers))
}

func metricExporter(ctx context.Context, e Endpoint) (metric.Exporter, error) {
	if e.Grpc != "" {
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(e.Grpc), otlpmetricgrpc.WithHeaders(e.Headers))
	}
	return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(e.Http), otlpmetrichttp.WithHeaders(e.Headers))
}
