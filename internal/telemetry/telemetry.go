// Package telemetry wires OpenTelemetry tracing and metrics for analysis runs.
//
// Instruments are created from the global providers, which are no-ops until
// Init installs OTLP HTTP exporters. Exporters are configured through the
// standard OTEL_* environment variables.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/dshills/chunkwise"

// Instruments holds the tracer and metric instruments used by the pipeline
type Instruments struct {
	Tracer trace.Tracer

	Runs          metric.Int64Counter
	ChunkOutcomes metric.Int64Counter
	Completions   metric.Int64Counter

	RunDuration   metric.Float64Histogram
	ChunkDuration metric.Float64Histogram
}

// Init sets up trace and metric providers with OTLP HTTP exporters.
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context, serviceName, version string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}
	return shutdown, nil
}

// New creates instruments from the global providers
func New() (*Instruments, error) {
	return newInstruments(otel.Tracer(scopeName), otel.Meter(scopeName))
}

// Noop returns instruments that record nothing
func Noop() *Instruments {
	inst, _ := newInstruments(
		tracenoop.NewTracerProvider().Tracer(scopeName),
		metricnoop.NewMeterProvider().Meter(scopeName),
	)
	return inst
}

func newInstruments(tracer trace.Tracer, meter metric.Meter) (*Instruments, error) {
	runs, err := meter.Int64Counter("chunkwise.runs",
		metric.WithDescription("Analysis runs by mode and final state"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, err
	}

	chunkOutcomes, err := meter.Int64Counter("chunkwise.chunk.outcomes",
		metric.WithDescription("Chunk extractions by outcome"),
		metric.WithUnit("{chunk}"))
	if err != nil {
		return nil, err
	}

	completions, err := meter.Int64Counter("chunkwise.completions",
		metric.WithDescription("Completion calls made for final answers"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("chunkwise.run.duration",
		metric.WithDescription("Analysis run duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	chunkDuration, err := meter.Float64Histogram("chunkwise.chunk.duration",
		metric.WithDescription("Chunk extraction duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:        tracer,
		Runs:          runs,
		ChunkOutcomes: chunkOutcomes,
		Completions:   completions,
		RunDuration:   runDuration,
		ChunkDuration: chunkDuration,
	}, nil
}
