// Package tracing bootstraps OpenTelemetry for the module. The pool
// only depends on the trace API; wiring an exporter is the embedding
// application's choice, made here via Config.Exporter.
package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	globalTracer trace.Tracer
	mu           sync.RWMutex
	initialized  bool
)

// Config configures tracing.
type Config struct {
	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name"`
	// ServiceVersion is attached as a resource attribute.
	ServiceVersion string `yaml:"service_version"`
	// Exporter is one of "jaeger", "zipkin", "stdout", "none".
	Exporter string `yaml:"exporter"`
	// Endpoint is the collector endpoint for jaeger/zipkin.
	Endpoint string `yaml:"endpoint"`
	// Environment tags spans (e.g. dev, prod).
	Environment string `yaml:"environment"`
	// SampleRate in [0, 1]; 1 samples everything.
	SampleRate float64 `yaml:"sample_rate"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.Exporter {
	case "jaeger", "zipkin", "stdout", "none":
	default:
		return fmt.Errorf("unsupported exporter: %s", c.Exporter)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be in [0, 1], got %v", c.SampleRate)
	}
	return nil
}

// Initialize sets up the global tracer provider from config.
func Initialize(ctx context.Context, config Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid tracing config: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return fmt.Errorf("tracing already initialized")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch config.Exporter {
	case "jaeger":
		exporter, err = newJaegerExporter(config.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
	case "zipkin":
		exporter, err = newZipkinExporter(config.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to create Zipkin exporter: %w", err)
		}
	case "stdout":
		exporter = newStdoutExporter()
	case "none":
		exporter = newNoopExporter()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracer = tp.Tracer(config.ServiceName)
	initialized = true
	return nil
}

// Tracer returns the global tracer, or a noop tracer before Initialize.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if globalTracer == nil {
		return trace.NewNoopTracerProvider().Tracer("noop")
	}
	return globalTracer
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return nil
	}
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
