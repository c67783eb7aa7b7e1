package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "tenantctl"

type Options struct {
	// Stdout exports finished spans as JSON. Without it tracing is a no-op.
	Stdout bool
	// Writer receives exported spans; stderr by default so command output
	// stays clean.
	Writer  io.Writer
	Version string
}

// Provider owns the tracer provider for one process.
type Provider struct {
	tracers  trace.TracerProvider
	shutdown func(context.Context) error
}

func NewProvider(opts Options) (*Provider, error) {
	if !opts.Stdout {
		return &Provider{
			tracers:  noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", opts.Version),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return &Provider{tracers: provider, shutdown: provider.Shutdown}, nil
}

func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tracers.Tracer(name)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
