// Package pytrace wraps OpenTelemetry spans around calls and class
// construction, writing them either to stdout for local inspection or, when
// a collector address is configured, over OTLP/gRPC.
package pytrace

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer implements pyvm.TraceHook.
type Tracer struct {
	tracer trace.Tracer
}

// New builds a Tracer that writes completed spans as JSON to stdout via
// the exporter, and returns a shutdown function flushing the provider.
func New(ctx context.Context) (*Tracer, func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return &Tracer{tracer: provider.Tracer("pyvym/pyvm")}, func() {
		shutdownCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		provider.Shutdown(shutdownCtx)
	}, nil
}

// NewOTLP builds a Tracer that ships completed spans to the collector at
// addr over insecure gRPC, for deployments with somewhere to send them
// instead of stdout.
func NewOTLP(ctx context.Context, addr string) (*Tracer, func(), error) {
	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(addr),
		otlptracegrpc.WithInsecure(),
	)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return &Tracer{tracer: provider.Tracer("pyvym/pyvm")}, func() {
		shutdownCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		provider.Shutdown(shutdownCtx)
	}, nil
}

// StartSpan begins a span named sanitized(name) and returns the function
// that ends it.
func (t *Tracer) StartSpan(name string) func() {
	_, span := t.tracer.Start(context.Background(), sanitize(name), trace.WithAttributes(
		attribute.String("pyvym.operation", name),
	))
	return func() { span.End() }
}

// sanitize strips characters that would break span-name rendering if the
// name is ever built from user-controlled program text (a function or
// class name from the loaded Code Object).
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}
