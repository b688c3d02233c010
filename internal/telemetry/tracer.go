// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry wires OpenTelemetry tracing for planning and execution.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultServiceName = "mediaconv"
	shutdownTimeout    = 5 * time.Second
)

// Config mirrors the telemetry block of the application config.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Exporter       string // grpc or http
	Endpoint       string // host:port of the OTLP collector
	SamplingRate   float64
}

// exporters builds an OTLP span exporter per transport. Both talk plaintext
// to a local collector.
var exporters = map[string]func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error){
	"grpc": func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	},
	"http": func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	},
}

// Provider owns the SDK tracer provider, if one was installed.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs the global tracer provider. When tracing is disabled a
// noop provider is installed and no collector is dialed.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}
	build, ok := exporters[strings.ToLower(cfg.Exporter)]
	if !ok {
		return nil, fmt.Errorf("telemetry: unknown exporter %q, want grpc or http", cfg.Exporter)
	}
	exp, err := build(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %s exporter: %w", cfg.Exporter, err)
	}
	return install(cfg, sdktrace.WithBatcher(exp)), nil
}

// NewProviderWithExporter installs a provider that hands every span to exp
// as soon as it ends.
func NewProviderWithExporter(cfg Config, exp sdktrace.SpanExporter) *Provider {
	return install(cfg, sdktrace.WithSyncer(exp))
}

func install(cfg Config, processor sdktrace.TracerProviderOption) *Provider {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", name),
			attribute.String("service.version", cfg.ServiceVersion),
		)),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &Provider{tp: tp}
}

// sampler keeps rate of all root traces. TraceIDRatioBased already turns a
// rate of 1 or more into AlwaysSample.
func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

// Shutdown flushes pending spans. It gives up after five seconds.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
