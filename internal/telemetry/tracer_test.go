// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func resetProvider(t *testing.T) {
	t.Cleanup(func() { _, _ = NewProvider(context.Background(), Config{}) })
}

func TestNewProvider_DisabledInstallsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Exporter: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	assert.EqualError(t, err, `telemetry: unknown exporter "zipkin", want grpc or http`)
}

func TestNewProvider_HTTPExporterDoesNotDial(t *testing.T) {
	resetProvider(t)
	p, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: "HTTP", Endpoint: "127.0.0.1:4318"})
	require.NoError(t, err)
	require.NotNil(t, p.tp)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderWithExporter_RecordsSpans(t *testing.T) {
	resetProvider(t)
	exp := tracetest.NewInMemoryExporter()
	p := NewProviderWithExporter(Config{SamplingRate: 1, ServiceVersion: "v1"}, exp)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "plan")
	span.SetAttributes(JobAttributes("job-1", "mkv-to-mp4", "high")...)
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "plan", spans[0].Name)

	res := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		res[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "mediaconv", res["service.name"])
	assert.Equal(t, "v1", res["service.version"])
}

func TestSampler(t *testing.T) {
	for rate, want := range map[float64]string{
		1.0:  "AlwaysOnSampler",
		2.0:  "AlwaysOnSampler",
		0.0:  "AlwaysOffSampler",
		-1.0: "AlwaysOffSampler",
		0.5:  "TraceIDRatioBased{0.5}",
	} {
		assert.Equal(t, want, sampler(rate).Description(), "rate %v", rate)
	}
}

func TestProvider_ShutdownWithoutSDK(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, (&Provider{}).Shutdown(ctx))
}
