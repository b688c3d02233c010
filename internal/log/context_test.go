// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextWithJobID(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		jobID string
		want  string
	}{
		{name: "nil context", ctx: nil, jobID: "job-1", want: "job-1"},
		{name: "background context", ctx: context.Background(), jobID: "job-2", want: "job-2"},
		{name: "empty id", ctx: context.Background(), jobID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithJobID(tt.ctx, tt.jobID)
			assert.Equal(t, tt.want, JobIDFromContext(ctx))
		})
	}
}

func TestJobIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, JobIDFromContext(nil))
	assert.Empty(t, JobIDFromContext(context.Background()))
}

func TestWithContext_AddsJobAndTraceFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithJobID(ctx, "job-42")

	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job-42", entry[FieldJobID])
	assert.Equal(t, traceID.String(), entry[FieldTraceID])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	l := WithContext(context.Background(), base)
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, FieldJobID)
	assert.NotContains(t, entry, FieldTraceID)
}

func TestConfigure_ServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "svc-test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("planner")
	l.Debug().Msg("x")
	require.NotContains(t, buf.String(), "\x1b", "json output is not colored")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "svc-test", entry["service"])
	assert.Equal(t, "v0", entry["version"])
	assert.Equal(t, "planner", entry[FieldComponent])
}

func TestConfigure_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Format: FormatConsole, Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("runner")
	l.Info().Str(FieldJobID, "job-7").Msg("engine started")

	out := buf.String()
	assert.Contains(t, out, "engine started")
	assert.Contains(t, out, "job-7")
	var entry map[string]any
	assert.Error(t, json.Unmarshal(buf.Bytes(), &entry), "console output is not JSON")
}

func TestConfigure_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "chatty", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("x")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
