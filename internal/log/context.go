// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides the process-wide zerolog logger, job correlation
// through context and the canonical field names.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

// ContextWithJobID stores the job ID in ctx for WithContext.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// JobIDFromContext returns the job ID stored in ctx, or "".
func JobIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithContext adds the job id and the active trace id found in ctx to logger.
// The logger is returned unchanged when ctx carries neither.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	jid := JobIDFromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if jid == "" && !sc.HasTraceID() {
		return logger
	}
	b := logger.With()
	if jid != "" {
		b = b.Str(FieldJobID, jid)
	}
	if sc.HasTraceID() {
		b = b.Str(FieldTraceID, sc.TraceID().String())
	}
	return b.Logger()
}
