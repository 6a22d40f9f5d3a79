package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span represents a single named and timed operation of a workflow.
type Span struct {
	recorder *Recorder
	ctx      context.Context
	span     trace.Span
	logger   *slog.Logger
}

// StartSpan starts a new span.
func (r *Recorder) StartSpan(
	ctx context.Context,
	name string,
	attrs ...Attr,
) (context.Context, *Span) {
	ctx, span := r.tracer.Start(
		ctx,
		name,
		trace.WithAttributes(otelAttrs(attrs)...),
	)

	logger := r.logger.With(slog.String("span_name", name))

	if sctx := span.SpanContext(); sctx.HasSpanID() {
		logger = logger.With(slog.String("span_id", sctx.SpanID().String()))
	}

	logger = logger.With(slogAttrs(attrs)...)

	return ctx, &Span{r, ctx, span, logger}
}

// End completes the span.
func (s *Span) End() {
	s.span.End()
}

// SetAttributes sets attributes on the span.
func (s *Span) SetAttributes(attrs ...Attr) {
	s.span.SetAttributes(otelAttrs(attrs)...)
	s.logger = s.logger.With(slogAttrs(attrs)...)
}

// Debug logs a debug-level event.
func (s *Span) Debug(message string, attrs ...Attr) {
	if !s.logger.Enabled(s.ctx, slog.LevelDebug) {
		return
	}

	s.span.AddEvent(message, trace.WithAttributes(otelAttrs(attrs)...))
	s.logger.DebugContext(s.ctx, message, slogAttrs(attrs)...)
}

// Info logs an info-level event.
func (s *Span) Info(message string, attrs ...Attr) {
	if !s.logger.Enabled(s.ctx, slog.LevelInfo) {
		return
	}

	s.span.AddEvent(message, trace.WithAttributes(otelAttrs(attrs)...))
	s.logger.InfoContext(s.ctx, message, slogAttrs(attrs)...)
}

// Warn logs a warning-level event.
func (s *Span) Warn(message string, attrs ...Attr) {
	if !s.logger.Enabled(s.ctx, slog.LevelWarn) {
		return
	}

	s.span.AddEvent(message, trace.WithAttributes(otelAttrs(attrs)...))
	s.logger.WarnContext(s.ctx, message, slogAttrs(attrs)...)
}

// Error logs an error-level event.
//
// It marks the span as an error and increments the recorder's "errors"
// metric.
func (s *Span) Error(message string, err error, attrs ...Attr) {
	s.span.SetStatus(codes.Error, err.Error())
	s.span.RecordError(err, trace.WithAttributes(otelAttrs(attrs)...))

	s.recorder.errors(s.ctx, 1)

	s.logger.ErrorContext(
		s.ctx,
		message,
		append(
			slogAttrs(attrs),
			slog.String("error", err.Error()),
		)...,
	)
}
