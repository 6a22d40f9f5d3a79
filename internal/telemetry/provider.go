// Package telemetry provides traces, metrics and logs scoped to the
// subsystems that produce them.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/exp/slices"
)

const modulePath = "github.com/stashkit/stash"

// Provider supplies [Recorder] instances scoped to particular
// subsystems.
//
// The zero value of a *Provider is a provider that records nothing.
type Provider struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *slog.Logger
	Attrs          []Attr
}

// Recorder returns a recorder for the subsystem with the given name.
func (p *Provider) Recorder(subsystem string, attrs ...Attr) *Recorder {
	var (
		tracerProvider trace.TracerProvider
		meterProvider  metric.MeterProvider
		logger         *slog.Logger
	)

	if p != nil {
		tracerProvider = p.TracerProvider
		meterProvider = p.MeterProvider
		logger = p.Logger

		attrs = append(
			slices.Clone(p.Attrs),
			attrs...,
		)
	}

	if tracerProvider == nil {
		tracerProvider = nooptrace.NewTracerProvider()
	}

	if meterProvider == nil {
		meterProvider = noopmetric.NewMeterProvider()
	}

	if logger == nil {
		logger = slog.New(discardHandler{})
	}

	name := modulePath + "/" + subsystem

	r := &Recorder{
		tracer: tracerProvider.Tracer(name),
		meter:  meterProvider.Meter(name),
		logger: logger.With(
			append(
				[]any{slog.String("subsystem", subsystem)},
				slogAttrs(attrs)...,
			)...,
		),
		attrs: attribute.NewSet(otelAttrs(attrs)...),
	}

	r.errors = r.Counter(
		"errors",
		"{error}",
		"The number of errors that have occurred.",
	)

	return r
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
