package stash

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// An Option configures the behavior of a [Store].
type Option func(*Store)

// WithPageBudget is an [Option] that sets the transport message budget,
// in bytes, used to size the pages served by prefix query cursors.
//
// The budget must be at least [MinPageBudget], so that every page can
// carry at least one entry.
func WithPageBudget(n int) Option {
	if n < MinPageBudget {
		panic("page budget does not fit a single entry")
	}

	return func(s *Store) {
		s.budget = n
	}
}

// WithSecureMode is an [Option] that disables storage and retrieval of
// [Bytes] values for every accessor of the store.
func WithSecureMode() Option {
	return func(s *Store) {
		s.secure = true
	}
}

// WithTracerProvider is an [Option] that configures the store to use the
// given OpenTelemetry tracer provider for recording spans.
func WithTracerProvider(p trace.TracerProvider) Option {
	if p == nil {
		panic("tracer provider must not be nil")
	}

	return func(s *Store) {
		s.telemetry.TracerProvider = p
	}
}

// WithMetricProvider is an [Option] that configures the store to use the
// given OpenTelemetry meter provider for recording metrics.
func WithMetricProvider(p metric.MeterProvider) Option {
	if p == nil {
		panic("metric provider must not be nil")
	}

	return func(s *Store) {
		s.telemetry.MeterProvider = p
	}
}

// WithLogger is an [Option] that sets the logger used by the store.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("logger must not be nil")
	}

	return func(s *Store) {
		s.telemetry.Logger = l
	}
}

// An AccessOption configures the behavior of an [Accessor].
type AccessOption func(*Accessor)

// ReadOnly is an [AccessOption] that rejects all mutating operations on
// the accessor.
func ReadOnly() AccessOption {
	return func(a *Accessor) {
		a.readOnly = true
	}
}

// WithoutBytes is an [AccessOption] that disables storage and retrieval
// of [Bytes] values for this accessor only.
func WithoutBytes() AccessOption {
	return func(a *Accessor) {
		a.bytesEnabled = false
	}
}
