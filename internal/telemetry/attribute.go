package telemetry

import (
	"fmt"
	"log/slog"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/constraints"
)

// Attr is a telemetry attribute.
type Attr struct {
	kv attribute.KeyValue
}

// String returns a string attribute.
func String[T ~string](k string, v T) Attr {
	return Attr{attribute.String(k, string(v))}
}

// Stringer returns a string attribute. The value is the result of
// calling v.String().
func Stringer(k string, v fmt.Stringer) Attr {
	return String(k, v.String())
}

// Type returns a string attribute set to the name of v's type.
func Type[T any](k string, v T) Attr {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil {
		return String(k, "nil")
	}

	return String(k, t.String())
}

// Bool returns a boolean attribute.
func Bool[T ~bool](k string, v T) Attr {
	return Attr{attribute.Bool(k, bool(v))}
}

// Int returns an int64 attribute.
func Int[T constraints.Signed](k string, v T) Attr {
	return Attr{attribute.Int64(k, int64(v))}
}

// If returns attr if cond is true; otherwise it returns an attribute
// that records nothing.
func If(cond bool, attr Attr) Attr {
	if cond {
		return attr
	}

	return Attr{}
}

func otelAttrs(attrs []Attr) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))

	for _, a := range attrs {
		if a.kv.Valid() {
			kvs = append(kvs, a.kv)
		}
	}

	return kvs
}

func slogAttrs(attrs []Attr) []any {
	out := make([]any, 0, len(attrs))

	for _, a := range attrs {
		if a.kv.Valid() {
			out = append(
				out,
				slog.Any(string(a.kv.Key), a.kv.Value.AsInterface()),
			)
		}
	}

	return out
}
