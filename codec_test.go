package stash

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodec(t *testing.T) {
	t.Parallel()

	t.Run("it round-trips values of every type", func(t *testing.T) {
		t.Parallel()

		values := []Value{
			Bool(true),
			Bool(false),
			Int(-9_000_000_000),
			Float(6.02214076e23),
			String("héllo"),
			String(""),
			Bytes{0x00, 0xff, 0x10},
		}

		for _, expect := range values {
			data, err := marshalValue(expect)
			if err != nil {
				t.Fatal(err)
			}

			if len(data) == 0 {
				t.Fatal("expected a non-empty encoding")
			}

			actual, err := unmarshalValue(data)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(expect, actual); diff != "" {
				t.Fatal(diff)
			}
		}
	})

	t.Run("it fails if the data is not valid", func(t *testing.T) {
		t.Parallel()

		if _, err := unmarshalValue([]byte("{")); err == nil ||
			!strings.Contains(err.Error(), "corrupt") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("it fails if the payload is missing", func(t *testing.T) {
		t.Parallel()

		if _, err := unmarshalValue([]byte(`{"t":2}`)); err == nil ||
			!strings.Contains(err.Error(), "corrupt") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
