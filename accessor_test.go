package stash_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stashkit/stash"
	"github.com/stashkit/stash/persistence/driver/memory"
	"pgregory.net/rapid"
)

func setup(
	t *testing.T,
	options ...stash.Option,
) (context.Context, *memory.KeyValueStore, *stash.Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	driver := &memory.KeyValueStore{}

	return ctx, driver, stash.New(driver, options...)
}

func access(
	ctx context.Context,
	t *testing.T,
	s *stash.Store,
	namespace string,
	options ...stash.AccessOption,
) *stash.Accessor {
	t.Helper()

	a, err := s.Access(ctx, namespace, options...)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return a
}

func get(
	ctx context.Context,
	t *testing.T,
	a *stash.Accessor,
	key string,
) stash.Value {
	t.Helper()

	v, err := a.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}

	return v
}

func set(
	ctx context.Context,
	t *testing.T,
	a *stash.Accessor,
	key string,
	value stash.Value,
) {
	t.Helper()

	if err := a.Set(ctx, key, value); err != nil {
		t.Fatal(err)
	}
}

func commit(ctx context.Context, t *testing.T, a *stash.Accessor) {
	t.Helper()

	if err := a.Commit(ctx); err != nil {
		t.Fatal(err)
	}
}

// fixture is a set of key/value pairs exercising every value type and
// several overlapping key prefixes.
var fixture = map[string]stash.Value{
	"a":     stash.Int(1),
	"a/a":   stash.String("one"),
	"a/a/b": stash.Bool(true),
	"a/b":   stash.Float(0.5),
	"b":     stash.Int(2),
	"b/c":   stash.String("two"),
	"bbbbb": stash.Int(3),
}

func populate(ctx context.Context, t *testing.T, s *stash.Store, namespace string) {
	t.Helper()

	a := access(ctx, t, s, namespace)

	for k, v := range fixture {
		set(ctx, t, a, k, v)
	}

	commit(ctx, t, a)
}

func expectValue(t *testing.T, got, want stash.Value) {
	t.Helper()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestAccessorGet(t *testing.T) {
	t.Parallel()

	t.Run("it returns nil if the key has never been set", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		expectValue(t, get(ctx, t, a, "missing"), nil)
	})

	t.Run("it observes the accessor's own pending write", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		set(ctx, t, a, "k", stash.String("pending"))

		expectValue(t, get(ctx, t, a, "k"), stash.String("pending"))
	})

	t.Run("it observes a pending delete as absence", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)

		a := access(ctx, t, s, "<ns>")
		set(ctx, t, a, "k", stash.Int(1))
		commit(ctx, t, a)

		if err := a.Delete(ctx, "k"); err != nil {
			t.Fatal(err)
		}

		expectValue(t, get(ctx, t, a, "k"), nil)
	})

	t.Run("it does not observe another accessor's uncommitted writes", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)

		writer := access(ctx, t, s, "<ns>")
		reader := access(ctx, t, s, "<ns>")

		set(ctx, t, writer, "k", stash.Int(1))

		expectValue(t, get(ctx, t, reader, "k"), nil)

		commit(ctx, t, writer)

		expectValue(t, get(ctx, t, reader, "k"), stash.Int(1))
	})

	t.Run("it does not observe values in other namespaces", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)

		a := access(ctx, t, s, "<ns-1>")
		set(ctx, t, a, "k", stash.Int(1))
		commit(ctx, t, a)

		b := access(ctx, t, s, "<ns-2>")
		expectValue(t, get(ctx, t, b, "k"), nil)
	})

	t.Run("it returns a copy of a pending bytes value", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		set(ctx, t, a, "k", stash.Bytes{1, 2, 3})

		v := get(ctx, t, a, "k").(stash.Bytes)
		v[0] = 99

		expectValue(t, get(ctx, t, a, "k"), stash.Bytes{1, 2, 3})
	})

	t.Run("it rejects committed bytes values when they are disabled", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)

		w := access(ctx, t, s, "<ns>")
		set(ctx, t, w, "k", stash.Bytes{1, 2, 3})
		commit(ctx, t, w)

		a := access(ctx, t, s, "<ns>", stash.WithoutBytes())

		_, err := a.Get(ctx, "k")
		if !errors.Is(err, stash.ErrBytesDisabled) {
			t.Fatalf("unexpected error: %q", err)
		}
		if !stash.IsPolicyViolation(err) {
			t.Fatal("expected a policy violation")
		}
	})

	t.Run("it rejects an invalid key", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		if _, err := a.Get(ctx, ""); !errors.Is(err, stash.ErrInvalidKey) {
			t.Fatalf("unexpected error: %q", err)
		}
	})
}

func TestAccessorDelete(t *testing.T) {
	t.Parallel()

	t.Run("it buffers deletion of a key that does not exist", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		if err := a.Delete(ctx, "missing"); err != nil {
			t.Fatal(err)
		}
		commit(ctx, t, a)

		expectValue(t, get(ctx, t, a, "missing"), nil)
	})

	t.Run("it fails on a read-only accessor", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>", stash.ReadOnly())

		err := a.Delete(ctx, "k")
		if !errors.Is(err, stash.ErrReadOnly) {
			t.Fatalf("unexpected error: %q", err)
		}
		if !stash.IsPolicyViolation(err) {
			t.Fatal("expected a policy violation")
		}
	})
}

func TestAccessorSet(t *testing.T) {
	t.Parallel()

	t.Run("it replaces an earlier pending operation for the same key", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		if err := a.Delete(ctx, "k"); err != nil {
			t.Fatal(err)
		}
		set(ctx, t, a, "k", stash.Int(2))

		expectValue(t, get(ctx, t, a, "k"), stash.Int(2))
	})

	t.Run("it rejects an over-long key", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		k := strings.Repeat("k", stash.MaxKeyLen+1)
		if err := a.Set(ctx, k, stash.Int(1)); !errors.Is(err, stash.ErrInvalidKey) {
			t.Fatalf("unexpected error: %q", err)
		}
	})

	t.Run("it rejects an over-long value", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		v := stash.String(strings.Repeat("v", stash.MaxValueLen+1))
		if err := a.Set(ctx, "k", v); !errors.Is(err, stash.ErrValueTooLarge) {
			t.Fatalf("unexpected error: %q", err)
		}
	})

	t.Run("it rejects bytes values when they are disabled", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>", stash.WithoutBytes())

		err := a.Set(ctx, "k", stash.Bytes{1})
		if !errors.Is(err, stash.ErrBytesDisabled) {
			t.Fatalf("unexpected error: %q", err)
		}
		if !stash.IsPolicyViolation(err) {
			t.Fatal("expected a policy violation")
		}

		// The rejected write must not linger as a pending operation.
		commit(ctx, t, a)
		expectValue(t, get(ctx, t, a, "k"), nil)
	})

	t.Run("it rejects bytes values for every accessor of a secure store", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t, stash.WithSecureMode())
		a := access(ctx, t, s, "<ns>")

		if err := a.Set(ctx, "k", stash.Bytes{1}); !errors.Is(err, stash.ErrBytesDisabled) {
			t.Fatalf("unexpected error: %q", err)
		}
	})

	t.Run("it fails on a read-only accessor", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>", stash.ReadOnly())

		if err := a.Set(ctx, "k", stash.Int(1)); !errors.Is(err, stash.ErrReadOnly) {
			t.Fatalf("unexpected error: %q", err)
		}
	})
}

func TestAccessorCommit(t *testing.T) {
	t.Parallel()

	t.Run("it makes pending writes visible to other accessors", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		reader := access(ctx, t, s, "<ns>")
		for k, v := range fixture {
			expectValue(t, get(ctx, t, reader, k), v)
		}
	})

	t.Run("it applies pending deletes", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")
		if err := a.Delete(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		commit(ctx, t, a)

		reader := access(ctx, t, s, "<ns>")
		expectValue(t, get(ctx, t, reader, "a"), nil)
	})

	t.Run("it discards pending operations on success", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)

		a := access(ctx, t, s, "<ns>")
		set(ctx, t, a, "k", stash.Int(1))
		commit(ctx, t, a)

		// Another accessor removes the key. If the first accessor's
		// pending operations were retained, its second commit would
		// resurrect it.
		b := access(ctx, t, s, "<ns>")
		if err := b.Delete(ctx, "k"); err != nil {
			t.Fatal(err)
		}
		commit(ctx, t, b)

		commit(ctx, t, a)

		expectValue(t, get(ctx, t, b, "k"), nil)
	})

	t.Run("it discards pending operations on failure", func(t *testing.T) {
		t.Parallel()

		ctx, driver, s := setup(t)

		memory.FailBeforeKeyspaceSet(
			driver,
			func(k, v []byte) bool {
				return string(k) == "k"
			},
			"<ns>",
		)

		a := access(ctx, t, s, "<ns>")
		set(ctx, t, a, "k", stash.Int(1))

		if err := a.Commit(ctx); err == nil {
			t.Fatal("expected an error")
		}

		// The failed write must not be retried by the next commit.
		commit(ctx, t, a)
		expectValue(t, get(ctx, t, a, "k"), nil)
	})

	t.Run("it restores prior state when a write fails", func(t *testing.T) {
		t.Parallel()

		ctx, driver, s := setup(t)
		populate(ctx, t, s, "<ns>")

		memory.FailBeforeKeyspaceSet(
			driver,
			func(k, v []byte) bool {
				return string(k) == "z"
			},
			"<ns>",
		)

		a := access(ctx, t, s, "<ns>")
		set(ctx, t, a, "a", stash.Int(100))
		set(ctx, t, a, "b", stash.Int(200))
		set(ctx, t, a, "z", stash.Int(300))

		if err := a.Commit(ctx); err == nil {
			t.Fatal("expected an error")
		}

		reader := access(ctx, t, s, "<ns>")
		for k, v := range fixture {
			expectValue(t, get(ctx, t, reader, k), v)
		}
		expectValue(t, get(ctx, t, reader, "z"), nil)
	})

	t.Run("it restores prior state when a write fails after being applied", func(t *testing.T) {
		t.Parallel()

		ctx, driver, s := setup(t)
		populate(ctx, t, s, "<ns>")

		memory.FailAfterKeyspaceSet(
			driver,
			func(k, v []byte) bool {
				return string(k) == "a"
			},
			"<ns>",
		)

		a := access(ctx, t, s, "<ns>")
		set(ctx, t, a, "a", stash.Int(100))

		if err := a.Commit(ctx); err == nil {
			t.Fatal("expected an error")
		}

		reader := access(ctx, t, s, "<ns>")
		expectValue(t, get(ctx, t, reader, "a"), fixture["a"])
	})

	t.Run("it restores prior state even if the commit's context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, driver, s := setup(t)
		populate(ctx, t, s, "<ns>")

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		// The write is applied, then the hook cancels the commit's
		// context and reports a failure. The rollback must restore the
		// key anyway.
		memory.FailAfterKeyspaceSet(
			driver,
			func(k, v []byte) bool {
				if string(k) == "a" {
					cancel()
					return true
				}

				return false
			},
			"<ns>",
		)

		a := access(ctx, t, s, "<ns>")
		set(ctx, t, a, "a", stash.Int(100))

		if err := a.Commit(cctx); err == nil {
			t.Fatal("expected an error")
		}

		reader := access(ctx, t, s, "<ns>")
		expectValue(t, get(ctx, t, reader, "a"), fixture["a"])
	})

	t.Run("it restores prior state when a delete fails", func(t *testing.T) {
		t.Parallel()

		ctx, driver, s := setup(t)
		populate(ctx, t, s, "<ns>")

		memory.FailBeforeKeyspaceDelete(
			driver,
			func(k []byte) bool {
				return string(k) == "a"
			},
			"<ns>",
		)

		a := access(ctx, t, s, "<ns>")
		if err := a.Delete(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		set(ctx, t, a, "b", stash.Int(200))

		if err := a.Commit(ctx); err == nil {
			t.Fatal("expected an error")
		}

		reader := access(ctx, t, s, "<ns>")
		for k, v := range fixture {
			expectValue(t, get(ctx, t, reader, k), v)
		}
	})

	t.Run("it fails on a read-only accessor", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>", stash.ReadOnly())

		if err := a.Commit(ctx); !errors.Is(err, stash.ErrReadOnly) {
			t.Fatalf("unexpected error: %q", err)
		}
	})
}

func TestAccessorDeletePrefix(t *testing.T) {
	t.Parallel()

	t.Run("it deletes every stored key with the prefix", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")
		if err := a.DeletePrefix(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		commit(ctx, t, a)

		reader := access(ctx, t, s, "<ns>")
		expect := []string{"b", "b/c", "bbbbb"}

		cur, err := reader.ListPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		var actual []string
		for _, e := range drainList(ctx, t, cur) {
			actual = append(actual, e.Key)
		}

		if diff := cmp.Diff(expect, actual); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it does not affect keys written after the call", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")
		if err := a.DeletePrefix(ctx, "a"); err != nil {
			t.Fatal(err)
		}

		b := access(ctx, t, s, "<ns>")
		set(ctx, t, b, "a/late", stash.Int(9))
		commit(ctx, t, b)

		commit(ctx, t, a)

		expectValue(t, get(ctx, t, b, "a/late"), stash.Int(9))
		expectValue(t, get(ctx, t, b, "a"), nil)
	})

	t.Run("it fails on a read-only accessor", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>", stash.ReadOnly())

		if err := a.DeletePrefix(ctx, "a"); !errors.Is(err, stash.ErrReadOnly) {
			t.Fatalf("unexpected error: %q", err)
		}
	})
}

// drainList pulls pages from cur until it is exhausted.
func drainList(ctx context.Context, t *testing.T, cur *stash.ListCursor) []stash.ListEntry {
	t.Helper()

	var entries []stash.ListEntry

	for {
		page, err := cur.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) == 0 {
			return entries
		}

		entries = append(entries, page...)
	}
}

func TestAccessorListPrefix(t *testing.T) {
	t.Parallel()

	t.Run("it lists keys and their types in order", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")

		cur, err := a.ListPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		expect := []stash.ListEntry{
			{Key: "a", Type: stash.TypeInt},
			{Key: "a/a", Type: stash.TypeString},
			{Key: "a/a/b", Type: stash.TypeBool},
			{Key: "a/b", Type: stash.TypeFloat},
			{Key: "b", Type: stash.TypeInt},
			{Key: "b/c", Type: stash.TypeString},
			{Key: "bbbbb", Type: stash.TypeInt},
		}

		if diff := cmp.Diff(expect, drainList(ctx, t, cur)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it bounds the size of each page", func(t *testing.T) {
		t.Parallel()

		// The minimum budget fits 45 key listing entries per page.
		ctx, _, s := setup(t, stash.WithPageBudget(stash.MinPageBudget))

		w := access(ctx, t, s, "<ns>")
		for i := 0; i < 91; i++ {
			set(ctx, t, w, fmt.Sprintf("k/%02d", i), stash.Int(i))
		}
		commit(ctx, t, w)

		a := access(ctx, t, s, "<ns>")

		cur, err := a.ListPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		var sizes []int
		for {
			page, err := cur.Next(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(page) == 0 {
				break
			}

			sizes = append(sizes, len(page))
		}

		if diff := cmp.Diff([]int{45, 45, 1}, sizes); diff != "" {
			t.Fatal(diff)
		}

		// Exhausted cursors serve empty pages forever.
		for i := 0; i < 2; i++ {
			page, err := cur.Next(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(page) != 0 {
				t.Fatal("expected an empty page")
			}
		}
	})

	t.Run("it matches within a path segment", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")

		cur, err := a.ListPrefix(ctx, "bb")
		if err != nil {
			t.Fatal(err)
		}

		expect := []stash.ListEntry{
			{Key: "bbbbb", Type: stash.TypeInt},
		}

		if diff := cmp.Diff(expect, drainList(ctx, t, cur)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it serves a point-in-time snapshot", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")

		cur, err := a.ListPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		b := access(ctx, t, s, "<ns>")
		set(ctx, t, b, "zzz", stash.Int(9))
		commit(ctx, t, b)

		for _, e := range drainList(ctx, t, cur) {
			if e.Key == "zzz" {
				t.Fatal("expected the snapshot to predate the write")
			}
		}
	})

	t.Run("it does not include the accessor's pending writes", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		a := access(ctx, t, s, "<ns>")

		set(ctx, t, a, "pending", stash.Int(1))

		cur, err := a.ListPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		if entries := drainList(ctx, t, cur); len(entries) != 0 {
			t.Fatalf("expected no entries, got %v", entries)
		}
	})
}

func TestAccessorGetPrefix(t *testing.T) {
	t.Parallel()

	t.Run("it serves keys and values in order", func(t *testing.T) {
		t.Parallel()

		ctx, _, s := setup(t)
		populate(ctx, t, s, "<ns>")

		a := access(ctx, t, s, "<ns>")

		cur, err := a.GetPrefix(ctx, "a/")
		if err != nil {
			t.Fatal(err)
		}

		page, err := cur.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}

		expect := []stash.Entry{
			{Key: "a/a", Value: stash.String("one")},
			{Key: "a/a/b", Value: stash.Bool(true)},
			{Key: "a/b", Value: stash.Float(0.5)},
		}

		if diff := cmp.Diff(expect, page); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("it fails a pull that would return disabled bytes values", func(t *testing.T) {
		t.Parallel()

		// A budget that fits exactly two key/value entries per page.
		const budget = 16 + 2*(stash.MaxKeyLen+16+stash.MaxValueLen+16)

		ctx, _, s := setup(t, stash.WithPageBudget(budget))

		w := access(ctx, t, s, "<ns>")
		set(ctx, t, w, "a", stash.Int(1))
		set(ctx, t, w, "b", stash.Int(2))
		set(ctx, t, w, "c", stash.Bytes{1, 2, 3})
		commit(ctx, t, w)

		a := access(ctx, t, s, "<ns>", stash.WithoutBytes())

		cur, err := a.GetPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		// The first page contains no bytes values, so it is served.
		page, err := cur.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) != 2 {
			t.Fatalf("unexpected page size: %d", len(page))
		}

		// The second page does, so the pull fails without consuming it.
		for i := 0; i < 2; i++ {
			if _, err := cur.Next(ctx); !errors.Is(err, stash.ErrBytesDisabled) {
				t.Fatalf("unexpected error: %q", err)
			}
		}
	})
}

// TestAccessorRandomOperations drives a single accessor with random
// operation sequences and compares each observation against a naive
// model of an overlay on top of a committed map.
func TestAccessorRandomOperations(t *testing.T) {
	t.Parallel()

	keyGen := rapid.SampledFrom([]string{"a", "a/a", "a/b", "b", "bb", "b/c"})
	prefixGen := rapid.SampledFrom([]string{"", "a", "a/", "b"})

	valueGen := func(t *rapid.T) stash.Value {
		switch rapid.IntRange(0, 4).Draw(t, "kind") {
		case 0:
			return stash.Bool(rapid.Bool().Draw(t, "bool"))
		case 1:
			return stash.Int(rapid.Int64().Draw(t, "int"))
		case 2:
			return stash.Float(rapid.Float64Range(-1e9, 1e9).Draw(t, "float"))
		case 3:
			return stash.String(rapid.String().Draw(t, "string"))
		default:
			return stash.Bytes(rapid.SliceOfN(rapid.Byte(), 1, 8).Draw(t, "bytes"))
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := stash.New(&memory.KeyValueStore{})

		a, err := s.Access(ctx, "<ns>")
		if err != nil {
			t.Fatal(err)
		}
		defer a.Close()

		committed := map[string]stash.Value{}
		pending := map[string]stash.Value{} // nil means a pending delete

		applyPending := func() {
			for k, v := range pending {
				if v == nil {
					delete(committed, k)
				} else {
					committed[k] = v
				}
			}

			pending = map[string]stash.Value{}
		}

		n := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < n; i++ {
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				k := keyGen.Draw(t, "key")
				v := valueGen(t)

				if err := a.Set(ctx, k, v); err != nil {
					t.Fatal(err)
				}
				pending[k] = v

			case 1:
				k := keyGen.Draw(t, "key")

				if err := a.Delete(ctx, k); err != nil {
					t.Fatal(err)
				}
				pending[k] = nil

			case 2:
				k := keyGen.Draw(t, "key")

				actual, err := a.Get(ctx, k)
				if err != nil {
					t.Fatal(err)
				}

				expect, ok := pending[k]
				if !ok {
					expect = committed[k]
				}

				if diff := cmp.Diff(expect, actual); diff != "" {
					t.Fatal(diff)
				}

			case 3:
				p := prefixGen.Draw(t, "prefix")

				if err := a.DeletePrefix(ctx, p); err != nil {
					t.Fatal(err)
				}

				for k := range committed {
					if strings.HasPrefix(k, p) {
						pending[k] = nil
					}
				}

			case 4:
				if err := a.Commit(ctx); err != nil {
					t.Fatal(err)
				}
				applyPending()
			}
		}

		if err := a.Commit(ctx); err != nil {
			t.Fatal(err)
		}
		applyPending()

		cur, err := a.GetPrefix(ctx, "")
		if err != nil {
			t.Fatal(err)
		}

		actual := map[string]stash.Value{}
		for {
			page, err := cur.Next(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(page) == 0 {
				break
			}

			for _, e := range page {
				actual[e.Key] = e.Value
			}
		}

		if diff := cmp.Diff(committed, actual); diff != "" {
			t.Fatal(diff)
		}
	})
}
