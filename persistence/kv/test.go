package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// RunTests runs tests that confirm a keyspace implementation behaves
// correctly.
func RunTests(
	t *testing.T,
	newStore func(t *testing.T) Store,
) {
	t.Run("type Store", func(t *testing.T) {
		t.Run("func Open()", func(t *testing.T) {
			t.Run("isolates keyspaces with distinct names", func(t *testing.T) {
				store := newStore(t)

				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()

				names := []string{
					"foobar",
					"foo",
					"foo/bar",
					"foo/",
				}

				for i, name := range names {
					func() {
						ks, err := store.Open(ctx, name)
						if err != nil {
							t.Fatal(err)
						}
						defer ks.Close()

						expect := []byte(fmt.Sprintf("<value-%d>", i))
						if err := ks.Set(ctx, []byte("<key>"), expect); err != nil {
							t.Fatal(err)
						}
					}()
				}

				for i, name := range names {
					func() {
						ks, err := store.Open(ctx, name)
						if err != nil {
							t.Fatal(err)
						}
						defer ks.Close()

						expect := []byte(fmt.Sprintf("<value-%d>", i))
						actual, err := ks.Get(ctx, []byte("<key>"))
						if err != nil {
							t.Fatal(err)
						}

						if !bytes.Equal(expect, actual) {
							t.Fatalf(
								"unexpected value, want %q, got %q",
								string(expect),
								string(actual),
							)
						}
					}()
				}
			})

			t.Run("allows keyspaces to be opened multiple times", func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()

				store := newStore(t)

				ks1, err := store.Open(ctx, "<keyspace>")
				if err != nil {
					t.Fatal(err)
				}
				defer ks1.Close()

				ks2, err := store.Open(ctx, "<keyspace>")
				if err != nil {
					t.Fatal(err)
				}
				defer ks2.Close()

				expect := []byte("<value>")
				if err := ks1.Set(ctx, []byte("<key>"), expect); err != nil {
					t.Fatal(err)
				}

				actual, err := ks2.Get(ctx, []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})
		})
	})

	t.Run("type Keyspace", func(t *testing.T) {
		t.Run("func Get()", func(t *testing.T) {
			t.Run("it returns nil if the key doesn't exist", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				v, err := ks.Get(ctx, []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}
				if len(v) != 0 {
					t.Fatal("expected zero-length value")
				}
			})

			t.Run("it returns nil if the key has been deleted", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				k := []byte("<key>")

				if err := ks.Set(ctx, k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				if err := ks.Delete(ctx, k); err != nil {
					t.Fatal(err)
				}

				v, err := ks.Get(ctx, k)
				if err != nil {
					t.Fatal(err)
				}
				if len(v) != 0 {
					t.Fatal("expected zero-length value")
				}
			})

			t.Run("it returns the value if the key exists", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				for i := 0; i < 5; i++ {
					k := []byte(fmt.Sprintf("<key-%d>", i))
					v := []byte(fmt.Sprintf("<value-%d>", i))

					if err := ks.Set(ctx, k, v); err != nil {
						t.Fatal(err)
					}
				}

				for i := 0; i < 5; i++ {
					k := []byte(fmt.Sprintf("<key-%d>", i))
					expect := []byte(fmt.Sprintf("<value-%d>", i))

					actual, err := ks.Get(ctx, k)
					if err != nil {
						t.Fatal(err)
					}

					if !bytes.Equal(expect, actual) {
						t.Fatalf(
							"unexpected value, want %q, got %q",
							string(expect),
							string(actual),
						)
					}
				}
			})

			t.Run("it returns the most recently set value", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				k := []byte("<key>")

				if err := ks.Set(ctx, k, []byte("<before>")); err != nil {
					t.Fatal(err)
				}

				expect := []byte("<after>")
				if err := ks.Set(ctx, k, expect); err != nil {
					t.Fatal(err)
				}

				actual, err := ks.Get(ctx, k)
				if err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})
		})

		t.Run("func Has()", func(t *testing.T) {
			t.Run("it returns false if the key doesn't exist", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				ok, err := ks.Has(ctx, []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected ok to be false")
				}
			})

			t.Run("it returns true if the key exists", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				k := []byte("<key>")

				if err := ks.Set(ctx, k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				ok, err := ks.Has(ctx, k)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("expected ok to be true")
				}
			})
		})

		t.Run("func Delete()", func(t *testing.T) {
			t.Run("it is a no-op if the key doesn't exist", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				if err := ks.Delete(ctx, []byte("<key>")); err != nil {
					t.Fatal(err)
				}
			})

			t.Run("it does not delete other keys", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)

				if err := ks.Set(ctx, []byte("<key>"), []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				if err := ks.Set(ctx, []byte("<key-2>"), []byte("<value-2>")); err != nil {
					t.Fatal(err)
				}

				if err := ks.Delete(ctx, []byte("<key>")); err != nil {
					t.Fatal(err)
				}

				ok, err := ks.Has(ctx, []byte("<key-2>"))
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("expected ok to be true")
				}
			})
		})

		t.Run("func ScanPrefix()", func(t *testing.T) {
			keys := []string{
				"a",
				"a/a",
				"a/a/b",
				"a/b",
				"b",
				"b/c",
				"bbbbb",
			}

			populate := func(ctx context.Context, t *testing.T, ks Keyspace) {
				t.Helper()

				for _, k := range keys {
					if err := ks.Set(ctx, []byte(k), []byte("<value:"+k+">")); err != nil {
						t.Fatal(err)
					}
				}
			}

			scan := func(ctx context.Context, t *testing.T, ks Keyspace, prefix string) []string {
				t.Helper()

				var matches []string

				if err := ks.ScanPrefix(
					ctx,
					[]byte(prefix),
					func(ctx context.Context, k, v []byte) (bool, error) {
						if expect := []byte("<value:" + string(k) + ">"); !bytes.Equal(expect, v) {
							t.Fatalf(
								"unexpected value for %q, want %q, got %q",
								string(k),
								string(expect),
								string(v),
							)
						}

						matches = append(matches, string(k))
						return true, nil
					},
				); err != nil {
					t.Fatal(err)
				}

				sort.Strings(matches)

				return matches
			}

			t.Run("an empty prefix matches every key", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)
				populate(ctx, t, ks)

				if diff := cmp.Diff(keys, scan(ctx, t, ks, "")); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("a prefix matches itself and longer keys", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)
				populate(ctx, t, ks)

				expect := []string{"a", "a/a", "a/a/b", "a/b"}
				if diff := cmp.Diff(expect, scan(ctx, t, ks, "a")); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("a prefix matches within a path segment", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)
				populate(ctx, t, ks)

				expect := []string{"bbbbb"}
				if diff := cmp.Diff(expect, scan(ctx, t, ks, "bb")); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("an unmatched prefix matches nothing", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)
				populate(ctx, t, ks)

				if matches := scan(ctx, t, ks, "c"); len(matches) != 0 {
					t.Fatalf("expected no matches, got %q", matches)
				}
			})

			t.Run("it stops scanning if the function returns false", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)
				populate(ctx, t, ks)

				called := false
				if err := ks.ScanPrefix(
					ctx,
					nil,
					func(ctx context.Context, k, v []byte) (bool, error) {
						if called {
							return false, errors.New("unexpected call")
						}

						called = true
						return false, nil
					},
				); err != nil {
					t.Fatal(err)
				}
			})

			t.Run("it propagates errors from the function", func(t *testing.T) {
				t.Parallel()

				ctx, ks := setup(t, newStore)
				populate(ctx, t, ks)

				expect := errors.New("<error>")
				err := ks.ScanPrefix(
					ctx,
					nil,
					func(ctx context.Context, k, v []byte) (bool, error) {
						return false, expect
					},
				)

				if !errors.Is(err, expect) {
					t.Fatalf("unexpected error, want %q, got %q", expect, err)
				}
			})
		})
	})
}

func setup(
	t *testing.T,
	newStore func(t *testing.T) Store,
) (context.Context, Keyspace) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	store := newStore(t)

	ks, err := store.Open(ctx, uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := ks.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return ctx, ks
}
