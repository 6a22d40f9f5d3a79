package stash

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stashkit/stash/internal/telemetry"
	"github.com/stashkit/stash/paging"
	"github.com/stashkit/stash/persistence/kv"
	"golang.org/x/exp/slices"
)

// An Accessor provides transactional access to one namespace of a
// [Store].
//
// Writes are buffered as pending operations that are invisible to every
// other accessor until [Accessor.Commit] applies them to the backing
// store. An accessor is owned by a single client session and is not safe
// for concurrent use.
type Accessor struct {
	store        *Store
	keyspace     kv.Keyspace
	id           uuid.UUID
	namespace    string
	readOnly     bool
	bytesEnabled bool
	overlay      map[string]pendingOp

	telemetry     *telemetry.Recorder
	readCount     telemetry.Instrument[int64]
	writeCount    telemetry.Instrument[int64]
	commitCount   telemetry.Instrument[int64]
	rollbackCount telemetry.Instrument[int64]
	overlaySize   telemetry.Instrument[int64]
}

// pendingOp is a single buffered write.
//
// The two kinds are distinct so that "pending delete" is never confused
// with "no pending operation", which is represented by the key being
// absent from the overlay entirely.
type pendingOp struct {
	kind  opKind
	value Value // populated for opUpsert only
}

type opKind byte

const (
	opUpsert opKind = iota + 1
	opDelete
)

func (k opKind) String() string {
	if k == opUpsert {
		return "upsert"
	}

	return "delete"
}

// ID returns a unique identifier for the accessor.
func (a *Accessor) ID() uuid.UUID {
	return a.id
}

// Namespace returns the namespace that the accessor is bound to.
func (a *Accessor) Namespace() string {
	return a.namespace
}

// Get returns the value associated with the given key, or nil if the key
// does not exist.
//
// A pending operation buffered by this accessor takes precedence over
// the backing store, so the accessor always observes its own
// uncommitted writes.
func (a *Accessor) Get(ctx context.Context, key string) (Value, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	a.readCount(ctx, 1)

	if op, ok := a.overlay[key]; ok {
		if op.kind == opDelete {
			return nil, nil
		}

		return a.gate(cloneValue(op.value))
	}

	data, err := a.keyspace.Get(ctx, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("could not fetch value of %q: %w", key, err)
	}

	if data == nil {
		return nil, nil
	}

	v, err := unmarshalValue(data)
	if err != nil {
		return nil, err
	}

	return a.gate(v)
}

// Set buffers a pending write of the given value, replacing any pending
// operation already buffered for the same key.
//
// The value does not become visible to other accessors until
// [Accessor.Commit] is called.
func (a *Accessor) Set(ctx context.Context, key string, value Value) error {
	if a.readOnly {
		return ErrReadOnly
	}

	if value == nil {
		panic("value must not be nil")
	}

	if !a.bytesEnabled && value.Type() == TypeBytes {
		return ErrBytesDisabled
	}

	if err := validateKey(key); err != nil {
		return err
	}

	if err := validateValue(value); err != nil {
		return err
	}

	a.overlay[key] = pendingOp{
		kind:  opUpsert,
		value: cloneValue(value),
	}

	a.writeCount(ctx, 1)

	return ctx.Err()
}

// Delete buffers a pending deletion of the given key, replacing any
// pending operation already buffered for the same key.
//
// Deleting a key that does not exist is not an error.
func (a *Accessor) Delete(ctx context.Context, key string) error {
	if a.readOnly {
		return ErrReadOnly
	}

	if err := validateKey(key); err != nil {
		return err
	}

	a.overlay[key] = pendingOp{kind: opDelete}

	a.writeCount(ctx, 1)

	return ctx.Err()
}

// DeletePrefix buffers a pending deletion of every key in the backing
// store that begins with the given prefix.
//
// The store is scanned immediately, but it is not modified until
// [Accessor.Commit] is called. Keys written by other accessors after
// DeletePrefix returns are unaffected.
func (a *Accessor) DeletePrefix(ctx context.Context, prefix string) error {
	if a.readOnly {
		return ErrReadOnly
	}

	ctx, span := a.telemetry.StartSpan(
		ctx,
		"accessor.delete_prefix",
		telemetry.String("prefix", prefix),
	)
	defer span.End()

	var keys []string

	if err := a.keyspace.ScanPrefix(
		ctx,
		[]byte(prefix),
		func(ctx context.Context, k, v []byte) (bool, error) {
			keys = append(keys, string(k))
			return true, nil
		},
	); err != nil {
		span.Error("could not scan keyspace", err)
		return fmt.Errorf("could not scan prefix %q: %w", prefix, err)
	}

	for _, k := range keys {
		a.overlay[k] = pendingOp{kind: opDelete}
	}

	a.writeCount(ctx, int64(len(keys)))
	span.Debug(
		"buffered pending deletions",
		telemetry.Int("pending_deletes", len(keys)),
	)

	return nil
}

// ListPrefix returns a cursor that serves the key and value type of
// every pair in the backing store whose key begins with the given
// prefix.
//
// The result is a point-in-time snapshot: writes made after ListPrefix
// returns, by this accessor or any other, do not alter the pages served
// by the cursor.
func (a *Accessor) ListPrefix(ctx context.Context, prefix string) (*ListCursor, error) {
	ctx, span := a.telemetry.StartSpan(
		ctx,
		"accessor.list_prefix",
		telemetry.String("prefix", prefix),
	)
	defer span.End()

	a.readCount(ctx, 1)

	var entries []ListEntry

	if err := a.keyspace.ScanPrefix(
		ctx,
		[]byte(prefix),
		func(ctx context.Context, k, v []byte) (bool, error) {
			val, err := unmarshalValue(v)
			if err != nil {
				return false, err
			}

			entries = append(entries, ListEntry{
				Key:  string(k),
				Type: val.Type(),
			})

			return true, nil
		},
	); err != nil {
		span.Error("could not scan keyspace", err)
		return nil, fmt.Errorf("could not scan prefix %q: %w", prefix, err)
	}

	slices.SortFunc(entries, func(a, b ListEntry) int {
		return strings.Compare(a.Key, b.Key)
	})

	span.SetAttributes(telemetry.Int("snapshot_size", len(entries)))

	return paging.NewCursor(entries, a.store.listPageSize(), nil), nil
}

// GetPrefix returns a cursor that serves every key/value pair in the
// backing store whose key begins with the given prefix.
//
// The result is a point-in-time snapshot, as for [Accessor.ListPrefix].
// If bytes values are disabled and a page would contain one, pulling
// that page fails with [ErrBytesDisabled] rather than returning partial
// data.
func (a *Accessor) GetPrefix(ctx context.Context, prefix string) (*GetCursor, error) {
	ctx, span := a.telemetry.StartSpan(
		ctx,
		"accessor.get_prefix",
		telemetry.String("prefix", prefix),
	)
	defer span.End()

	a.readCount(ctx, 1)

	var entries []Entry

	if err := a.keyspace.ScanPrefix(
		ctx,
		[]byte(prefix),
		func(ctx context.Context, k, v []byte) (bool, error) {
			val, err := unmarshalValue(v)
			if err != nil {
				return false, err
			}

			entries = append(entries, Entry{
				Key:   string(k),
				Value: val,
			})

			return true, nil
		},
	); err != nil {
		span.Error("could not scan keyspace", err)
		return nil, fmt.Errorf("could not scan prefix %q: %w", prefix, err)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Key, b.Key)
	})

	span.SetAttributes(telemetry.Int("snapshot_size", len(entries)))

	return paging.NewCursor(
		entries,
		a.store.getPageSize(),
		func(page []Entry) error {
			if a.bytesEnabled {
				return nil
			}

			for _, e := range page {
				if e.Value.Type() == TypeBytes {
					return ErrBytesDisabled
				}
			}

			return nil
		},
	), nil
}

// Commit applies the accessor's pending operations to the backing store.
//
// Atomicity is emulated, not guaranteed: each key's prior state is
// recorded before its pending operation is applied, and if an operation
// fails the keys applied so far are restored best-effort. If a
// restoration itself fails the store is left inconsistent and no further
// recovery is attempted. The error returned is always the one that
// aborted the commit.
//
// The pending operations are discarded whether or not the commit
// succeeds, so a failed commit cannot be retried through the same
// accessor.
func (a *Accessor) Commit(ctx context.Context) error {
	if a.readOnly {
		return ErrReadOnly
	}

	ctx, span := a.telemetry.StartSpan(
		ctx,
		"accessor.commit",
		telemetry.Int("pending_ops", len(a.overlay)),
	)
	defer span.End()

	a.commitCount(ctx, 1)
	a.overlaySize(ctx, int64(len(a.overlay)))

	defer func() {
		a.overlay = map[string]pendingOp{}
	}()

	// Commits to one namespace never interleave, so no other commit can
	// observe (or clobber) the partial state between apply and rollback.
	m := a.store.commitLock(a.namespace)
	m.Lock()
	defer m.Unlock()

	type priorState struct {
		key  string
		data []byte // nil if the key was absent
	}

	var undo []priorState

	rollback := func(cause error) error {
		a.rollbackCount(ctx, 1)
		span.Warn(
			"rolling back partially committed operations",
			telemetry.Int("applied_ops", len(undo)),
		)

		// The commit may have been aborted by the cancellation of its
		// own context, which must not also abandon the recovery.
		rctx := context.WithoutCancel(ctx)

		for _, p := range undo {
			var err error
			if p.data == nil {
				err = a.keyspace.Delete(rctx, []byte(p.key))
			} else {
				err = a.keyspace.Set(rctx, []byte(p.key), p.data)
			}

			if err != nil {
				span.Error(
					"rollback abandoned, store may be inconsistent",
					err,
					telemetry.String("key", p.key),
				)
				break
			}
		}

		return cause
	}

	for key, op := range a.overlay {
		k := []byte(key)

		prior, err := a.keyspace.Get(ctx, k)
		if err != nil {
			return rollback(fmt.Errorf(
				"could not read prior value of %q: %w", key, err,
			))
		}

		undo = append(undo, priorState{key, prior})

		switch op.kind {
		case opUpsert:
			data, merr := marshalValue(op.value)
			if merr != nil {
				return rollback(merr)
			}

			err = a.keyspace.Set(ctx, k, data)
		case opDelete:
			err = a.keyspace.Delete(ctx, k)
		}

		if err != nil {
			return rollback(fmt.Errorf(
				"could not apply pending %s of %q: %w", op.kind, key, err,
			))
		}
	}

	span.Debug("applied pending operations")

	return nil
}

// Close releases the accessor's handle on the backing store.
//
// Pending operations that have not been committed are discarded.
func (a *Accessor) Close() error {
	return a.keyspace.Close()
}

func (a *Accessor) gate(v Value) (Value, error) {
	if !a.bytesEnabled && v.Type() == TypeBytes {
		return nil, ErrBytesDisabled
	}

	return v, nil
}
