// Package leveldb provides persistence implementations backed by a local
// LevelDB database.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/stashkit/stash/persistence/kv"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/exp/slices"
)

// KeyValueStore is an implementation of [kv.Store] that persists
// keyspaces in a LevelDB database.
//
// All keyspaces share one database. Each stored key is prefixed with the
// keyspace name and a NUL separator, so keyspace names must not contain
// NUL bytes.
type KeyValueStore struct {
	// DB is the LevelDB database to use.
	DB *leveldb.DB
}

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return nil, fmt.Errorf("keyspace name %q contains a NUL byte", name)
		}
	}

	return &keyspace{
		db:     s.DB,
		prefix: append([]byte(name), 0),
	}, ctx.Err()
}

type keyspace struct {
	db     *leveldb.DB
	prefix []byte
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	v, err := ks.db.Get(ks.key(k), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ctx.Err()
	}

	return v, err
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	ok, err := ks.db.Has(ks.key(k), nil)
	if err != nil {
		return false, err
	}

	return ok, ctx.Err()
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte) error {
	if len(v) == 0 {
		return errors.New("value must not be empty")
	}

	if err := ks.db.Put(ks.key(k), v, nil); err != nil {
		return err
	}

	return ctx.Err()
}

func (ks *keyspace) Delete(ctx context.Context, k []byte) error {
	if err := ks.db.Delete(ks.key(k), nil); err != nil {
		return err
	}

	return ctx.Err()
}

func (ks *keyspace) ScanPrefix(
	ctx context.Context,
	prefix []byte,
	fn kv.RangeFunc,
) error {
	iter := ks.db.NewIterator(
		util.BytesPrefix(ks.key(prefix)),
		nil,
	)
	defer iter.Release()

	for iter.Next() {
		// The iterator reuses its buffers, so the key and value must be
		// copied before they escape this iteration.
		k := slices.Clone(iter.Key()[len(ks.prefix):])
		v := slices.Clone(iter.Value())

		ok, err := fn(ctx, k, v)
		if !ok || err != nil {
			return err
		}
	}

	return iter.Error()
}

func (ks *keyspace) Close() error {
	return nil
}

func (ks *keyspace) key(k []byte) []byte {
	return append(slices.Clone(ks.prefix), k...)
}
