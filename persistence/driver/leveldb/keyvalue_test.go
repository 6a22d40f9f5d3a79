package leveldb_test

import (
	"testing"

	ldb "github.com/syndtr/goleveldb/leveldb"

	. "github.com/stashkit/stash/persistence/driver/leveldb"
	"github.com/stashkit/stash/persistence/kv"
)

func TestKeyValueStore(t *testing.T) {
	kv.RunTests(
		t,
		func(t *testing.T) kv.Store {
			db, err := ldb.OpenFile(t.TempDir(), nil)
			if err != nil {
				t.Fatal(err)
			}

			t.Cleanup(func() {
				if err := db.Close(); err != nil {
					t.Fatal(err)
				}
			})

			return &KeyValueStore{DB: db}
		},
	)
}
