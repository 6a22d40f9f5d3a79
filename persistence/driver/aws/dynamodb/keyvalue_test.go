package dynamodb_test

import (
	"context"
	"testing"
	"time"

	. "github.com/stashkit/stash/persistence/driver/aws/dynamodb"
	"github.com/stashkit/stash/persistence/kv"
)

func TestKeyValueStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	client := newClient(t)
	table := "kvstore"

	if err := CreateKeyValueStoreTable(ctx, client, table); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := deleteTable(ctx, client, table); err != nil {
			t.Fatal(err)
		}

		cancel()
	})

	kv.RunTests(
		t,
		func(t *testing.T) kv.Store {
			return &KeyValueStore{
				Client: client,
				Table:  table,
			}
		},
	)
}
