package memory

import (
	"context"
	"errors"
	"sync"
)

// FailBeforeKeyspaceSet configures the keyspace with the given name to
// return an error on the next call to Set() with a key/value pair that
// satisfies the given predicate function.
//
// The error is returned before the set is actually performed.
func FailBeforeKeyspaceSet(
	s *KeyValueStore,
	pred func(k, v []byte) bool,
	name string,
) {
	h := stateOf(s, name)

	h.Lock()
	defer h.Unlock()

	h.BeforeSet = failSetOnce(pred)
}

// FailAfterKeyspaceSet configures the keyspace with the given name to
// return an error on the next call to Set() with a key/value pair that
// satisfies the given predicate function.
//
// The error is returned after the set is actually performed.
func FailAfterKeyspaceSet(
	s *KeyValueStore,
	pred func(k, v []byte) bool,
	name string,
) {
	h := stateOf(s, name)

	h.Lock()
	defer h.Unlock()

	h.AfterSet = failSetOnce(pred)
}

// FailBeforeKeyspaceDelete configures the keyspace with the given name
// to return an error on the next call to Delete() with a key that
// satisfies the given predicate function.
//
// The error is returned before the delete is actually performed.
func FailBeforeKeyspaceDelete(
	s *KeyValueStore,
	pred func(k []byte) bool,
	name string,
) {
	h := stateOf(s, name)

	h.Lock()
	defer h.Unlock()

	var once sync.Once
	h.BeforeDelete = func(k []byte) (err error) {
		if pred(k) {
			once.Do(func() {
				err = errors.New("<error>")
			})
		}

		return err
	}
}

func stateOf(s *KeyValueStore, name string) *keyspaceState {
	ks, err := s.Open(context.Background(), name)
	if err != nil {
		panic(err)
	}
	defer ks.Close()

	return ks.(*keyspaceHandle).state
}

func failSetOnce(pred func(k, v []byte) bool) func(k, v []byte) error {
	var once sync.Once

	return func(k, v []byte) (err error) {
		if pred(k, v) {
			once.Do(func() {
				err = errors.New("<error>")
			})
		}

		return err
	}
}
