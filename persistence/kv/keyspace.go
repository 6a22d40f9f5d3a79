package kv

import "context"

// A RangeFunc is a function used to range over the key/value pairs in a
// [Keyspace].
//
// If err is non-nil, ranging stops and err is propagated up the stack.
// Otherwise, if ok is false, ranging stops without any error being
// propagated.
type RangeFunc func(ctx context.Context, k, v []byte) (ok bool, err error)

// A Keyspace is an isolated collection of key/value pairs.
type Keyspace interface {
	// Get returns the value associated with k.
	//
	// If the key does not exist v is nil.
	Get(ctx context.Context, k []byte) (v []byte, err error)

	// Has returns true if k is present in the keyspace.
	Has(ctx context.Context, k []byte) (ok bool, err error)

	// Set associates a value with k, replacing any existing value.
	//
	// v must not be empty; an empty value is indistinguishable from an
	// absent key in some drivers.
	Set(ctx context.Context, k, v []byte) error

	// Delete removes the value associated with k, if any.
	Delete(ctx context.Context, k []byte) error

	// ScanPrefix invokes fn once for each pair whose key begins with
	// prefix, in an undefined order.
	ScanPrefix(ctx context.Context, prefix []byte, fn RangeFunc) error

	// Close closes the keyspace.
	Close() error
}
