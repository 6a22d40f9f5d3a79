// Package session binds an accessor to a single client session and
// serves its prefix query results as streams.
package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/stashkit/stash"
	"golang.org/x/sync/errgroup"
)

// A Session owns one accessor for the lifetime of a client connection.
//
// The session's streams are served by background goroutines that stop
// when the session is closed. Like the accessor it wraps, a session is
// not safe for concurrent use.
type Session struct {
	id       uuid.UUID
	accessor *stash.Accessor
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
}

// Open starts a session over the given namespace of the store.
//
// The session is not bound to the lifetime of ctx; it remains usable
// until [Session.Close] is called.
func Open(
	ctx context.Context,
	store *stash.Store,
	namespace string,
	options ...stash.AccessOption,
) (*Session, error) {
	acc, err := store.Access(ctx, namespace, options...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	return &Session{
		id:       uuid.New(),
		accessor: acc,
		group:    g,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ID returns a unique identifier for the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Accessor returns the accessor owned by the session.
func (s *Session) Accessor() *stash.Accessor {
	return s.accessor
}

// Get returns the value associated with the given key, or nil if the
// key does not exist.
func (s *Session) Get(ctx context.Context, key string) (stash.Value, error) {
	return s.accessor.Get(ctx, key)
}

// Set buffers a pending write of the given value.
func (s *Session) Set(ctx context.Context, key string, value stash.Value) error {
	return s.accessor.Set(ctx, key, value)
}

// Delete buffers a pending deletion of the given key.
func (s *Session) Delete(ctx context.Context, key string) error {
	return s.accessor.Delete(ctx, key)
}

// DeletePrefix buffers a pending deletion of every stored key that
// begins with the given prefix.
func (s *Session) DeletePrefix(ctx context.Context, prefix string) error {
	return s.accessor.DeletePrefix(ctx, prefix)
}

// Commit applies the session's pending operations to the backing store.
func (s *Session) Commit(ctx context.Context) error {
	return s.accessor.Commit(ctx)
}

// ListPrefix returns a stream of the key and value type of every stored
// pair whose key begins with the given prefix.
func (s *Session) ListPrefix(ctx context.Context, prefix string) (*Stream[stash.ListEntry], error) {
	cur, err := s.accessor.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	return serve(s, cur), nil
}

// GetPrefix returns a stream of every stored key/value pair whose key
// begins with the given prefix.
func (s *Session) GetPrefix(ctx context.Context, prefix string) (*Stream[stash.Entry], error) {
	cur, err := s.accessor.GetPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	return serve(s, cur), nil
}

// Close terminates the session.
//
// Streams served by the session stop, and pending operations that have
// not been committed are discarded.
func (s *Session) Close() error {
	s.cancel()

	err := s.group.Wait()

	if cerr := s.accessor.Close(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}
