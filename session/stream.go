package session

import (
	"context"

	"github.com/stashkit/stash/internal/messaging"
	"github.com/stashkit/stash/paging"
)

// A Stream serves the pages of a prefix query cursor.
//
// Pages are pulled from a goroutine owned by the session, so a stream
// may be consumed concurrently with other streams of the same session.
type Stream[T any] struct {
	queue messaging.ExchangeQueue[struct{}, []T]
}

// Next returns the next page of results.
//
// Once the underlying cursor is exhausted, or the session is closed,
// every subsequent call returns an error or an empty page.
func (s *Stream[T]) Next(ctx context.Context) ([]T, error) {
	return s.queue.Exchange(ctx, struct{}{})
}

// serve pumps pages from c to the stream's exchange queue until the
// session is closed.
func serve[T any](s *Session, c *paging.Cursor[T]) *Stream[T] {
	st := &Stream[T]{}

	s.group.Go(func() error {
		for {
			select {
			case <-s.ctx.Done():
				return nil
			case ex := <-st.queue.Recv():
				page, err := c.Next(ex.Context)
				if err != nil {
					ex.Err(err)
				} else {
					ex.Ok(page)
				}
			}
		}
	})

	return st
}
