package paging

import "context"

// A Cursor serves an immutable snapshot of enumeration results in pages
// of bounded size.
//
// A cursor is a fused iterator: it returns an empty page from the pull
// that exhausts the snapshot and from every pull thereafter, including
// when the snapshot is empty to begin with.
//
// A cursor is owned by a single pull stream and is not safe for
// concurrent use.
type Cursor[T any] struct {
	remaining []T
	size      int
	check     func([]T) error
}

// NewCursor returns a cursor that serves snapshot in pages of at most
// size entries.
//
// If check is non-nil it is invoked with each non-empty page before the
// page is consumed. If it returns an error the pull fails as a whole and
// the page remains unconsumed.
func NewCursor[T any](snapshot []T, size int, check func([]T) error) *Cursor[T] {
	if size < 1 {
		panic("page size must be positive")
	}

	return &Cursor[T]{
		remaining: snapshot,
		size:      size,
		check:     check,
	}
}

// Next returns the next page of results.
//
// The returned page is empty if, and only if, the snapshot is exhausted.
func (c *Cursor[T]) Next(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := len(c.remaining)
	if n > c.size {
		n = c.size
	}

	page := c.remaining[:n:n]

	if n != 0 && c.check != nil {
		if err := c.check(page); err != nil {
			return nil, err
		}
	}

	c.remaining = c.remaining[n:]

	return page, nil
}
