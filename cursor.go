package stash

import "github.com/stashkit/stash/paging"

// A ListEntry is a single result of a key listing query. It carries the
// type of the stored value in place of the value itself.
type ListEntry struct {
	Key  string
	Type Type
}

// An Entry is a single key/value pair.
type Entry struct {
	Key   string
	Value Value
}

// A ListCursor serves the results of a key listing query in bounded
// pages.
type ListCursor = paging.Cursor[ListEntry]

// A GetCursor serves the results of a value-carrying prefix query in
// bounded pages.
type GetCursor = paging.Cursor[Entry]
