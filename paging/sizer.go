// Package paging sizes and serves bounded pages of enumeration results.
//
// Enumerations of a keyspace are unbounded, but each reply to a pull
// request must fit within a fixed transport message budget. The page
// size is therefore computed up front from the budget and the worst-case
// encoded size of a single entry.
package paging

// PageSize returns the maximum number of entries that fit in one page.
//
// budget is the size of the largest transport message that may carry a
// page, containerOverhead is the fixed encoding overhead of the page
// itself, and entryOverhead is the worst-case encoded size of a single
// entry.
//
// It panics if not even one entry fits within the budget; a pull must
// always be able to make progress, so callers validate their budgets
// before sizing pages.
func PageSize(budget, containerOverhead, entryOverhead int) int {
	if entryOverhead <= 0 {
		panic("entry overhead must be positive")
	}

	n := (budget - containerOverhead) / entryOverhead
	if n < 1 {
		panic("budget does not fit a single entry")
	}

	return n
}
