// Package stash provides per-client transactional access to a shared,
// namespaced, in-process key-value store.
//
// Each client session obtains an [Accessor] bound to a single namespace.
// The accessor buffers writes privately and applies them to the backing
// store only when [Accessor.Commit] is called, so concurrent sessions
// never observe each other's uncommitted writes. Prefix queries are
// answered through cursors that serve point-in-time snapshots in pages
// sized to fit a fixed transport message budget.
//
// The backing store itself is pluggable; see the drivers under
// persistence/driver.
package stash
