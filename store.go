package stash

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stashkit/stash/internal/telemetry"
	"github.com/stashkit/stash/paging"
	"github.com/stashkit/stash/persistence/kv"
)

// DefaultPageBudget is the transport message budget, in bytes, used to
// size pages when no other budget is configured.
const DefaultPageBudget = 64 * 1024

// Encoding overheads used to size pages. Each page carries a fixed
// container header, each field of an entry carries a bounded-size
// header, and listing entries carry a type tag in place of a value.
const (
	pageOverhead  = 16
	fieldOverhead = 16
	typeTagLen    = 1
)

// MinPageBudget is the smallest allowed page budget: the size of a page
// carrying a single worst-case key/value entry.
const MinPageBudget = pageOverhead + MaxKeyLen + fieldOverhead + MaxValueLen + fieldOverhead

// Store provides namespaced, transactional access to a shared key-value
// store.
type Store struct {
	driver    kv.Store
	telemetry *telemetry.Provider
	budget    int
	secure    bool

	m       sync.Mutex
	commits map[string]*sync.Mutex
}

// New returns a store that persists values via the given driver.
func New(driver kv.Store, options ...Option) *Store {
	if driver == nil {
		panic("driver must not be nil")
	}

	s := &Store{
		driver:    driver,
		telemetry: &telemetry.Provider{},
		budget:    DefaultPageBudget,
		commits:   map[string]*sync.Mutex{},
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Access returns an accessor bound to the given namespace.
//
// Each accessor buffers its writes privately until they are committed.
// Accessors of the same namespace share the backing store but never
// observe each other's uncommitted writes.
func (s *Store) Access(
	ctx context.Context,
	namespace string,
	options ...AccessOption,
) (*Accessor, error) {
	ks, err := s.driver.Open(ctx, namespace)
	if err != nil {
		return nil, err
	}

	a := &Accessor{
		store:        s,
		keyspace:     ks,
		id:           uuid.New(),
		namespace:    namespace,
		bytesEnabled: !s.secure,
		overlay:      map[string]pendingOp{},
	}

	for _, opt := range options {
		opt(a)
	}

	a.telemetry = s.telemetry.Recorder(
		"accessor",
		telemetry.String("namespace", namespace),
		telemetry.Stringer("accessor_id", a.id),
		telemetry.Type("driver", s.driver),
		telemetry.If(a.readOnly, telemetry.Bool("read_only", true)),
	)

	a.readCount = a.telemetry.Counter(
		"reads",
		"{operation}",
		"The number of read operations that have been performed.",
	)
	a.writeCount = a.telemetry.Counter(
		"writes",
		"{operation}",
		"The number of write operations that have been buffered.",
	)
	a.commitCount = a.telemetry.Counter(
		"commits",
		"{commit}",
		"The number of commits that have been attempted.",
	)
	a.rollbackCount = a.telemetry.Counter(
		"rollbacks",
		"{rollback}",
		"The number of commits that have been rolled back.",
	)
	a.overlaySize = a.telemetry.Histogram(
		"overlay_size",
		"{operation}",
		"The number of pending operations applied by each commit.",
	)

	return a, nil
}

// listPageSize returns the maximum number of entries in a key listing
// page.
func (s *Store) listPageSize() int {
	return paging.PageSize(
		s.budget,
		pageOverhead,
		MaxKeyLen+fieldOverhead+typeTagLen,
	)
}

// getPageSize returns the maximum number of entries in a page that
// carries values as well as keys.
func (s *Store) getPageSize() int {
	return paging.PageSize(
		s.budget,
		pageOverhead,
		MaxKeyLen+fieldOverhead+MaxValueLen+fieldOverhead,
	)
}

// commitLock returns the mutex that serializes commits to the given
// namespace.
func (s *Store) commitLock(namespace string) *sync.Mutex {
	s.m.Lock()
	defer s.m.Unlock()

	m, ok := s.commits[namespace]
	if !ok {
		m = &sync.Mutex{}
		s.commits[namespace] = m
	}

	return m
}
