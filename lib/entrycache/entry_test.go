package entrycache_test

import (
	"github.com/coredir/entrycache/lib/entrycache"
)

// testEntry is a minimal entrycache.Entry used across this package's
// tests. It also implements entrycache.Closer so tests can observe
// when the cache actually destroys a record.
type testEntry struct {
	id     entrycache.ID
	dn     string
	closed *int
}

func newTestEntry(id entrycache.ID, dn string, closed *int) *testEntry {
	return &testEntry{id: id, dn: dn, closed: closed}
}

func (e *testEntry) ID() entrycache.ID { return e.id }
func (e *testEntry) NDN() []byte       { return []byte(e.dn) }
func (e *testEntry) DN() string        { return e.dn }

func (e *testEntry) Close() {
	if e.closed != nil {
		*e.closed++
	}
}
