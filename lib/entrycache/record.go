package entrycache

import (
	"sync"
	"sync/atomic"

	"github.com/coredir/entrycache/lib/containers"
)

// record is the internal EntryRecord of spec.md §3: the cached unit
// plus its per-cache metadata. Everything except state is guarded by
// the owning CacheCore's mutex; state is accessed atomically because
// Commit (spec.md §4.2) mutates it without holding that mutex.
type record struct {
	state atomic.Int32 // State

	refcnt int // guarded by CacheCore.mu

	lock sync.RWMutex // per-entry rdwr lock guarding entry

	lruElem *containers.LinkedListEntry[*record] // guarded by CacheCore.mu

	// entry, id and ndn are guarded by CacheCore.mu; entry itself
	// is additionally guarded by lock while a borrow is held.
	entry Entry
	id    ID
	ndn   dnKey
}

func newRecord(e Entry) *record {
	r := &record{
		entry: e,
		id:    e.ID(),
		ndn:   newDNKey(e.NDN()),
	}
	r.state.Store(int32(StateCreating))
	return r
}

func (r *record) loadState() State {
	return State(r.state.Load())
}

func (r *record) storeState(s State) {
	r.state.Store(int32(s))
}

// tryLock attempts a non-blocking acquisition of the per-entry lock in
// the given mode. spec.md §5: find_by_id must never block while
// holding the cache mutex, so this is the only way find_by_id may
// acquire a per-entry lock.
func (r *record) tryLock(mode LockMode) bool {
	if mode == LockWrite {
		return r.lock.TryLock()
	}
	return r.lock.TryRLock()
}

func (r *record) unlock(mode LockMode) {
	if mode == LockWrite {
		r.lock.Unlock()
		return
	}
	r.lock.RUnlock()
}

// lockBlocking acquires the per-entry lock in the given mode,
// blockingly. Only used by Add, immediately after a brand-new record
// has been linked into the indices/LRU but is still State Creating:
// no other goroutine will attempt this lock until the state advances
// to Ready (find_by_id only trylocks a Ready record), so this can
// never contend. Add takes it after releasing CacheCore.mu.
func (r *record) lockBlocking(mode LockMode) {
	if mode == LockWrite {
		r.lock.Lock()
		return
	}
	r.lock.RLock()
}
