package entrycache

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/datawire/dlib/dlog"

	"github.com/coredir/entrycache/lib/containers"
	"github.com/coredir/entrycache/lib/textui"
)

// defaultParoleLimit is spec.md §4.4's fixed parole-pass iteration
// count, overridable via WithParoleLimit for tests.
const defaultParoleLimit = 10

// CacheCore is the dual-index, LRU-bounded, reference-counted entry
// cache of spec.md §3-§5. The zero value is not usable; construct
// with NewCacheCore.
type CacheCore struct {
	mu sync.Mutex

	dnIndex containers.SortedMap[dnKey, *record]
	idIndex containers.SortedMap[idKey, *record]
	lru     containers.LinkedList[*record]

	cursize int
	maxsize int

	paroleLimit int
	log         dlog.Logger
}

// Option configures ambient, non-domain knobs of a CacheCore. These
// are not part of spec.md's public contract (which takes only
// maxsize); they exist the way the teacher's code threads optional
// logging/tuning through functional options.
type Option func(*CacheCore)

// WithLogger sets the dlog.Logger used for lifecycle logging. The
// default is textui's plain-text logger writing to os.Stderr.
func WithLogger(l dlog.Logger) Option {
	return func(c *CacheCore) { c.log = l }
}

// WithParoleLimit overrides the number of tail inspections the
// eviction scan's parole pass performs before giving up (spec.md
// §4.4 fixes this at 10; tests that want to exercise a stuck, fully
// pinned LRU tail without 10 live borrows can lower it).
func WithParoleLimit(n int) Option {
	return func(c *CacheCore) { c.paroleLimit = n }
}

// NewCacheCore constructs an empty cache that holds at most maxsize
// entries before the eviction scan runs (spec.md §3). maxsize<=0
// means unbounded: the eviction scan never runs.
func NewCacheCore(maxsize int, opts ...Option) *CacheCore {
	c := &CacheCore{
		maxsize:     maxsize,
		paroleLimit: defaultParoleLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = textui.NewLogger(os.Stderr, dlog.LogLevelInfo)
	}
	return c
}

// logger returns the CacheCore's own configured logger, for the rare
// caller (the Borrow finalizer) that has no context.Context to pull
// one from via dlog.Get.
func (c *CacheCore) logger() dlog.Logger {
	return c.log
}

// ctxLog attaches the cache's own configured logger to ctx, so that
// the package-level dlog.Xf(ctx, ...) calls below produce this
// cache's lifecycle lines regardless of whether the caller's own ctx
// carries a logger of its own.
func (c *CacheCore) ctxLog(ctx context.Context) context.Context {
	return dlog.WithLogger(ctx, c.log)
}

// Add inserts a brand-new record in state Creating and returns a
// Borrow holding its per-entry lock in mode, per spec.md §5's add
// contract. It fails with ErrDuplicate if entry's DN or ID already
// exists (after rolling back any partial insertion, per §4.5).
func (c *CacheCore) Add(ctx context.Context, entry Entry, mode LockMode) (*Borrow, error) {
	ctx = c.ctxLog(ctx)
	rec := newRecord(entry)

	c.mu.Lock()
	if err := c.linkNewRecordLocked(rec); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.lru.Store(c.newLRUElem(rec))
	c.cursize++
	rec.refcnt = 1 // the caller's own borrow, per spec.md §4.2
	dlog.Debugf(ctx, "entrycache: add id=%v dn=%q", rec.id, entry.DN())
	c.maybeEvictLocked(ctx)
	c.mu.Unlock()

	// Safe to block: no other goroutine can observe this record
	// (state Creating, just linked) until find_by_id sees it Ready.
	rec.lockBlocking(mode)

	return newBorrow(c, rec, mode), nil
}

// linkNewRecordLocked inserts rec into both indices, rolling back the
// DN insertion if the ID insertion collides (spec.md §4.5). Must be
// called with c.mu held.
func (c *CacheCore) linkNewRecordLocked(rec *record) error {
	if !c.dnIndex.Insert(rec.ndn, rec) {
		return ErrDuplicate
	}
	if !c.idIndex.Insert(idKey{id: rec.id}, rec) {
		if !c.dnIndex.DeleteChecked(rec.ndn) {
			corruptf("rollback of dn=%q failed: index lost its own just-inserted key", rec.ndn.ndn)
		}
		return ErrDuplicate
	}
	return nil
}

func (c *CacheCore) newLRUElem(rec *record) *containers.LinkedListEntry[*record] {
	elem := &containers.LinkedListEntry[*record]{Value: rec}
	rec.lruElem = elem
	return elem
}

// Update replaces the entry content of an already-borrowed record
// with a new one that may have a different DN and/or ID, re-running
// the duplicate check/rollback against the other records in the
// indices, and resets the record to state Creating awaiting a fresh
// Commit. The caller's existing borrow (lock, refcnt) is untouched,
// per spec.md §5's update contract.
func (c *CacheCore) Update(ctx context.Context, b *Borrow, entry Entry) error {
	ctx = c.ctxLog(ctx)
	rec := b.rec

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dnIndex.DeleteChecked(rec.ndn) {
		corruptf("update: record id=%v missing from dn index", rec.id)
	}
	if !c.idIndex.DeleteChecked(idKey{id: rec.id}) {
		corruptf("update: record id=%v missing from id index", rec.id)
	}
	c.lru.Delete(rec.lruElem)
	c.cursize--

	rec.entry = entry
	rec.id = entry.ID()
	rec.ndn = newDNKey(entry.NDN())

	if err := c.linkNewRecordLocked(rec); err != nil {
		return err
	}
	c.lru.Store(c.newLRUElem(rec))
	c.cursize++
	rec.storeState(StateCreating)
	dlog.Debugf(ctx, "entrycache: update id=%v dn=%q", rec.id, entry.DN())
	c.maybeEvictLocked(ctx)
	return nil
}

// FindByDN reports the id currently stored under ndn, if any, per
// spec.md §5's find_by_dn contract: a point-in-time hint that does
// not itself borrow the record. Retries (yielding the scheduler)
// while the matching record is mid-creation.
func (c *CacheCore) FindByDN(ctx context.Context, ndn []byte) (ID, bool) {
	key := newDNKey(ndn)
	for {
		c.mu.Lock()
		rec, ok := c.dnIndex.Load(key)
		if !ok {
			c.mu.Unlock()
			return 0, false
		}
		if rec.loadState() != StateReady {
			c.mu.Unlock()
			runtime.Gosched()
			continue
		}
		c.lru.MoveToNewest(rec.lruElem)
		id := rec.id
		c.mu.Unlock()
		return id, true
	}
}

// FindByID looks up id and returns a Borrow holding the record's
// per-entry lock in mode, per spec.md §5's find_by_id contract.
// Retries while the record is mid-creation or while the per-entry
// lock is contended, always releasing the cache mutex before
// retrying: find_by_id must never block while holding it.
func (c *CacheCore) FindByID(ctx context.Context, id ID, mode LockMode) (*Borrow, bool) {
	key := idKey{id: id}
	for {
		c.mu.Lock()
		rec, ok := c.idIndex.Load(key)
		if !ok {
			c.mu.Unlock()
			return nil, false
		}
		if rec.loadState() != StateReady {
			c.mu.Unlock()
			runtime.Gosched()
			continue
		}
		if !rec.tryLock(mode) {
			c.mu.Unlock()
			runtime.Gosched()
			continue
		}
		c.lru.MoveToNewest(rec.lruElem)
		rec.refcnt++
		c.mu.Unlock()
		return newBorrow(c, rec, mode), true
	}
}

// returnEntry implements spec.md §4.3's state-transition table for
// return_entry. Called by Borrow.Return.
func (c *CacheCore) returnEntry(ctx context.Context, b *Borrow) {
	rec := b.rec

	c.mu.Lock()
	defer c.mu.Unlock()

	rec.unlock(b.mode)
	rec.refcnt--

	switch rec.loadState() {
	case StateCreating:
		// Producer abandoned before committing: the record was never
		// visible as Ready, so it is removed outright. The payload
		// belongs to the abandoning caller, not the cache — unlink
		// the record's metadata only, and never call closeEntry on
		// it (spec.md §4.2: "leave entry alone").
		c.unlinkLocked(rec)
		rec.storeState(StateDeleted)
		if rec.refcnt == 0 {
			rec.entry = nil
		}
	case StateCommitted:
		rec.storeState(StateReady)
	case StateDeleted:
		if rec.refcnt == 0 {
			c.freeEntryLocked(rec)
		}
	case StateReady:
		// no-op: a read/write borrow just released, record stays live
	default:
		corruptf("return_entry: record id=%v in unexpected state %v", rec.id, rec.loadState())
	}
}

// Delete removes the record a live, uncommitted-or-committed borrow
// points at from both indices and the LRU list immediately, per
// spec.md §5's delete contract, and consumes the borrow. The caller
// must not call Return separately afterward. If the record is already
// Deleted, Delete returns ErrNotFound and leaves the borrow
// unconsumed: its lock and refcnt are still held until Return.
func (c *CacheCore) Delete(ctx context.Context, b *Borrow) error {
	ctx = c.ctxLog(ctx)
	rec := b.rec

	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.loadState() == StateDeleted {
		return ErrNotFound
	}

	c.unlinkLocked(rec)
	rec.storeState(StateDeleted)
	rec.unlock(b.mode)
	rec.refcnt--
	if rec.refcnt == 0 {
		c.freeEntryLocked(rec)
	}
	b.returned = true
	runtime.SetFinalizer(b, nil)
	dlog.Debugf(ctx, "entrycache: delete id=%v", rec.id)
	return nil
}

// ReleaseAll walks every record and frees those with no outstanding
// borrows, per the SUPPLEMENTED FEATURES release_all contract. It
// returns the number of records left in place because refcnt>0 — a
// caller on a shutdown path can log or assert on this as a leak
// count.
func (c *CacheCore) ReleaseAll(ctx context.Context) (leaked int) {
	ctx = c.ctxLog(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	elem := c.lru.Oldest
	for elem != nil {
		next := elem.Newer
		rec := elem.Value
		if rec.refcnt > 0 {
			leaked++
			elem = next
			continue
		}
		c.unlinkLocked(rec)
		rec.storeState(StateDeleted)
		c.freeEntryLocked(rec)
		elem = next
	}
	if leaked > 0 {
		dlog.Warnf(ctx, "entrycache: release_all leaving %d borrowed record(s) in place", leaked)
	}
	return leaked
}

// unlinkLocked removes rec from both indices and the LRU list. Must
// be called with c.mu held. Any inconsistency here is spec.md's
// Corruption kind: the indices and LRU list are supposed to always
// agree on membership.
func (c *CacheCore) unlinkLocked(rec *record) {
	if !c.dnIndex.DeleteChecked(rec.ndn) {
		corruptf("unlink: record id=%v missing from dn index", rec.id)
	}
	if !c.idIndex.DeleteChecked(idKey{id: rec.id}) {
		corruptf("unlink: record id=%v missing from id index", rec.id)
	}
	c.lru.Delete(rec.lruElem)
	c.cursize--
}

// freeEntryLocked destroys a record's payload. Only valid once the
// record has been unlinked and has no outstanding borrows. Must be
// called with c.mu held.
func (c *CacheCore) freeEntryLocked(rec *record) {
	closeEntry(rec.entry)
	rec.entry = nil
}
