package entrycache

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// maybeEvictLocked runs the eviction scan of spec.md §4.4 when the
// cache is over capacity. Must be called with c.mu held, after the
// record that pushed cursize over maxsize has already been linked in.
func (c *CacheCore) maybeEvictLocked(ctx context.Context) {
	if c.maxsize <= 0 || c.cursize <= c.maxsize {
		return
	}

	// Parole pass: move up to paroleLimit pinned tail records to the
	// head, so that pinned records at the tail don't stop the
	// eviction pass below (which never evicts a pinned record).
	for i := 0; i < c.paroleLimit; i++ {
		tail := c.lru.Oldest
		if tail == nil {
			return
		}
		if tail.Value.refcnt == 0 {
			break
		}
		c.lru.MoveToNewest(tail)
		dlog.Debugf(ctx, "entrycache: parole id=%v (refcnt=%d)", tail.Value.id, tail.Value.refcnt)
	}

	// Eviction pass: evict unpinned tail records until back at or
	// under capacity, or until every remaining record is pinned.
	for c.cursize > c.maxsize {
		tail := c.lru.Oldest
		if tail == nil || tail.Value.refcnt > 0 {
			break
		}
		rec := tail.Value
		c.unlinkLocked(rec)
		rec.storeState(StateDeleted)
		c.freeEntryLocked(rec)
		dlog.Debugf(ctx, "entrycache: evict id=%v", rec.id)
	}
}
