package entrycache

import (
	"context"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

// Borrow is a handle on a record a caller currently holds the
// per-entry lock for, returned by Add and FindByID. It is the Go
// analogue of spec.md's Design Notes suggestion of "a borrow type
// whose destructor calls return_entry": Go has no destructors, so a
// finalizer stands in as a best-effort leak detector (see
// warnLeakedBorrow) while the cache's own correctness never depends
// on it firing.
type Borrow struct {
	core     *CacheCore
	rec      *record
	mode     LockMode
	returned bool
}

// ID reports the id of the borrowed record.
func (b *Borrow) ID() ID {
	return b.rec.id
}

// Entry returns the borrowed record's payload. Valid until Return or
// Delete is called on this Borrow.
func (b *Borrow) Entry() Entry {
	return b.rec.entry
}

// Commit advances a freshly Added-or-Updated record from Creating to
// Committed (spec.md §4.2). It deliberately does not take the cache
// mutex: state is the one record field accessed atomically for
// exactly this reason. Calling Commit on a record not in Creating, or
// calling it twice, is a caller error and panics as Corruption.
func (b *Borrow) Commit() {
	if !b.rec.state.CompareAndSwap(int32(StateCreating), int32(StateCommitted)) {
		corruptf("Commit called on record in state %v, want %v", b.rec.loadState(), StateCreating)
	}
}

// Return releases the per-entry lock this Borrow holds, per spec.md
// §4.3's state transition table. It is a no-op if the Borrow has
// already been consumed by Return or Delete.
func (b *Borrow) Return(ctx context.Context) {
	if b.returned {
		return
	}
	b.core.returnEntry(ctx, b)
	b.returned = true
	runtime.SetFinalizer(b, nil)
}

func newBorrow(core *CacheCore, rec *record, mode LockMode) *Borrow {
	b := &Borrow{core: core, rec: rec, mode: mode}
	runtime.SetFinalizer(b, warnLeakedBorrow)
	return b
}

func warnLeakedBorrow(b *Borrow) {
	if b.returned {
		return
	}
	b.core.logger().
		Warnf("entrycache: borrow on id=%v garbage-collected without Return/Delete", b.rec.id)
}

// Dump renders a borrowed entry's contents for trace-level logging,
// the way the teacher reaches for go-spew on diagnostic dumps
// elsewhere in its tree.
func Dump(b *Borrow) string {
	return spew.Sdump(b.Entry())
}
